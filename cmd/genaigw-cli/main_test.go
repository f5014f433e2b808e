package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
provider:
  api_keys:
    - AIzaSyAlphaSecret1111
    - AIzaSyBravoSecret2222
  failure_cooldown: 45s
`

func TestValidate(t *testing.T) {
	out, err := runCLI(t, "validate", writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	for _, want := range []string{"Config is valid", "gemini-api", "Provider keys:    2", "45s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Secret") {
		t.Errorf("validate leaks keys:\n%s", out)
	}
}

func TestValidate_Invalid(t *testing.T) {
	path := writeConfig(t, "provider:\n  routing_mode: azure\n")
	if _, err := runCLI(t, "validate", path); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := runCLI(t, "validate"); err == nil {
		t.Fatal("expected argument error")
	}
}

func TestKeys(t *testing.T) {
	out, err := runCLI(t, "keys", writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := "key-1\t****1111\nkey-2\t****2222\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil || !strings.HasPrefix(out, "genaigw-cli dev") {
		t.Errorf("version = %q, %v", out, err)
	}
}
