// Package main provides genaigw-cli, the operator tool for inspecting gateway
// configuration without starting the server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	genaigateway "github.com/ferro-labs/genai-gateway"
	"github.com/ferro-labs/genai-gateway/internal/keypool"
	"github.com/ferro-labs/genai-gateway/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "genaigw-cli",
		Short:        "Inspect and validate genai-gateway configuration",
		SilenceUsage: true,
	}
	var withEnv bool
	root.PersistentFlags().BoolVar(&withEnv, "env", false, "overlay .env and process environment before validating")

	root.AddCommand(
		&cobra.Command{
			Use:   "validate <config-file>",
			Short: "Validate a gateway configuration file (JSON/YAML)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load(args[0], withEnv)
				if err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "keys <config-file>",
			Short: "List provider key ids with masked credentials",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load(args[0], withEnv)
				if err != nil {
					return err
				}
				return printKeys(cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version info",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "genaigw-cli %s\n", version.String())
			},
		},
	)
	return root
}

func load(path string, withEnv bool) (genaigateway.Config, error) {
	loaded, err := genaigateway.LoadConfig(path)
	if err != nil {
		return genaigateway.Config{}, fmt.Errorf("loading config: %w", err)
	}
	cfg := *loaded
	if withEnv {
		if err := genaigateway.LoadDotEnv(); err != nil {
			return cfg, err
		}
		if err := genaigateway.ApplyEnv(&cfg); err != nil {
			return cfg, err
		}
	}
	if err := genaigateway.ValidateConfig(cfg); err != nil {
		return cfg, fmt.Errorf("validation error: %w", err)
	}
	return cfg, nil
}

func printSummary(out io.Writer, cfg genaigateway.Config) error {
	pool := keypool.New(cfg.Provider.APIKeys, cfg.Provider.FailureCooldown.Std())
	_, err := fmt.Fprintf(out, `Config is valid
  Service:          %s (%s)
  Listen:           %s
  Routing mode:     %s
  Provider keys:    %d
  Failure cooldown: %s
  Upload limit:     %d bytes
  Rate limit:       %g req/s, burst %d
`,
		cfg.Service.Name, cfg.Service.Environment,
		cfg.Server.Addr(),
		cfg.Provider.RoutingMode,
		pool.Size(),
		pool.Cooldown(),
		cfg.Server.MaxUploadBytes,
		cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst,
	)
	return err
}

func printKeys(out io.Writer, cfg genaigateway.Config) error {
	labels := keypool.New(cfg.Provider.APIKeys, 0).Labels()
	if len(labels) == 0 {
		_, err := fmt.Fprintln(out, "no provider API keys configured")
		return err
	}
	for _, l := range labels {
		if _, err := fmt.Fprintf(out, "%s\t%s\n", l.KeyID, l.Masked); err != nil {
			return err
		}
	}
	return nil
}
