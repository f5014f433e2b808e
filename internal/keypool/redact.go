package keypool

// Mask hides all but the last four characters of a credential. Keys of eight
// characters or fewer are hidden entirely.
func Mask(secret string) string {
	const visible = 4
	if len(secret) <= 2*visible {
		return "****"
	}
	return "****" + secret[len(secret)-visible:]
}

// KeyLabel pairs a key id with its masked credential, for operator output.
type KeyLabel struct {
	KeyID  string
	Masked string
}

// Labels lists every key in rotation order with masked credentials.
func (p *Pool) Labels() []KeyLabel {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]KeyLabel, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, KeyLabel{KeyID: k.id, Masked: Mask(k.apiKey)})
	}
	return out
}
