package provider

import (
	"fmt"
	"strings"
)

// Credential is one provider API key. Label is safe to log; Key is not.
type Credential struct {
	Label string
	Key   string
}

// String never includes the key.
func (c Credential) String() string {
	return c.Label
}

// CredentialSet is the ordered list of credentials tried for a single run: the
// primary first, then each backup.
type CredentialSet struct {
	creds []Credential
}

// NewCredentialSet builds a set from keys in priority order. Blank and repeated keys
// are dropped.
func NewCredentialSet(keys ...string) CredentialSet {
	seen := make(map[string]struct{}, len(keys))
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		label := "primary"
		if len(creds) > 0 {
			label = fmt.Sprintf("backup-%d", len(creds))
		}
		creds = append(creds, Credential{Label: label, Key: k})
	}
	return CredentialSet{creds: creds}
}

func (s CredentialSet) Len() int {
	return len(s.creds)
}

// All returns the credentials in try order.
func (s CredentialSet) All() []Credential {
	out := make([]Credential, len(s.creds))
	copy(out, s.creds)
	return out
}
