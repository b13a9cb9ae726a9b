package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML fixture format accepted by Seed:
//
//	companies:
//	  - name: Acme
//	    domain: acme.test
//	    address: 1 Main St
type SeedFile struct {
	Companies []SeedCompany `yaml:"companies"`
}

type SeedCompany struct {
	Name    string `yaml:"name"`
	Domain  string `yaml:"domain"`
	Address string `yaml:"address"`
}

// ParseSeed decodes a fixture, rejecting unknown keys and nameless companies.
func ParseSeed(r io.Reader) ([]enrich.Entity, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	out := make([]enrich.Entity, 0, len(f.Companies))
	for i, c := range f.Companies {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("seed company %d: name is required", i)
		}
		out = append(out, enrich.Entity{Name: c.Name, Domain: c.Domain, Address: c.Address})
	}
	return out, nil
}

// Seed inserts companies and returns their ids in order.
func (a *App) Seed(ctx context.Context, companies []enrich.Entity) ([]int64, error) {
	ids := make([]int64, 0, len(companies))
	for _, c := range companies {
		id, err := a.Store.Create(ctx, c)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
