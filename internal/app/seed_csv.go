package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/crm-enricher/internal/enrich"
)

// ParseSeedCSV reads companies from a CSV with a required "name" column and
// optional "domain" and "address" columns. Header matching is case-insensitive.
func ParseSeedCSV(r io.Reader) ([]enrich.Entity, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{"name": -1, "domain": -1, "address": -1}
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if idx, ok := cols[key]; ok && idx < 0 {
			cols[key] = i
		}
	}
	if cols["name"] < 0 {
		return nil, fmt.Errorf("missing required column %q", "name")
	}

	field := func(rec []string, col string) string {
		i := cols[col]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []enrich.Entity
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		name := field(rec, "name")
		if name == "" {
			return nil, fmt.Errorf("row %d: name is required", row)
		}
		out = append(out, enrich.Entity{
			Name:    name,
			Domain:  field(rec, "domain"),
			Address: field(rec, "address"),
		})
	}
	return out, nil
}
