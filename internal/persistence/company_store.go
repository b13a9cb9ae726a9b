package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shpitdev/crm-enricher/internal/database"
	"github.com/shpitdev/crm-enricher/internal/enrich"
	"gorm.io/gorm"
)

// painPointSep joins pain points in a single text column.
const painPointSep = "\n"

// CompanyStore persists companies and their enrichment state.
//
// MarkProcessing and ResetStaleProcessing are single conditional UPDATE statements;
// the affected row count tells the caller whether its transition won. Every other
// write is an unconditional last-write-wins update of one row.
type CompanyStore struct {
	db database.Database
}

func NewCompanyStore(db database.Database) CompanyStore {
	return CompanyStore{db: db}
}

// Create inserts a company with an empty enrichment record and returns its id.
func (s CompanyStore) Create(ctx context.Context, e enrich.Entity) (int64, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return 0, errors.New("create company: name is required")
	}
	m := CompanyModel{
		ID:               e.ID,
		Name:             name,
		Domain:           strings.TrimSpace(e.Domain),
		Address:          strings.TrimSpace(e.Address),
		EnrichmentStatus: string(enrich.StatusNotEnriched),
	}
	if err := s.db.Session(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("create company: %w", err)
	}
	return m.ID, nil
}

// ListIDsByStatus returns ids in ascending order. An empty status matches every company.
func (s CompanyStore) ListIDsByStatus(ctx context.Context, status enrich.Status) ([]int64, error) {
	q := s.db.Session(ctx).Model(&CompanyModel{}).Order("id")
	if status != "" {
		q = q.Where("enrichment_status = ?", string(status))
	}
	var ids []int64
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return ids, nil
}

func (s CompanyStore) Load(ctx context.Context, id int64) (enrich.Snapshot, error) {
	var m CompanyModel
	err := s.db.Session(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enrich.Snapshot{}, enrich.ErrNotFound
		}
		return enrich.Snapshot{}, fmt.Errorf("load company %d: %w", id, err)
	}
	return toSnapshot(m), nil
}

func (s CompanyStore) MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := s.db.Session(ctx).Model(&CompanyModel{}).
		Where("id = ? AND enrichment_status <> ?", id, string(enrich.StatusProcessing)).
		Updates(map[string]any{
			"enrichment_status":     string(enrich.StatusProcessing),
			"enrichment_updated_at": now.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark company %d processing: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s CompanyStore) ResetStaleProcessing(ctx context.Context, id int64, cutoff, now time.Time) (bool, error) {
	res := s.db.Session(ctx).Model(&CompanyModel{}).
		Where("id = ? AND enrichment_status = ? AND enrichment_updated_at <= ?", id, string(enrich.StatusProcessing), cutoff.UTC()).
		Updates(map[string]any{
			"enrichment_status":     string(enrich.StatusNotEnriched),
			"enrichment_updated_at": now.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("reset stale company %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ResetStatus moves a company back to not_enriched. Stored data is left in place.
func (s CompanyStore) ResetStatus(ctx context.Context, id int64, now time.Time) error {
	return s.update(ctx, id, map[string]any{
		"enrichment_status":     string(enrich.StatusNotEnriched),
		"enrichment_updated_at": now.UTC(),
	})
}

// SaveResult writes all four data fields and the status in one statement.
func (s CompanyStore) SaveResult(ctx context.Context, id int64, status enrich.Status, data enrich.Data, now time.Time) error {
	if !status.HasData() {
		return fmt.Errorf("save company %d: status %q carries no data", id, status)
	}
	return s.update(ctx, id, map[string]any{
		"enrichment_status":      string(status),
		"enrichment_description": nullable(data.Description),
		"enrichment_sector":      nullable(data.Sector),
		"enrichment_size":        nullable(data.EstimatedSize),
		"enrichment_pain_points": joinPainPoints(data.PainPoints),
		"enrichment_updated_at":  now.UTC(),
	})
}

func (s CompanyStore) update(ctx context.Context, id int64, fields map[string]any) error {
	res := s.db.Session(ctx).Model(&CompanyModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update company %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return enrich.ErrNotFound
	}
	return nil
}

func toSnapshot(m CompanyModel) enrich.Snapshot {
	snap := enrich.Snapshot{
		Entity: enrich.Entity{ID: m.ID, Name: m.Name, Domain: m.Domain, Address: m.Address},
		Record: enrich.Record{
			Status: enrich.Status(m.EnrichmentStatus),
			Data: enrich.Data{
				Description:   m.EnrichmentDescription,
				Sector:        m.EnrichmentSector,
				EstimatedSize: m.EnrichmentSize,
				PainPoints:    splitPainPoints(m.EnrichmentPainPoints),
			},
		},
	}
	if !snap.Record.Status.Valid() {
		snap.Record.Status = enrich.StatusNotEnriched
	}
	if m.EnrichmentUpdatedAt != nil {
		snap.Record.UpdatedAt = m.EnrichmentUpdatedAt.UTC()
	}
	return snap
}

// nullable turns a nil pointer into SQL NULL.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func joinPainPoints(points []string) any {
	clean := make([]string, 0, len(points))
	for _, p := range points {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return strings.Join(clean, painPointSep)
}

func splitPainPoints(s *string) []string {
	if s == nil || *s == "" {
		return []string{}
	}
	parts := strings.Split(*s, painPointSep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
