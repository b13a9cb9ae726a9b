// Package persistence provides database storage implementations.
package persistence

import (
	"time"

	"github.com/shpitdev/crm-enricher/internal/database"
)

// CompanyModel is a CRM company row together with its enrichment record.
type CompanyModel struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"column:name;size:255;not null"`
	Domain  string `gorm:"column:domain;size:255"`
	Address string `gorm:"column:address;size:1024"`

	EnrichmentStatus      string     `gorm:"column:enrichment_status;index;size:32;not null;default:'not_enriched'"`
	EnrichmentDescription *string    `gorm:"column:enrichment_description;type:text"`
	EnrichmentSector      *string    `gorm:"column:enrichment_sector;size:255"`
	EnrichmentSize        *string    `gorm:"column:enrichment_size;size:64"`
	EnrichmentPainPoints  *string    `gorm:"column:enrichment_pain_points;type:text"`
	EnrichmentUpdatedAt   *time.Time `gorm:"column:enrichment_updated_at"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (CompanyModel) TableName() string {
	return "companies"
}

// AutoMigrate runs GORM auto migration for all models.
func AutoMigrate(db database.Database) error {
	return db.GORM().AutoMigrate(
		&CompanyModel{},
	)
}
