package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseDialector(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "sqlite", url: "sqlite:///data/crm.db", want: "sqlite"},
		{name: "sqlite_memory", url: "sqlite:///:memory:", want: "sqlite"},
		{name: "postgres", url: "postgres://u:p@localhost:5432/crm", want: "postgres"},
		{name: "postgresql", url: "postgresql://u:p@localhost:5432/crm", want: "postgres"},
		{name: "empty_sqlite_path", url: "sqlite:///", wantErr: true},
		{name: "mysql", url: "mysql://localhost/crm", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDialector(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedDriver)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestNewDatabase_SQLiteMemory(t *testing.T) {
	db, err := NewDatabase(context.Background(), "sqlite:///:memory:", nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.True(t, db.IsSQLite())
	assert.False(t, db.IsPostgres())
	require.NoError(t, db.ConfigurePool(10, 5, time.Minute))
	sqlDB, err := db.GORM().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections, "sqlite keeps a single connection")

	var one int
	require.NoError(t, db.Session(context.Background()).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestNewDatabase_Unsupported(t *testing.T) {
	_, err := NewDatabase(context.Background(), "mongodb://localhost", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := NewGormLogger(log, 10*time.Millisecond)
	ctx := context.Background()
	fc := func() (string, int64) { return "SELECT * FROM companies", 1 }

	l.Trace(ctx, time.Now(), fc, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), "query failed")
	buf.Reset()

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Contains(t, buf.String(), "level=DEBUG")
	buf.Reset()

	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "slow query")
	buf.Reset()

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), fc, errors.New("x"))
	assert.Empty(t, buf.String())
}
