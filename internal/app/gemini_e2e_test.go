//go:build gemini_e2e

package app_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shpitdev/crm-enricher/internal/app"
	"github.com/shpitdev/crm-enricher/internal/config"
	"github.com/shpitdev/crm-enricher/internal/enrich"
)

func TestEnrichNow_RealGemini_EndToEnd(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Fatalf("GEMINI_API_KEY is required for gemini_e2e tests")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		t.Fatalf("GEMINI_MODEL is required for gemini_e2e tests")
	}

	baseDir := t.TempDir()
	if artifactDir := os.Getenv("GEMINI_E2E_ARTIFACT_DIR"); artifactDir != "" {
		if err := os.MkdirAll(artifactDir, 0755); err != nil {
			t.Fatalf("create GEMINI_E2E_ARTIFACT_DIR: %v", err)
		}
		baseDir = artifactDir
	}

	cfg := config.EnvConfig{
		Host:            "127.0.0.1",
		Port:            8080,
		DBURL:           "sqlite:///" + filepath.Join(baseDir, "gemini_e2e.db"),
		ProviderTimeout: 45 * time.Second,
		StaleAfter:      2 * time.Minute,
		RunTimeout:      90 * time.Second,
		Breaker:         config.BreakerEnv{FailureThreshold: 5, ResetTimeout: time.Minute},
	}
	cfg.Gemini.APIKey = apiKey
	cfg.Gemini.APIKeyBackup = os.Getenv("GEMINI_API_KEY_BACKUP")
	cfg.Gemini.Model = model
	cfg.Gemini.BaseURL = os.Getenv("GEMINI_BASE_URL")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer func() { _ = a.Close(ctx) }()

	// Well-known public company; we only validate API and parsing assumptions.
	ids, err := a.Seed(ctx, []enrich.Entity{{Name: "Stripe", Domain: "stripe.com"}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := a.EnrichNow(ctx, ids[0], true)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if res.Status != enrich.StatusEnriched && res.Status != enrich.StatusPartial {
		t.Fatalf("unexpected status %q", res.Status)
	}
	if res.Data == nil || res.Data.Empty() {
		t.Fatalf("expected enrichment data, got %+v", res.Data)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	if err := os.WriteFile(filepath.Join(baseDir, "result.json"), b, 0644); err != nil {
		t.Fatalf("write result: %v", err)
	}
	t.Logf("status=%s result=%s", res.Status, b)
}
