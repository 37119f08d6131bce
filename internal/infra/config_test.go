package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("REPLICATE_MODEL", "")
	t.Setenv("POLL_INTERVAL_MS", "")
	t.Setenv("POLL_MAX_ATTEMPTS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.ReplicateModel != "google/nano-banana" {
		t.Fatalf("ReplicateModel mismatch: got %q", cfg.ReplicateModel)
	}
	if cfg.PollInterval != 2*time.Second || cfg.PollMaxAttempts != 60 {
		t.Fatalf("poll defaults mismatch: %s x %d", cfg.PollInterval, cfg.PollMaxAttempts)
	}
	if cfg.PromptMaxLength != 500 {
		t.Fatalf("PromptMaxLength mismatch: got %d", cfg.PromptMaxLength)
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is missing")
	}
}

func TestLoadConfigMissingProviderTokenIsNotFatal(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REPLICATE_API_TOKEN", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ProviderConfigured() {
		t.Fatalf("provider should be reported as unconfigured")
	}
}

func TestLoadConfigRemoteStorageNeedsBothValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SupabaseURL != "https://project.supabase.co" {
		t.Fatalf("SupabaseURL should be trimmed, got %q", cfg.SupabaseURL)
	}
	if cfg.RemoteStorageConfigured() {
		t.Fatalf("remote storage requires a service key")
	}

	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.RemoteStorageConfigured() {
		t.Fatalf("remote storage should be configured")
	}
}

func TestLoadConfigArtifactAllowlist(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ARTIFACT_HOST_ALLOWLIST", " replicate.delivery, pbxt.replicate.delivery ,replicate.delivery")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"pbxt.replicate.delivery", "replicate.delivery"}
	if len(cfg.ArtifactHostAllowlist) != len(expected) {
		t.Fatalf("ArtifactHostAllowlist mismatch: got %#v want %#v", cfg.ArtifactHostAllowlist, expected)
	}
	for i, host := range expected {
		if cfg.ArtifactHostAllowlist[i] != host {
			t.Fatalf("ArtifactHostAllowlist[%d] = %q, want %q", i, cfg.ArtifactHostAllowlist[i], host)
		}
	}
}

func TestLoadConfigCORSOrigins(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,http://localhost:3000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}
