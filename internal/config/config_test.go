package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	repo := cfg.Repository
	if repo.Owner != "mutualsupply" || repo.Name != "library" || repo.BaseBranch != "main" || repo.ContentDir != "case-studies" {
		t.Fatalf("unexpected repository defaults: %+v", repo)
	}
	if cfg.GitHubTimeout() != 20*time.Second {
		t.Fatalf("github timeout = %s", cfg.GitHubTimeout())
	}
	if cfg.RegistryCacheTTL() != 0 {
		t.Fatalf("registry cache should be off by default")
	}
	if cfg.CookieName() != "mutual_session" {
		t.Fatalf("cookie name = %s", cfg.CookieName())
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
repository:
  owner: acme
  name: research
registry:
  cache_ttl_seconds: 30
webhooks:
  - url: https://hooks.example.com/mutual
    events: [case.published]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Repository.Owner != "acme" || cfg.Repository.Name != "research" {
		t.Fatalf("repository not overridden: %+v", cfg.Repository)
	}
	if cfg.Repository.BaseBranch != "main" {
		t.Fatalf("unset keys should keep defaults, base branch = %q", cfg.Repository.BaseBranch)
	}
	if cfg.RegistryCacheTTL() != 30*time.Second {
		t.Fatalf("cache ttl = %s", cfg.RegistryCacheTTL())
	}
	if len(cfg.Webhooks) != 1 || !slices.Equal(cfg.Webhooks[0].Events, []string{"case.published"}) {
		t.Fatalf("unexpected webhooks: %+v", cfg.Webhooks)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"empty owner":      "repository:\n  owner: \"\"\n",
		"escaping dir":     "repository:\n  content_dir: ../outside\n",
		"bad log level":    "logging:\n  level: loud\n",
		"webhook no url":   "webhooks:\n  - events: [draft.saved]\n",
		"negative timeout": "github:\n  timeout_seconds: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromYAML([]byte(doc)); err == nil {
				t.Fatalf("expected %q to be rejected", doc)
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg.Repository.Owner != "mutualsupply" {
		t.Fatalf("missing file should give defaults: %+v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("Load should fail without a config file")
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("repository:\n  owner: other\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil || cfg.Repository.Owner != "other" {
		t.Fatalf("config file not read: %+v %v", cfg, err)
	}
}
