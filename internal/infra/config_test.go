package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig succeeded without DATABASE_URL")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clipper")
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("TASK_LIMIT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("ANALYSIS_MODEL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerCount != 1 {
		t.Fatalf("WorkerCount = %d", cfg.WorkerCount)
	}
	if cfg.TaskLimit != 5 {
		t.Fatalf("TaskLimit = %d", cfg.TaskLimit)
	}
	if cfg.StorageDriver != "file" {
		t.Fatalf("StorageDriver = %q", cfg.StorageDriver)
	}
	if cfg.AnalysisModel != "gemini-2.5-pro" {
		t.Fatalf("AnalysisModel = %q", cfg.AnalysisModel)
	}
	if cfg.HTTPReadTimeout != 15*time.Second {
		t.Fatalf("HTTPReadTimeout = %v", cfg.HTTPReadTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clipper")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("TASK_LIMIT", "20")
	t.Setenv("MAILBOX_DOMAINS", "a.test, b.test ,,c.test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("WorkerCount = %d", cfg.WorkerCount)
	}
	if cfg.TaskLimit != 20 {
		t.Fatalf("TaskLimit = %d", cfg.TaskLimit)
	}
	want := []string{"a.test", "b.test", "c.test"}
	if len(cfg.MailboxDomains) != len(want) {
		t.Fatalf("MailboxDomains = %v", cfg.MailboxDomains)
	}
	for i, d := range want {
		if cfg.MailboxDomains[i] != d {
			t.Fatalf("MailboxDomains[%d] = %q, want %q", i, cfg.MailboxDomains[i], d)
		}
	}
}

func TestLoadConfigClampsWorkerCount(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clipper")
	t.Setenv("WORKER_COUNT", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerCount != 1 {
		t.Fatalf("WorkerCount = %d, want clamp to 1", cfg.WorkerCount)
	}
}
