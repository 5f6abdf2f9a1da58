package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"starhollow/engine/internal/pipeline"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFileConfigDefaults(t *testing.T) {
	cfg, err := LoadFileConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	pcfg := cfg.PipelineConfig(nil)
	if pcfg.QueueCapacity != pipeline.DefaultQueueCapacity {
		t.Fatalf("expected default queue capacity, got %d", pcfg.QueueCapacity)
	}
	if pcfg.SwapPolicy != pipeline.SwapDirty {
		t.Fatalf("expected dirty swap policy by default")
	}
}

func TestLoadFileConfigParsesYAML(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":9090"
pipeline:
  frameRate: 30
  queueCapacity: 64
  agentCommandsPerSecond: 10
  shutdownTimeoutSeconds: 1.5
  swapPolicy: full
journal:
  maxFrames: 100
  maxAgeSeconds: 5
scene:
  entities: 3
  radius: 2.5
`)
	cfg, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	pcfg := cfg.PipelineConfig(nil)
	if pcfg.FrameRate != 30 || pcfg.QueueCapacity != 64 || pcfg.AgentCommandsPerSecond != 10 {
		t.Fatalf("unexpected pipeline config: %+v", pcfg)
	}
	if pcfg.ShutdownTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected shutdown timeout %v", pcfg.ShutdownTimeout)
	}
	if pcfg.SwapPolicy != pipeline.SwapFull {
		t.Fatalf("expected full swap policy")
	}
	maxFrames, maxAge := cfg.JournalRetention()
	if maxFrames != 100 || maxAge != 5*time.Second {
		t.Fatalf("unexpected journal retention %d %v", maxFrames, maxAge)
	}
	scene := cfg.SceneConfig(nil)
	if scene.Entities != 3 || scene.Radius != 2.5 {
		t.Fatalf("unexpected scene config: %+v", scene)
	}
}

func TestLoadFileConfigRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "listenAddr: [broken")
	if _, err := LoadFileConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_LISTEN_ADDR", ":7070")
	t.Setenv("ENGINE_FRAME_RATE", "120")
	t.Setenv("ENGINE_QUEUE_CAPACITY", "not-a-number")

	cfg := DefaultFileConfig()
	cfg.ApplyEnv(nil)
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("env listen addr not applied: %q", cfg.ListenAddr)
	}
	if cfg.Pipeline.FrameRate != 120 {
		t.Fatalf("env frame rate not applied: %v", cfg.Pipeline.FrameRate)
	}
	if cfg.Pipeline.QueueCapacity != 0 {
		t.Fatalf("invalid env value must be ignored, got %d", cfg.Pipeline.QueueCapacity)
	}
}
