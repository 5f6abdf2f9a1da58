package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/script"
	"starhollow/engine/internal/telemetry"
)

// FileConfig is the on-disk configuration. Every field is optional; zero
// values fall back to the built-in defaults, and a handful of environment
// variables override the file for container deployments.
type FileConfig struct {
	ListenAddr string `yaml:"listenAddr"`

	Pipeline struct {
		FrameRate              float64 `yaml:"frameRate"`
		QueueCapacity          int     `yaml:"queueCapacity"`
		AgentCommandsPerSecond int     `yaml:"agentCommandsPerSecond"`
		FrameSkipTolerance     int     `yaml:"frameSkipTolerance"`
		SweepIntervalFrames    uint64  `yaml:"sweepIntervalFrames"`
		ShutdownTimeoutSeconds float64 `yaml:"shutdownTimeoutSeconds"`
		SwapPolicy             string  `yaml:"swapPolicy"`
	} `yaml:"pipeline"`

	Journal struct {
		MaxFrames     int     `yaml:"maxFrames"`
		MaxAgeSeconds float64 `yaml:"maxAgeSeconds"`
	} `yaml:"journal"`

	Logging struct {
		Sinks           []string `yaml:"sinks"`
		BufferSize      int      `yaml:"bufferSize"`
		MinimumSeverity string   `yaml:"minimumSeverity"`
		JSONFilePath    string   `yaml:"jsonFilePath"`
	} `yaml:"logging"`

	Audio struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audio"`

	Scene struct {
		Entities int     `yaml:"entities"`
		Radius   float64 `yaml:"radius"`
		Speed    float64 `yaml:"speed"`
	} `yaml:"scene"`
}

// DefaultFileConfig returns the configuration used when no file is given.
func DefaultFileConfig() FileConfig {
	var cfg FileConfig
	cfg.ListenAddr = ":8080"
	return cfg
}

// LoadFileConfig reads a YAML configuration file. A missing path returns the
// defaults; a present but unreadable or malformed file is an error.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	return cfg, nil
}

// ApplyEnv overrides file settings from the environment. Invalid values are
// logged and ignored rather than failing startup.
func (c *FileConfig) ApplyEnv(logger telemetry.Logger) {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if raw := os.Getenv("ENGINE_LISTEN_ADDR"); raw != "" {
		c.ListenAddr = raw
	}
	if raw := os.Getenv("ENGINE_FRAME_RATE"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Pipeline.FrameRate = value
		} else {
			logger.Printf("invalid ENGINE_FRAME_RATE=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("ENGINE_QUEUE_CAPACITY"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			c.Pipeline.QueueCapacity = value
		} else {
			logger.Printf("invalid ENGINE_QUEUE_CAPACITY=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("ENGINE_AGENT_COMMANDS_PER_SECOND"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			c.Pipeline.AgentCommandsPerSecond = value
		} else {
			logger.Printf("invalid ENGINE_AGENT_COMMANDS_PER_SECOND=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("ENGINE_SWAP_POLICY"); raw != "" {
		c.Pipeline.SwapPolicy = raw
	}
	if raw := os.Getenv("ENGINE_AUDIO_ENABLED"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			c.Audio.Enabled = value
		} else {
			logger.Printf("invalid ENGINE_AUDIO_ENABLED=%q: %v", raw, err)
		}
	}
}

// PipelineConfig translates the file settings into pipeline tunables.
func (c FileConfig) PipelineConfig(logger telemetry.Logger) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.Pipeline.FrameRate > 0 {
		cfg.FrameRate = c.Pipeline.FrameRate
	}
	if c.Pipeline.QueueCapacity > 0 {
		cfg.QueueCapacity = c.Pipeline.QueueCapacity
	}
	if c.Pipeline.AgentCommandsPerSecond != 0 {
		cfg.AgentCommandsPerSecond = c.Pipeline.AgentCommandsPerSecond
	}
	if c.Pipeline.FrameSkipTolerance > 0 {
		cfg.FrameSkipTolerance = c.Pipeline.FrameSkipTolerance
	}
	if c.Pipeline.SweepIntervalFrames > 0 {
		cfg.SweepInterval = c.Pipeline.SweepIntervalFrames
	}
	if c.Pipeline.ShutdownTimeoutSeconds > 0 {
		cfg.ShutdownTimeout = time.Duration(c.Pipeline.ShutdownTimeoutSeconds * float64(time.Second))
	}
	switch c.Pipeline.SwapPolicy {
	case "", "dirty":
		cfg.SwapPolicy = pipeline.SwapDirty
	case "full":
		cfg.SwapPolicy = pipeline.SwapFull
	default:
		if logger != nil {
			logger.Printf("unknown swapPolicy %q, using dirty", c.Pipeline.SwapPolicy)
		}
		cfg.SwapPolicy = pipeline.SwapDirty
	}
	return cfg
}

// SceneConfig translates the file settings into the demo worker's tunables.
func (c FileConfig) SceneConfig(logger telemetry.Logger) script.OrbiterConfig {
	cfg := script.DefaultOrbiterConfig()
	if c.Scene.Entities > 0 {
		cfg.Entities = c.Scene.Entities
	}
	if c.Scene.Radius > 0 {
		cfg.Radius = c.Scene.Radius
	}
	if c.Scene.Speed != 0 {
		cfg.Speed = c.Scene.Speed
	}
	cfg.Logger = logger
	return cfg
}

// JournalRetention reports the journal bounds, defaulted for a 60Hz frame
// cadence.
func (c FileConfig) JournalRetention() (int, time.Duration) {
	maxFrames := c.Journal.MaxFrames
	if maxFrames <= 0 {
		maxFrames = 600
	}
	maxAge := time.Duration(c.Journal.MaxAgeSeconds * float64(time.Second))
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return maxFrames, maxAge
}
