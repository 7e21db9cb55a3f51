// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mission-runner/internal/platform"
)

// DefaultTrials is the number of trials of a full run.
const DefaultTrials = 30000

// Timing holds every fixed wait used by the runner.
type Timing struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	StartBackoff   time.Duration `yaml:"start_backoff"`
	Cooldown       time.Duration `yaml:"cooldown"`
	RunningTimeout time.Duration `yaml:"running_timeout"` // zero waits forever
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Video configures the recorded video stream.
type Video struct {
	Enabled         bool `yaml:"enabled"`
	FramesPerSecond int  `yaml:"frames_per_second"`
	BitRate         int  `yaml:"bit_rate"`
}

// Recording selects what each trial archive contains.
type Recording struct {
	Rewards bool  `yaml:"rewards"`
	Video   Video `yaml:"video"`
}

// Mission configures the generated mission description.
type Mission struct {
	Preset         string `yaml:"preset"`
	PresetFile     string `yaml:"preset_file"`
	SummaryPrefix  string `yaml:"summary_prefix"`
	ItemCount      int    `yaml:"item_count"`
	ArenaHalfWidth int    `yaml:"arena_half_width"`
	DropHeight     int    `yaml:"drop_height"`
	TimeLimitMs    int    `yaml:"time_limit_ms"`
	Seed           int64  `yaml:"seed"` // zero picks a random seed
	Validate       bool   `yaml:"validate"`
}

// Greptime configures the optional GreptimeDB result sink.
type Greptime struct {
	Endpoint    string `yaml:"endpoint"`
	Database    string `yaml:"database"`
	TrialTable  string `yaml:"trial_table"`
	RewardTable string `yaml:"reward_table"`
}

// RunnerConfig is the root configuration of a mission run.
type RunnerConfig struct {
	ExperimentID  string              `yaml:"experiment_id"`
	Role          int                 `yaml:"role"`
	Trials        int                 `yaml:"trials"`
	RecordingsDir string              `yaml:"recordings_dir"`
	StartAttempts int                 `yaml:"start_attempts"`
	Clients       []platform.Endpoint `yaml:"clients"`
	Timing        Timing              `yaml:"timing"`
	Recording     Recording           `yaml:"recording"`
	Mission       Mission             `yaml:"mission"`
	Greptime      Greptime            `yaml:"greptime"`
	AdminAddr     string              `yaml:"admin_addr"`
	LogLevel      string              `yaml:"log_level"`
}

// Default returns the configuration of the stock item-collection experiment.
func Default() *RunnerConfig {
	return &RunnerConfig{
		ExperimentID:  "itemTestExperiment",
		Role:          0,
		Trials:        DefaultTrials,
		RecordingsDir: "EatingRecordings",
		StartAttempts: 3,
		Clients: []platform.Endpoint{
			{Host: "127.0.0.1", Port: 10000},
			{Host: "127.0.0.1", Port: 10001},
			{Host: "127.0.0.1", Port: 10002},
			{Host: "127.0.0.1", Port: 10003},
		},
		Timing: Timing{
			PollInterval:   100 * time.Millisecond,
			StartBackoff:   2 * time.Second,
			Cooldown:       500 * time.Millisecond,
			ConnectTimeout: 5 * time.Second,
		},
		Recording: Recording{
			Rewards: true,
			Video:   Video{Enabled: true, FramesPerSecond: 24, BitRate: 400000},
		},
		Mission: Mission{
			Preset:         "hungry-caterpillar",
			SummaryPrefix:  "Nom nom nom run #",
			ItemCount:      400,
			ArenaHalfWidth: 50,
			DropHeight:     250,
			Validate:       true,
		},
		Greptime: Greptime{
			Database:    "public",
			TrialTable:  "trial_results",
			RewardTable: "reward_events",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config on top of the defaults, validating it against a CUE
// schema first when cueSchemaPath is set. An empty configPath uses the defaults.
// Environment overrides are applied last.
func Load(configPath, cueSchemaPath string) (*RunnerConfig, error) {
	cfg := Default()
	if configPath != "" {
		if cueSchemaPath != "" {
			if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
				return nil, err
			}
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from environment variables.
func ApplyEnv(cfg *RunnerConfig) error {
	if v := os.Getenv("MISSION_EXPERIMENT_ID"); v != "" {
		cfg.ExperimentID = v
	}
	if v := os.Getenv("MISSION_CLIENTS"); v != "" {
		var eps []platform.Endpoint
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			ep, err := platform.ParseEndpoint(part)
			if err != nil {
				return fmt.Errorf("invalid MISSION_CLIENTS: %w", err)
			}
			eps = append(eps, ep)
		}
		cfg.Clients = eps
	}
	if v := os.Getenv("MISSION_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MISSION_POLL_INTERVAL: %w", err)
		}
		cfg.Timing.PollInterval = d
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		cfg.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_DATABASE"); v != "" {
		cfg.Greptime.Database = v
	}
	if v := os.Getenv("TRIAL_TABLE"); v != "" {
		cfg.Greptime.TrialTable = v
	}
	if v := os.Getenv("REWARD_TABLE"); v != "" {
		cfg.Greptime.RewardTable = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Validate checks semantic constraints the schema cannot express.
func (c *RunnerConfig) Validate() error {
	var errs []error
	if c.ExperimentID == "" {
		errs = append(errs, errors.New("experiment_id is required"))
	}
	if c.Trials < 1 {
		errs = append(errs, fmt.Errorf("trials must be at least 1, got %d", c.Trials))
	}
	if c.StartAttempts < 1 {
		errs = append(errs, fmt.Errorf("start_attempts must be at least 1, got %d", c.StartAttempts))
	}
	if len(c.Clients) == 0 {
		errs = append(errs, errors.New("at least one client endpoint is required"))
	}
	seen := make(map[platform.Endpoint]bool)
	for _, ep := range c.Clients {
		if ep.Host == "" || ep.Port <= 0 || ep.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid client endpoint %s", ep))
		}
		if seen[ep] {
			errs = append(errs, fmt.Errorf("duplicate client endpoint %s", ep))
		}
		seen[ep] = true
	}
	if c.Timing.PollInterval <= 0 {
		errs = append(errs, errors.New("timing.poll_interval must be positive"))
	}
	if c.Timing.StartBackoff < 0 || c.Timing.Cooldown < 0 || c.Timing.RunningTimeout < 0 {
		errs = append(errs, errors.New("timing values must not be negative"))
	}
	if c.Timing.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("timing.connect_timeout must be positive"))
	}
	if c.Recording.Video.Enabled && (c.Recording.Video.FramesPerSecond <= 0 || c.Recording.Video.BitRate <= 0) {
		errs = append(errs, errors.New("recording.video needs positive frames_per_second and bit_rate"))
	}
	if c.Mission.ItemCount < 0 {
		errs = append(errs, errors.New("mission.item_count must not be negative"))
	}
	return errors.Join(errs...)
}

// ClientPool builds the endpoint pool from the configured clients.
func (c *RunnerConfig) ClientPool() *platform.ClientPool {
	return platform.NewClientPool(c.Clients...)
}
