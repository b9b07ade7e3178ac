// Package config loads engine configuration from a YAML file merged with
// SAGE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sagecoach/engine/internal/gate"
	"github.com/sagecoach/engine/internal/policy"
)

// Config holds all engine configuration. Missing keys fall back to the
// defaults baked into each subsystem.
type Config struct {
	DBPath   string         `mapstructure:"db_path"`
	LogLevel string         `mapstructure:"log_level"`
	Model    ModelConfig    `mapstructure:"model"`
	Safety   SafetyConfig   `mapstructure:"safety"`
	Learning LearningConfig `mapstructure:"learning"`
}

// ModelConfig configures the inference collaborator.
type ModelConfig struct {
	Name       string `mapstructure:"name"`
	APIKey     string `mapstructure:"api_key"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// SafetyConfig mirrors the safety-gate limits.
type SafetyConfig struct {
	MaxActionsPerDay     int      `mapstructure:"max_actions_per_day"`
	QuietHoursStart      int      `mapstructure:"quiet_hours_start"`
	QuietHoursEnd        int      `mapstructure:"quiet_hours_end"`
	MinDataQuality       float64  `mapstructure:"min_data_quality"`
	ForbiddenCategories  []string `mapstructure:"forbidden_categories"`
	MaxConsecutiveNudges int      `mapstructure:"max_consecutive_nudges"`
}

// LearningConfig mirrors the policy learning constants.
type LearningConfig struct {
	LearningRate float64 `mapstructure:"learning_rate"`
	DecayRate    float64 `mapstructure:"decay_rate"`
	MaxDeltaNorm float64 `mapstructure:"max_delta_norm"`
	RewardScale  float64 `mapstructure:"reward_scale"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	g := gate.DefaultConfig()
	l := policy.DefaultLearnConfig()
	return Config{
		DBPath:   "sage.db",
		LogLevel: "info",
		Model: ModelConfig{
			Name:       "claude-sonnet-4-5",
			MaxTokens:  512,
			MaxRetries: 2,
		},
		Safety: SafetyConfig{
			MaxActionsPerDay:     g.MaxActionsPerDay,
			QuietHoursStart:      g.QuietHoursStart,
			QuietHoursEnd:        g.QuietHoursEnd,
			MinDataQuality:       g.MinDataQuality,
			MaxConsecutiveNudges: g.MaxConsecutiveNudges,
		},
		Learning: LearningConfig{
			LearningRate: l.LearningRate,
			DecayRate:    l.DecayRate,
			MaxDeltaNorm: l.MaxDeltaNorm,
			RewardScale:  l.RewardScale,
		},
	}
}

// Load reads config from the given path (optional) and the environment.
// An empty path or a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(expandPath(path))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					return Config{}, fmt.Errorf("read config %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// GateConfig converts the safety section to a gate config.
func (c Config) GateConfig() gate.Config {
	out := gate.Config{
		MaxActionsPerDay:     c.Safety.MaxActionsPerDay,
		QuietHoursStart:      c.Safety.QuietHoursStart,
		QuietHoursEnd:        c.Safety.QuietHoursEnd,
		MinDataQuality:       c.Safety.MinDataQuality,
		MaxConsecutiveNudges: c.Safety.MaxConsecutiveNudges,
	}
	for _, cat := range c.Safety.ForbiddenCategories {
		out.ForbiddenCategories = append(out.ForbiddenCategories, policy.Category(cat))
	}
	return out
}

// LearnConfig converts the learning section to a policy learn config.
func (c Config) LearnConfig() policy.LearnConfig {
	return policy.LearnConfig{
		LearningRate: c.Learning.LearningRate,
		DecayRate:    c.Learning.DecayRate,
		MaxDeltaNorm: c.Learning.MaxDeltaNorm,
		RewardScale:  c.Learning.RewardScale,
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.max_tokens", d.Model.MaxTokens)
	v.SetDefault("model.max_retries", d.Model.MaxRetries)
	v.SetDefault("safety.max_actions_per_day", d.Safety.MaxActionsPerDay)
	v.SetDefault("safety.quiet_hours_start", d.Safety.QuietHoursStart)
	v.SetDefault("safety.quiet_hours_end", d.Safety.QuietHoursEnd)
	v.SetDefault("safety.min_data_quality", d.Safety.MinDataQuality)
	v.SetDefault("safety.max_consecutive_nudges", d.Safety.MaxConsecutiveNudges)
	v.SetDefault("learning.learning_rate", d.Learning.LearningRate)
	v.SetDefault("learning.decay_rate", d.Learning.DecayRate)
	v.SetDefault("learning.max_delta_norm", d.Learning.MaxDeltaNorm)
	v.SetDefault("learning.reward_scale", d.Learning.RewardScale)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
