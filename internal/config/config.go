package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/darkwire-sim/darkwire/internal/pool"
)

// Duration is a time.Duration that unmarshals from YAML duration
// strings ("90s", "2h30m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level runtime configuration. Unknown fields are
// rejected at load time so typos fail fast.
type Config struct {
	// Speed is the initial game-speed multiplier.
	Speed float64 `yaml:"speed,omitempty"`

	// SavePath is the SQLite save-game file. Empty means in-memory.
	SavePath string `yaml:"savePath,omitempty"`

	// Definitions lists CUE mission definition files or directories.
	Definitions []string `yaml:"definitions,omitempty"`

	Restore   RestoreConfig   `yaml:"restore,omitempty"`
	Pool      PoolConfig      `yaml:"pool,omitempty"`
	Generator GeneratorConfig `yaml:"generator,omitempty"`
}

// RestoreConfig tunes pending-event restoration after a load.
type RestoreConfig struct {
	// Buffer is added to each restored delay to absorb load jitter.
	Buffer Duration `yaml:"buffer,omitempty"`
	// Floor is the minimum restored delay.
	Floor Duration `yaml:"floor,omitempty"`
}

// PoolConfig mirrors the pool manager's invariants and tuning.
type PoolConfig struct {
	MinSize            int      `yaml:"minSize,omitempty"`
	MaxSize            int      `yaml:"maxSize,omitempty"`
	MinAccessible      int      `yaml:"minAccessible,omitempty"`
	MinLifetime        Duration `yaml:"minLifetime,omitempty"`
	RegenDelay         Duration `yaml:"regenDelay,omitempty"`
	ArcChance          float64  `yaml:"arcChance,omitempty"`
	ExtensionChance    float64  `yaml:"extensionChance,omitempty"`
	ExtensionPayoutMin float64  `yaml:"extensionPayoutMin,omitempty"`
	ExtensionPayoutMax float64  `yaml:"extensionPayoutMax,omitempty"`
}

// GeneratorConfig mirrors the procedural generator's tuning.
type GeneratorConfig struct {
	BasePayout         int      `yaml:"basePayout,omitempty"`
	TimePerObjective   Duration `yaml:"timePerObjective,omitempty"`
	TimeBonusPerMinute int      `yaml:"timeBonusPerMinute,omitempty"`
	ArcBonusPerPart    float64  `yaml:"arcBonusPerPart,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	p := pool.DefaultConfig()
	g := pool.DefaultGeneratorConfig()
	return Config{
		Speed: 1,
		Restore: RestoreConfig{
			Buffer: Duration(3 * time.Second),
			Floor:  Duration(time.Second),
		},
		Pool: PoolConfig{
			MinSize:            p.MinSize,
			MaxSize:            p.MaxSize,
			MinAccessible:      p.MinAccessible,
			MinLifetime:        Duration(p.MinLifetime),
			RegenDelay:         Duration(p.RegenDelay),
			ArcChance:          p.ArcChance,
			ExtensionChance:    p.ExtensionChance,
			ExtensionPayoutMin: p.ExtensionPayoutMin,
			ExtensionPayoutMax: p.ExtensionPayoutMax,
		},
		Generator: GeneratorConfig{
			BasePayout:         g.BasePayout,
			TimePerObjective:   Duration(g.TimePerObjective),
			TimeBonusPerMinute: g.TimeBonusPerMinute,
			ArcBonusPerPart:    g.ArcBonusPerPart,
		},
	}
}

// Load reads and parses a YAML configuration file. Absent fields keep
// their defaults; unknown fields (typos) are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", c.Speed)
	}
	if c.Pool.MinSize <= 0 || c.Pool.MaxSize < c.Pool.MinSize {
		return fmt.Errorf("pool size bounds [%d, %d] are invalid", c.Pool.MinSize, c.Pool.MaxSize)
	}
	if c.Pool.MinAccessible > c.Pool.MinSize {
		return fmt.Errorf("minAccessible %d exceeds minSize %d", c.Pool.MinAccessible, c.Pool.MinSize)
	}
	if c.Pool.ExtensionChance < 0 || c.Pool.ExtensionChance > 1 {
		return fmt.Errorf("extensionChance %v outside [0, 1]", c.Pool.ExtensionChance)
	}
	if c.Pool.ExtensionPayoutMax < c.Pool.ExtensionPayoutMin {
		return fmt.Errorf("extension payout range [%v, %v] is inverted",
			c.Pool.ExtensionPayoutMin, c.Pool.ExtensionPayoutMax)
	}
	if c.Restore.Floor.Std() < 0 || c.Restore.Buffer.Std() < 0 {
		return fmt.Errorf("restore buffer and floor must be non-negative")
	}
	return nil
}

// PoolConfig converts to the pool manager's config type.
func (c Config) PoolConfig() pool.Config {
	return pool.Config{
		MinSize:            c.Pool.MinSize,
		MaxSize:            c.Pool.MaxSize,
		MinAccessible:      c.Pool.MinAccessible,
		MinLifetime:        c.Pool.MinLifetime.Std(),
		RegenDelay:         c.Pool.RegenDelay.Std(),
		ArcChance:          c.Pool.ArcChance,
		ExtensionChance:    c.Pool.ExtensionChance,
		ExtensionPayoutMin: c.Pool.ExtensionPayoutMin,
		ExtensionPayoutMax: c.Pool.ExtensionPayoutMax,
	}
}

// GeneratorConfig converts to the generator's config type.
func (c Config) GeneratorConfig() pool.GeneratorConfig {
	return pool.GeneratorConfig{
		BasePayout:         c.Generator.BasePayout,
		TimePerObjective:   c.Generator.TimePerObjective.Std(),
		TimeBonusPerMinute: c.Generator.TimeBonusPerMinute,
		ArcBonusPerPart:    c.Generator.ArcBonusPerPart,
	}
}
