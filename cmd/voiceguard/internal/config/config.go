// Package config loads the voiceguard configuration file.
//
// Configuration is read from os.UserConfigDir()/voiceguard/config.yaml
// unless --config names another file:
//
//	~/Library/Application Support/voiceguard/config.yaml   (macOS)
//	~/.config/voiceguard/config.yaml                       (Linux)
//	%AppData%/voiceguard/config.yaml                       (Windows)
//
// A missing default file is not an error; every field has a default.
// Selected fields can be overridden with VOICEGUARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/voiceguard/go/pkg/cli"
	"github.com/haivivi/voiceguard/go/pkg/detection"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/jsontime"
	"github.com/haivivi/voiceguard/go/pkg/ratelimit"
	"github.com/haivivi/voiceguard/go/pkg/storage"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

// AppName is the directory name under os.UserConfigDir().
const AppName = "voiceguard"

// DemoKey is the API key accepted when none are configured.
const DemoKey = "demo_key_12345"

// Backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Audio     AudioConfig     `yaml:"audio" json:"audio"`
	Features  FeaturesConfig  `yaml:"features" json:"features"`
	Model     ModelConfig     `yaml:"model" json:"model"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	RateLimit RateLimitConfig `yaml:"ratelimit" json:"ratelimit"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	Log       LogConfig       `yaml:"log" json:"log"`

	// Path is the file the configuration was read from, empty when only
	// defaults apply.
	Path string `yaml:"-" json:"-"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr           string             `yaml:"addr" json:"addr"`
	APIKeys        []string           `yaml:"api_keys" json:"api_keys"`
	MaxUploadBytes int                `yaml:"max_upload_bytes" json:"max_upload_bytes"`
	RequestTimeout *jsontime.Duration `yaml:"request_timeout" json:"request_timeout"`
	Metrics        *bool              `yaml:"metrics" json:"metrics"`
}

// AudioConfig configures waveform normalisation.
type AudioConfig struct {
	SampleRate  int                `yaml:"sample_rate" json:"sample_rate"`
	MinDuration *jsontime.Duration `yaml:"min_duration" json:"min_duration"`
	MaxDuration *jsontime.Duration `yaml:"max_duration" json:"max_duration"`
	TrimTopDB   float64            `yaml:"trim_top_db" json:"trim_top_db"`
	DisableTrim bool               `yaml:"disable_trim" json:"disable_trim"`
}

// FeaturesConfig tunes feature extraction. The vector layout is fixed.
type FeaturesConfig struct {
	PitchMin         float64 `yaml:"pitch_min" json:"pitch_min"`
	PitchMax         float64 `yaml:"pitch_max" json:"pitch_max"`
	VoicingThreshold float64 `yaml:"voicing_threshold" json:"voicing_threshold"`
	SilenceTopDB     float64 `yaml:"silence_top_db" json:"silence_top_db"`
}

// ModelConfig locates the classifier bundle.
type ModelConfig struct {
	// Path is a local file or s3://bucket/key. Empty selects the built-in
	// heuristic scorer.
	Path string `yaml:"path" json:"path"`

	// Watch reloads a local bundle when the file changes.
	Watch  bool               `yaml:"watch" json:"watch"`
	Settle *jsontime.Duration `yaml:"settle" json:"settle"`

	S3 storage.S3Config `yaml:"s3" json:"s3"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend string             `yaml:"backend" json:"backend"`
	TTL     *jsontime.Duration `yaml:"ttl" json:"ttl"`

	// Dir is the badger data directory. Defaults to the user cache dir.
	Dir string `yaml:"dir" json:"dir"`

	// SweepInterval is how often expired memory entries are dropped.
	SweepInterval *jsontime.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// RateLimitConfig configures per-credential limits.
type RateLimitConfig struct {
	PerMinute int    `yaml:"per_minute" json:"per_minute"`
	PerHour   int    `yaml:"per_hour" json:"per_hour"`
	Backend   string `yaml:"backend" json:"backend"`
	FailOpen  bool   `yaml:"fail_open" json:"fail_open"`
	Prefix    string `yaml:"prefix" json:"prefix"`
}

// RedisConfig is shared by the redis cache and rate limit backends.
type RedisConfig struct {
	URL string `yaml:"url" json:"url"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if len(c.Server.APIKeys) == 0 {
		c.Server.APIKeys = []string{DemoKey}
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}
	if c.Server.Metrics == nil {
		on := true
		c.Server.Metrics = &on
	}

	wd := waveform.DefaultConfig()
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = wd.TargetRate
	}
	if c.Audio.MinDuration == nil {
		c.Audio.MinDuration = jsontime.FromDuration(wd.MinDuration)
	}
	if c.Audio.MaxDuration == nil {
		c.Audio.MaxDuration = jsontime.FromDuration(wd.MaxDuration)
	}
	if c.Audio.TrimTopDB <= 0 {
		c.Audio.TrimTopDB = wd.TopDB
	}
	if c.Server.RequestTimeout == nil {
		c.Server.RequestTimeout = jsontime.FromDuration(detection.TimeoutFor(c.Audio.MaxDuration.Duration()))
	}

	fd := features.DefaultConfig()
	if c.Features.PitchMin <= 0 {
		c.Features.PitchMin = fd.PitchMin
	}
	if c.Features.PitchMax <= 0 {
		c.Features.PitchMax = fd.PitchMax
	}
	if c.Features.VoicingThreshold <= 0 {
		c.Features.VoicingThreshold = fd.VoicingThreshold
	}
	if c.Features.SilenceTopDB <= 0 {
		c.Features.SilenceTopDB = fd.SilenceTopDB
	}

	if c.Model.Settle == nil {
		c.Model.Settle = jsontime.FromDuration(500 * time.Millisecond)
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}
	if c.Cache.TTL == nil {
		c.Cache.TTL = jsontime.FromDuration(time.Hour)
	}
	if c.Cache.SweepInterval == nil {
		c.Cache.SweepInterval = jsontime.FromDuration(5 * time.Minute)
	}

	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = ratelimit.DefaultLimits.PerMinute
	}
	if c.RateLimit.PerHour <= 0 {
		c.RateLimit.PerHour = ratelimit.DefaultLimits.PerHour
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = BackendMemory
	}
	if c.RateLimit.Prefix == "" {
		c.RateLimit.Prefix = "voiceguard:ratelimit"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	p, err := cli.NewPaths(AppName)
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return p.ConfigFile(), nil
}

// Load reads path, or the default location when path is empty. Only an
// explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := LoadFrom(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg = Default()
		err = nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// LoadFrom reads and validates the file at path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from VOICEGUARD_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("VOICEGUARD_API_KEYS"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			c.Server.APIKeys = keys
		}
	}
	if v := getenv("VOICEGUARD_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("VOICEGUARD_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := getenv("VOICEGUARD_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("VOICEGUARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate reports inconsistent settings.
func (c *Config) Validate() error {
	if c.Audio.MinDuration.Duration() > c.Audio.MaxDuration.Duration() {
		return fmt.Errorf("audio.min_duration %v exceeds max_duration %v",
			c.Audio.MinDuration.Duration(), c.Audio.MaxDuration.Duration())
	}
	if c.Features.PitchMin >= c.Features.PitchMax {
		return fmt.Errorf("features.pitch_min %v must be below pitch_max %v", c.Features.PitchMin, c.Features.PitchMax)
	}
	switch c.Cache.Backend {
	case BackendNone, BackendMemory, BackendBadger, BackendRedis:
	default:
		return fmt.Errorf("cache.backend %q: want none, memory, badger or redis", c.Cache.Backend)
	}
	switch c.RateLimit.Backend {
	case BackendNone, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("ratelimit.backend %q: want none, memory or redis", c.RateLimit.Backend)
	}
	if (c.Cache.Backend == BackendRedis || c.RateLimit.Backend == BackendRedis) && c.Redis.URL == "" {
		return errors.New("redis.url is required by the redis backends")
	}
	if c.Model.Watch && strings.HasPrefix(c.Model.Path, "s3://") {
		return errors.New("model.watch only supports local paths")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// NormalizerConfig returns the waveform settings.
func (c *Config) NormalizerConfig() waveform.Config {
	w := waveform.DefaultConfig()
	w.TargetRate = c.Audio.SampleRate
	w.MinDuration = c.Audio.MinDuration.Duration()
	w.MaxDuration = c.Audio.MaxDuration.Duration()
	w.TopDB = c.Audio.TrimTopDB
	w.DisableTrim = c.Audio.DisableTrim
	return w
}

// ExtractorConfig returns the feature settings. The analysis rate follows
// the normalised audio rate.
func (c *Config) ExtractorConfig() features.Config {
	f := features.DefaultConfig()
	f.Spectral.SampleRate = c.Audio.SampleRate
	f.PitchMin = c.Features.PitchMin
	f.PitchMax = c.Features.PitchMax
	f.VoicingThreshold = c.Features.VoicingThreshold
	f.SilenceTopDB = c.Features.SilenceTopDB
	return f
}

// Limits returns the rate limits.
func (c *Config) Limits() ratelimit.Limits {
	return ratelimit.Limits{PerMinute: c.RateLimit.PerMinute, PerHour: c.RateLimit.PerHour}
}

// CacheDir returns the badger directory, defaulting under the user config
// directory.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	p, err := cli.NewPaths(AppName)
	if err != nil {
		return "", err
	}
	return p.CacheDir(), nil
}

// Redacted returns a copy safe to print: API keys and secrets are shortened.
func (c *Config) Redacted() *Config {
	r := *c
	r.Server.APIKeys = make([]string, len(c.Server.APIKeys))
	for i, k := range c.Server.APIKeys {
		r.Server.APIKeys[i] = ratelimit.Redact(k)
	}
	if r.Model.S3.SecretAccessKey != "" {
		r.Model.S3.SecretAccessKey = "***"
	}
	if r.Redis.URL != "" {
		r.Redis.URL = redactURL(r.Redis.URL)
	}
	return &r
}

func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
