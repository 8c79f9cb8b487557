package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const (
	// DefaultAppID is the placeholder Discord application the presence is published under.
	DefaultAppID = "1234567890123456789"

	defaultUpdateInterval = 15
	appDirName            = "MultiRichPresence"
	fileName              = "config.json"

	envConfigPath     = "MULTIPRESENCE_CONFIG"
	envUpdateInterval = "MULTIPRESENCE_UPDATE_INTERVAL"
	envAppID          = "MULTIPRESENCE_APP_ID"
)

// Config mirrors the persisted settings document field for field.
type Config struct {
	BlacklistedWords      []string        `json:"blacklisted_words"`
	ShowSystemStats       bool            `json:"show_system_stats"`
	ShowTime              bool            `json:"show_time"`
	ShowApplications      bool            `json:"show_applications"`
	CustomMessages        []string        `json:"custom_messages"`
	UpdateIntervalSeconds uint64          `json:"update_interval_seconds"`
	DiscordAppID          string          `json:"discord_app_id"`
	ActivityFilters       ActivityFilters `json:"activity_filters"`
}

// ActivityFilters governs which processes make it into a snapshot.
type ActivityFilters struct {
	HideSystemProcesses  bool     `json:"hide_system_processes"`
	HideBackgroundApps   bool     `json:"hide_background_apps"`
	MinimumCPUUsage      float32  `json:"minimum_cpu_usage"`
	BlacklistedProcesses []string `json:"blacklisted_processes"`
}

// Default returns the settings used when nothing is persisted yet.
func Default() Config {
	return Config{
		BlacklistedWords:      []string{"password", "secret", "private"},
		ShowSystemStats:       true,
		ShowTime:              true,
		ShowApplications:      true,
		CustomMessages:        []string{"Working on something cool"},
		UpdateIntervalSeconds: defaultUpdateInterval,
		DiscordAppID:          DefaultAppID,
		ActivityFilters: ActivityFilters{
			HideSystemProcesses:  true,
			HideBackgroundApps:   true,
			MinimumCPUUsage:      0.1,
			BlacklistedProcesses: []string{"dwm.exe", "winlogon.exe", "csrss.exe"},
		},
	}
}

// UpdateInterval returns the configured cadence, never less than one second.
func (c Config) UpdateInterval() time.Duration {
	if c.UpdateIntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// Clone returns a deep copy so callers can mutate slices freely.
func (c Config) Clone() Config {
	out := c
	out.BlacklistedWords = append([]string(nil), c.BlacklistedWords...)
	out.CustomMessages = append([]string(nil), c.CustomMessages...)
	out.ActivityFilters.BlacklistedProcesses = append([]string(nil), c.ActivityFilters.BlacklistedProcesses...)
	return out
}

// Equal reports whether c and o hold the same settings.
func (c Config) Equal(o Config) bool {
	return c.ShowSystemStats == o.ShowSystemStats &&
		c.ShowTime == o.ShowTime &&
		c.ShowApplications == o.ShowApplications &&
		c.UpdateIntervalSeconds == o.UpdateIntervalSeconds &&
		c.DiscordAppID == o.DiscordAppID &&
		slices.Equal(c.BlacklistedWords, o.BlacklistedWords) &&
		slices.Equal(c.CustomMessages, o.CustomMessages) &&
		c.ActivityFilters.HideSystemProcesses == o.ActivityFilters.HideSystemProcesses &&
		c.ActivityFilters.HideBackgroundApps == o.ActivityFilters.HideBackgroundApps &&
		c.ActivityFilters.MinimumCPUUsage == o.ActivityFilters.MinimumCPUUsage &&
		slices.Equal(c.ActivityFilters.BlacklistedProcesses, o.ActivityFilters.BlacklistedProcesses)
}

// SettableKeys lists the scalar settings Set understands.
func SettableKeys() []string {
	return []string{
		"show_system_stats",
		"show_time",
		"show_applications",
		"update_interval_seconds",
		"discord_app_id",
		"hide_system_processes",
		"hide_background_apps",
		"minimum_cpu_usage",
	}
}

// Set assigns one scalar setting from its textual form. Keys use the
// JSON field names; activity filter keys may carry an
// "activity_filters." prefix. The result is validated.
func (c *Config) Set(key, value string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "activity_filters.")
	value = strings.TrimSpace(value)

	next := c.Clone()
	var err error
	switch key {
	case "show_system_stats":
		next.ShowSystemStats, err = strconv.ParseBool(value)
	case "show_time":
		next.ShowTime, err = strconv.ParseBool(value)
	case "show_applications":
		next.ShowApplications, err = strconv.ParseBool(value)
	case "update_interval_seconds":
		next.UpdateIntervalSeconds, err = strconv.ParseUint(value, 10, 64)
	case "discord_app_id":
		next.DiscordAppID = value
	case "hide_system_processes":
		next.ActivityFilters.HideSystemProcesses, err = strconv.ParseBool(value)
	case "hide_background_apps":
		next.ActivityFilters.HideBackgroundApps, err = strconv.ParseBool(value)
	case "minimum_cpu_usage":
		var f float64
		f, err = strconv.ParseFloat(value, 32)
		next.ActivityFilters.MinimumCPUUsage = float32(f)
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettableKeys(), ", "))
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Validate reports settings the pipeline cannot honour.
func (c Config) Validate() error {
	if c.UpdateIntervalSeconds < 1 {
		return errors.New("update_interval_seconds must be >= 1")
	}
	if strings.TrimSpace(c.DiscordAppID) == "" {
		return errors.New("discord_app_id is required")
	}
	if c.ActivityFilters.MinimumCPUUsage < 0 {
		return errors.New("minimum_cpu_usage must be >= 0")
	}
	return nil
}

// DefaultPath returns the per-user config location, honouring MULTIPRESENCE_CONFIG.
func DefaultPath() (string, error) {
	if explicit := os.Getenv(envConfigPath); explicit != "" {
		return explicit, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, appDirName, fileName), nil
}

// ResolvePath returns path, or DefaultPath when path is empty.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultPath()
}

// Load never fails: any problem reading or parsing the file yields the
// defaults, logged at warn level. Environment overrides apply afterwards.
func Load(path string) Config {
	cfg, err := LoadFile(path)
	if err != nil {
		slog.Warn("using default config", "path", path, "error", err)
		cfg = Default()
	}
	applyEnvOverrides(&cfg)
	return cfg
}

// LoadFile reads path strictly. A missing file is not an error and yields
// the defaults; a malformed or invalid document is.
func LoadFile(path string) (Config, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return Default(), err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("read config %s: %w", resolved, err)
	}

	// Start from defaults so fields absent from older files keep sane values.
	cfg := Default()
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", resolved, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	return cfg, nil
}

// Save writes cfg as indented JSON, replacing the file atomically.
func Save(path string, cfg Config) error {
	resolved, err := ResolvePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// WithEnv returns a copy of cfg with environment overrides applied.
func WithEnv(cfg Config) Config {
	cfg = cfg.Clone()
	applyEnvOverrides(&cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envUpdateInterval); v != "" {
		if secs, err := strconv.ParseUint(v, 10, 64); err == nil && secs > 0 {
			cfg.UpdateIntervalSeconds = secs
		} else {
			slog.Warn("ignoring invalid env override", "name", envUpdateInterval, "value", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv(envAppID)); v != "" {
		cfg.DiscordAppID = v
	}
}
