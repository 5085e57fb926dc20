package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OverlayConfig describes a read-only iCalendar feed merged into the
// calendar as notes (holidays, launch calendars, ...).
type OverlayConfig struct {
	// ID is an internal identifier used as the note source.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Color is a note palette name; empty means default.
	Color string `yaml:"color" json:"color"`
}

// APIConfig points at the external item/notes API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Token   string        `yaml:"token" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PopoverConfig is the fixed event detail popover geometry in CSS pixels.
type PopoverConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
	Margin int `yaml:"margin" json:"margin"`
}

// CalendarConfig controls view layout and interaction timing.
type CalendarConfig struct {
	// MonthCellLimit is how many items a month cell shows before "+N more".
	MonthCellLimit int `yaml:"month_cell_limit" json:"month_cell_limit"`
	// DayStartHour / DayEndHour bound the day view hour grid, inclusive.
	DayStartHour int `yaml:"day_start_hour" json:"day_start_hour"`
	DayEndHour   int `yaml:"day_end_hour" json:"day_end_hour"`
	// RowHeight is the day view hour row height in pixels.
	RowHeight int `yaml:"row_height" json:"row_height"`

	Popover PopoverConfig `yaml:"popover" json:"popover"`

	// SessionTTL evicts calendar sessions idle for longer than this.
	SessionTTL time.Duration `yaml:"session_ttl" json:"session_ttl"`
	// SearchDebounce delays picker searches.
	SearchDebounce time.Duration `yaml:"search_debounce" json:"search_debounce"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	SentryDSN string `yaml:"sentry_dsn" json:"-"`
	Env       string `yaml:"env" json:"env"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as the local display zone. Empty
	// means the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday starts a calendar week.
	// Supported values:
	//   - "sunday" (default)
	//   - "monday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// used for stats polling, overlay refresh and session eviction.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the overlay feed disk cache (body + ETag metadata).
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	API      APIConfig       `yaml:"api" json:"api"`
	Calendar CalendarConfig  `yaml:"calendar" json:"calendar"`
	Overlays []OverlayConfig `yaml:"overlays" json:"overlays"`
	Log      LogConfig       `yaml:"log" json:"log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "",
		WeekStart:   "sunday",
		RefreshCron: "*/5 * * * *",
		CacheDir:    "./var/ics-cache",
		API: APIConfig{
			BaseURL: "http://127.0.0.1:3000/api",
			Timeout: 15 * time.Second,
		},
		Calendar: CalendarConfig{
			MonthCellLimit: 3,
			DayStartHour:   6,
			DayEndHour:     23,
			RowHeight:      60,
			Popover: PopoverConfig{
				Width:  360,
				Height: 420,
				Margin: 16,
			},
			SessionTTL:     30 * time.Minute,
			SearchDebounce: 300 * time.Millisecond,
		},
		Overlays: []OverlayConfig{},
		Log: LogConfig{
			Level: "info",
			Env:   "production",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}

	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = def.API.Timeout
	}

	cal := &c.Calendar
	if cal.MonthCellLimit <= 0 {
		cal.MonthCellLimit = def.Calendar.MonthCellLimit
	}
	if cal.DayStartHour < 0 || cal.DayStartHour > 23 {
		cal.DayStartHour = def.Calendar.DayStartHour
	}
	if cal.DayEndHour <= 0 || cal.DayEndHour > 23 {
		cal.DayEndHour = def.Calendar.DayEndHour
	}
	if cal.DayEndHour < cal.DayStartHour {
		cal.DayStartHour = def.Calendar.DayStartHour
		cal.DayEndHour = def.Calendar.DayEndHour
	}
	if cal.RowHeight <= 0 {
		cal.RowHeight = def.Calendar.RowHeight
	}
	if cal.Popover.Width <= 0 {
		cal.Popover.Width = def.Calendar.Popover.Width
	}
	if cal.Popover.Height <= 0 {
		cal.Popover.Height = def.Calendar.Popover.Height
	}
	if cal.Popover.Margin <= 0 {
		cal.Popover.Margin = def.Calendar.Popover.Margin
	}
	if cal.SessionTTL <= 0 {
		cal.SessionTTL = def.Calendar.SessionTTL
	}
	if cal.SearchDebounce < 0 {
		cal.SearchDebounce = def.Calendar.SearchDebounce
	}

	if c.Overlays == nil {
		c.Overlays = []OverlayConfig{}
	}
	for i := range c.Overlays {
		if c.Overlays[i].ID == "" {
			if c.Overlays[i].Name != "" {
				c.Overlays[i].ID = c.Overlays[i].Name
			} else {
				c.Overlays[i].ID = c.Overlays[i].URL
			}
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Env == "" {
		c.Log.Env = def.Log.Env
	}
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// WeekStartDay maps WeekStart to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".contentcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
