package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Numbering NumberingConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds the embedded SQLite settings. The pragma values are
// applied best-effort when the connection opens.
type DatabaseConfig struct {
	Path               string // file path, or ":memory:"
	BusyTimeout        time.Duration
	JournalMode        string // WAL, DELETE, TRUNCATE, PERSIST, MEMORY, OFF
	Synchronous        string // OFF, NORMAL, FULL, EXTRA
	CacheSizeKB        int
	MmapSizeBytes      int64
	TempStore          string // DEFAULT, FILE, MEMORY
	SlowQueryThreshold time.Duration
	LogLevel           string // silent, error, warn, info
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DashboardConfig holds the aggregation settings
type DashboardConfig struct {
	MinRefreshInterval time.Duration
	OverdueAfterDays   int
	RecentInvoiceLimit int
}

// NumberingConfig holds document number prefixes
type NumberingConfig struct {
	InvoicePrefix  string
	PurchasePrefix string
}

// Load reads config.toml from the usual locations, then the SHOP_ environment
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations, where a missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.partshop")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Path:               v.GetString("database.path"),
			BusyTimeout:        v.GetDuration("database.busy_timeout"),
			JournalMode:        v.GetString("database.journal_mode"),
			Synchronous:        v.GetString("database.synchronous"),
			CacheSizeKB:        v.GetInt("database.cache_size_kb"),
			MmapSizeBytes:      v.GetInt64("database.mmap_size_bytes"),
			TempStore:          v.GetString("database.temp_store"),
			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
			LogLevel:           v.GetString("database.log_level"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Dashboard: DashboardConfig{
			MinRefreshInterval: v.GetDuration("dashboard.min_refresh_interval"),
			OverdueAfterDays:   v.GetInt("dashboard.overdue_after_days"),
			RecentInvoiceLimit: v.GetInt("dashboard.recent_invoice_limit"),
		},
		Numbering: NumberingConfig{
			InvoicePrefix:  v.GetString("numbering.invoice_prefix"),
			PurchasePrefix: v.GetString("numbering.purchase_prefix"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "partshop"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	cfg.Database.applyDefaults()
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Dashboard.MinRefreshInterval == 0 {
		cfg.Dashboard.MinRefreshInterval = 30 * time.Second
	}
	if cfg.Dashboard.OverdueAfterDays == 0 {
		cfg.Dashboard.OverdueAfterDays = 15
	}
	if cfg.Dashboard.RecentInvoiceLimit == 0 {
		cfg.Dashboard.RecentInvoiceLimit = 5
	}
	if cfg.Numbering.InvoicePrefix == "" {
		cfg.Numbering.InvoicePrefix = "INV_"
	}
	if cfg.Numbering.PurchasePrefix == "" {
		cfg.Numbering.PurchasePrefix = "PO"
	}
}

func (d *DatabaseConfig) applyDefaults() {
	if d.Path == "" {
		d.Path = "partshop.db"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5 * time.Second
	}
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.CacheSizeKB == 0 {
		d.CacheSizeKB = 8192
	}
	if d.MmapSizeBytes == 0 {
		d.MmapSizeBytes = 256 << 20
	}
	if d.TempStore == "" {
		d.TempStore = "MEMORY"
	}
	if d.SlowQueryThreshold == 0 {
		d.SlowQueryThreshold = 100 * time.Millisecond
	}
	if d.LogLevel == "" {
		d.LogLevel = "warn"
	}
	d.JournalMode = strings.ToUpper(d.JournalMode)
	d.Synchronous = strings.ToUpper(d.Synchronous)
	d.TempStore = strings.ToUpper(d.TempStore)
}

var (
	journalModes = []string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF"}
	syncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
	tempStores   = []string{"DEFAULT", "FILE", "MEMORY"}
)

// validate performs validation on the configuration
func (c *Config) validate() error {
	if !oneOf(c.Database.JournalMode, journalModes) {
		return fmt.Errorf("database.journal_mode must be one of %s, got %q", strings.Join(journalModes, ", "), c.Database.JournalMode)
	}
	if !oneOf(c.Database.Synchronous, syncModes) {
		return fmt.Errorf("database.synchronous must be one of %s, got %q", strings.Join(syncModes, ", "), c.Database.Synchronous)
	}
	if !oneOf(c.Database.TempStore, tempStores) {
		return fmt.Errorf("database.temp_store must be one of %s, got %q", strings.Join(tempStores, ", "), c.Database.TempStore)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout cannot be negative")
	}
	if c.Database.MmapSizeBytes < 0 {
		return fmt.Errorf("database.mmap_size_bytes cannot be negative")
	}
	if c.Dashboard.MinRefreshInterval < 0 {
		return fmt.Errorf("dashboard.min_refresh_interval cannot be negative")
	}
	if c.Dashboard.OverdueAfterDays < 0 {
		return fmt.Errorf("dashboard.overdue_after_days cannot be negative")
	}
	if c.Dashboard.RecentInvoiceLimit < 0 {
		return fmt.Errorf("dashboard.recent_invoice_limit cannot be negative")
	}

	if c.App.Env == "production" && c.Database.IsMemory() {
		return fmt.Errorf("database.path cannot be in-memory in production")
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// IsMemory reports whether the database lives only in memory
func (d *DatabaseConfig) IsMemory() bool {
	return d.Path == ":memory:" || strings.Contains(d.Path, "mode=memory")
}

// DSN returns the sqlite3 data source name. Foreign keys and the busy
// timeout are set per connection by the driver.
func (d *DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.FormatInt(d.BusyTimeout.Milliseconds(), 10))
	q.Set("_txlock", "immediate")
	sep := "?"
	if strings.Contains(d.Path, "?") {
		sep = "&"
	}
	return d.Path + sep + q.Encode()
}

// OverdueAfter returns the overdue threshold as a duration
func (d DashboardConfig) OverdueAfter() time.Duration {
	return time.Duration(d.OverdueAfterDays) * 24 * time.Hour
}
