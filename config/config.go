package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

const (
	DefaultAPIURL          = "https://api.hyperliquid.xyz/info"
	DefaultTargetFollowers = 2000
	DefaultBatchSize       = 100
	DefaultRefresh         = 5 * time.Second
	DefaultTop             = 10
	DefaultWALDir          = "./wal/leaderboard"
	DefaultWebAddr         = ":8000"
	DefaultCertCacheDir    = "cert-cache"
	DefaultLogLevel        = "info"
	DefaultRetries         = 3
	DefaultGeneratedConfig = "config.gen.yaml"
)

// Mode selects what the process does after startup.
type Mode string

const (
	ModeOnce  Mode = "once"
	ModeLive  Mode = "live"
	ModeWeb   Mode = "web"
	ModeUser  Mode = "user"
	ModeSetup Mode = "setup"
)

func parseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOnce:
		return ModeOnce, true
	case ModeLive:
		return ModeLive, true
	case ModeWeb:
		return ModeWeb, true
	case ModeUser:
		return ModeUser, true
	case ModeSetup:
		return ModeSetup, true
	default:
		return ModeOnce, false
	}
}

type Config struct {
	Mode            Mode
	VaultAddress    string
	UserAddress     string
	APIURL          string
	TargetFollowers int
	BatchSize       int
	RefreshInterval time.Duration
	Top             int
	SortBy          domain.SortKey
	Interactive     bool
	Retries         int

	MinEquity     *decimal.Decimal
	MinROI        *decimal.Decimal
	AlertPnlAbove *decimal.Decimal
	AlertPnlBelow *decimal.Decimal
	AlertTVLAbove *decimal.Decimal

	// CacheDir empty means VAULTBOARD_CACHE_DIR or the follower cache default.
	CacheDir     string
	WALDir       string
	WebAddr      string
	TLSDomains   []string
	CertCacheDir string

	LogLevel string
	LogFile  string
}

// ConfigTmp raw configuration as read from yaml or flags, before validation.
type ConfigTmp struct {
	Mode            string `yaml:"mode,omitempty"`
	Vault           string `yaml:"vault"`
	User            string `yaml:"user,omitempty"`
	APIURL          string `yaml:"api_url"`
	TargetFollowers string `yaml:"target_followers"`
	BatchSize       string `yaml:"batch_size"`
	RefreshInterval string `yaml:"refresh_interval"`
	Top             string `yaml:"top"`
	SortBy          string `yaml:"sort_by"`
	Interactive     *bool  `yaml:"interactive,omitempty"`
	Retries         string `yaml:"retries,omitempty"`
	MinEquity       string `yaml:"min_equity,omitempty"`
	MinROI          string `yaml:"min_roi,omitempty"`
	AlertPnlAbove   string `yaml:"alert_pnl_above,omitempty"`
	AlertPnlBelow   string `yaml:"alert_pnl_below,omitempty"`
	AlertTVLAbove   string `yaml:"alert_tvl_above,omitempty"`
	CacheDir        string `yaml:"cache_dir,omitempty"`
	WALDir          string `yaml:"wal_dir,omitempty"`
	WebAddr         string `yaml:"web_addr,omitempty"`
	TLSDomains      string `yaml:"tls_domains,omitempty"`
	CertCacheDir    string `yaml:"cert_cache_dir,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
	LogFile         string `yaml:"log_file,omitempty"`
}

// Defaults returns the raw configuration used when neither yaml nor flags set a value.
func Defaults() ConfigTmp {
	return ConfigTmp{
		Mode:            string(ModeOnce),
		Vault:           domain.DefaultVaultAddress,
		APIURL:          DefaultAPIURL,
		TargetFollowers: strconv.Itoa(DefaultTargetFollowers),
		BatchSize:       strconv.Itoa(DefaultBatchSize),
		RefreshInterval: DefaultRefresh.String(),
		Top:             strconv.Itoa(DefaultTop),
		SortBy:          domain.SortByAllTimePnl.String(),
		Retries:         strconv.Itoa(DefaultRetries),
		WALDir:          DefaultWALDir,
		WebAddr:         DefaultWebAddr,
		CertCacheDir:    DefaultCertCacheDir,
		LogLevel:        DefaultLogLevel,
	}
}

// LoadYaml reads a single yaml document on top of base.
func LoadYaml(path string, base ConfigTmp) (ConfigTmp, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	if err := yaml.Unmarshal(f, &base); err != nil {
		return base, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}
	return base, nil
}

// WriteYaml stores raw configuration as yaml.
func WriteYaml(path string, tmp ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Build validates raw configuration. Malformed addresses and urls are errors. Malformed
// numbers and sort keys fall back to defaults and are reported as warnings.
func Build(c ConfigTmp) (Config, []string, error) {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	mode, ok := parseMode(c.Mode)
	if !ok {
		warn("invalid mode %q, using %s", c.Mode, ModeOnce)
	}

	vault, err := domain.NormalizeAddress(c.Vault)
	if err != nil {
		return Config{}, warnings, fmt.Errorf("incorrect 'vault' param: %w", err)
	}

	cfg := Config{
		Mode:         mode,
		VaultAddress: vault,
		APIURL:       strings.TrimSpace(c.APIURL),
		Interactive:  c.Interactive == nil || *c.Interactive,
		CacheDir:     strings.TrimSpace(c.CacheDir),
		WALDir:       orDefault(c.WALDir, DefaultWALDir),
		WebAddr:      orDefault(c.WebAddr, DefaultWebAddr),
		TLSDomains:   splitList(c.TLSDomains),
		CertCacheDir: orDefault(c.CertCacheDir, DefaultCertCacheDir),
		LogLevel:     orDefault(c.LogLevel, DefaultLogLevel),
		LogFile:      strings.TrimSpace(c.LogFile),
	}

	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return Config{}, warnings, fmt.Errorf("incorrect 'api_url' param: %q is not an http(s) url", cfg.APIURL)
	}

	if cfg.Mode == ModeUser || strings.TrimSpace(c.User) != "" {
		user, err := domain.NormalizeAddress(c.User)
		if err != nil {
			return Config{}, warnings, fmt.Errorf("incorrect 'user' param: %w", err)
		}
		cfg.UserAddress = user
	}

	cfg.TargetFollowers = positiveInt(c.TargetFollowers, DefaultTargetFollowers, "target_followers", warn)
	cfg.BatchSize = positiveInt(c.BatchSize, DefaultBatchSize, "batch_size", warn)
	cfg.Top = positiveInt(c.Top, DefaultTop, "top", warn)
	cfg.Retries = positiveInt(c.Retries, DefaultRetries, "retries", warn)

	interval, err := ParseInterval(c.RefreshInterval)
	if err != nil {
		warn("invalid refresh_interval %q, using default: %s", c.RefreshInterval, DefaultRefresh)
		interval = DefaultRefresh
	}
	cfg.RefreshInterval = interval

	sortBy, ok := domain.ParseSortKey(c.SortBy)
	if !ok {
		warn("invalid sort option %q, using default: %s", c.SortBy, domain.SortByAllTimePnl)
	}
	cfg.SortBy = sortBy

	cfg.MinEquity = optionalDecimal(c.MinEquity, "min_equity", warn)
	cfg.MinROI = optionalDecimal(c.MinROI, "min_roi", warn)
	cfg.AlertPnlAbove = optionalDecimal(c.AlertPnlAbove, "alert_pnl_above", warn)
	cfg.AlertPnlBelow = optionalDecimal(c.AlertPnlBelow, "alert_pnl_below", warn)
	cfg.AlertTVLAbove = optionalDecimal(c.AlertTVLAbove, "alert_tvl_above", warn)

	return cfg, warnings, nil
}

// ParseInterval accepts whole seconds ("10") or a Go duration ("1m30s"). The result must be positive.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("interval must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", d)
	}
	return d, nil
}

func positiveInt(raw string, def int, name string, warn func(string, ...any)) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		warn("invalid %s value %q, using default: %d", name, raw, def)
		return def
	}
	return v
}

func optionalDecimal(raw, name string, warn func(string, ...any)) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		warn("invalid %s value %q, filter disabled", name, raw)
		return nil
	}
	return &d
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
