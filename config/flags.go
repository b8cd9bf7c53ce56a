package config

import (
	"flag"
	"io"
	"os"
)

// Get parses os.Args. See Parse.
func Get() (Config, []string, error) {
	return Parse(os.Args[1:], os.Stderr)
}

// Parse builds the configuration from command line arguments. With --config the yaml file is
// read first and flags given explicitly on the command line override it.
func Parse(args []string, output io.Writer) (Config, []string, error) {
	raw, err := parseRaw(args, output)
	if err != nil {
		return Config{}, nil, err
	}
	return Build(raw)
}

func parseRaw(args []string, output io.Writer) (ConfigTmp, error) {
	fs := flag.NewFlagSet("vaultboard", flag.ContinueOnError)
	fs.SetOutput(output)

	cli := Defaults()
	var noInteractive bool

	bindings := []struct {
		name  string
		usage string
		cli   *string
		pick  func(*ConfigTmp) *string
	}{
		{"vault", "vault address to monitor", &cli.Vault, func(c *ConfigTmp) *string { return &c.Vault }},
		{"user", "user address: show portfolio and vault equities", &cli.User, func(c *ConfigTmp) *string { return &c.User }},
		{"api", "info endpoint url", &cli.APIURL, func(c *ConfigTmp) *string { return &c.APIURL }},
		{"target", "follower count to accumulate per session", &cli.TargetFollowers, func(c *ConfigTmp) *string { return &c.TargetFollowers }},
		{"batch", "followers expected per answer", &cli.BatchSize, func(c *ConfigTmp) *string { return &c.BatchSize }},
		{"interval", "refresh interval, seconds or duration (e.g. 5, 30s)", &cli.RefreshInterval, func(c *ConfigTmp) *string { return &c.RefreshInterval }},
		{"top", "number of top performers to display", &cli.Top, func(c *ConfigTmp) *string { return &c.Top }},
		{"sort-by", "sort by: pnl, roi, equity, days", &cli.SortBy, func(c *ConfigTmp) *string { return &c.SortBy }},
		{"retries", "attempts per request on transient errors", &cli.Retries, func(c *ConfigTmp) *string { return &c.Retries }},
		{"min-equity", "filter followers with minimum equity", &cli.MinEquity, func(c *ConfigTmp) *string { return &c.MinEquity }},
		{"min-roi", "filter followers with minimum ROI percentage", &cli.MinROI, func(c *ConfigTmp) *string { return &c.MinROI }},
		{"alert-pnl-above", "alert when follower PnL goes above this value", &cli.AlertPnlAbove, func(c *ConfigTmp) *string { return &c.AlertPnlAbove }},
		{"alert-pnl-below", "alert when follower PnL goes below this value", &cli.AlertPnlBelow, func(c *ConfigTmp) *string { return &c.AlertPnlBelow }},
		{"alert-tvl-above", "alert when vault TVL goes above this value", &cli.AlertTVLAbove, func(c *ConfigTmp) *string { return &c.AlertTVLAbove }},
		{"cache-dir", "follower cache directory (env VAULTBOARD_CACHE_DIR)", &cli.CacheDir, func(c *ConfigTmp) *string { return &c.CacheDir }},
		{"wal-dir", "leaderboard snapshot journal directory", &cli.WALDir, func(c *ConfigTmp) *string { return &c.WALDir }},
		{"addr", "dashboard listen address", &cli.WebAddr, func(c *ConfigTmp) *string { return &c.WebAddr }},
		{"tls-domains", "comma separated domains for automatic TLS", &cli.TLSDomains, func(c *ConfigTmp) *string { return &c.TLSDomains }},
		{"cert-cache", "certificate cache directory", &cli.CertCacheDir, func(c *ConfigTmp) *string { return &c.CertCacheDir }},
		{"log-level", "log level: debug, info, warn, error", &cli.LogLevel, func(c *ConfigTmp) *string { return &c.LogLevel }},
		{"log-file", "log file path, stderr when empty", &cli.LogFile, func(c *ConfigTmp) *string { return &c.LogFile }},
	}
	for _, b := range bindings {
		fs.StringVar(b.cli, b.name, *b.cli, b.usage)
	}

	configPath := fs.String("config", "", "path to yaml config")
	live := fs.Bool("live", false, "live monitoring mode")
	fs.BoolVar(live, "l", false, "shorthand for --live")
	web := fs.Bool("web", false, "serve the browser dashboard")
	setup := fs.Bool("setup", false, "run the configuration wizard")
	fs.BoolVar(&noInteractive, "no-interactive", false, "disable interactive controls")

	if err := fs.Parse(args); err != nil {
		return ConfigTmp{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	raw := cli
	if *configPath != "" {
		fromFile, err := LoadYaml(*configPath, Defaults())
		if err != nil {
			return ConfigTmp{}, err
		}
		raw = fromFile
		for _, b := range bindings {
			if set[b.name] {
				*b.pick(&raw) = *b.cli
			}
		}
	}

	switch {
	case *setup:
		raw.Mode = string(ModeSetup)
	case set["user"]:
		raw.Mode = string(ModeUser)
	case *web:
		raw.Mode = string(ModeWeb)
	case *live:
		raw.Mode = string(ModeLive)
	}
	if noInteractive {
		f := false
		raw.Interactive = &f
	}

	return raw, nil
}
