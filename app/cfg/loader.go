package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Paths
	SettingsFile string `long:"settings" env:"SETTINGS_FILE" default:"./settings.yml" description:"Path to the aggregation settings file"`
	OutputFile   string `long:"output" env:"OUTPUT_FILE" default:"./public/feed.xml" description:"Path the generated feed document is written to"`
	HistoryFile  string `long:"history" env:"HISTORY_FILE" default:"./pulsefeed.db" description:"Path to the seen-item history database"`

	// Run behavior
	FetchTimeout int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-source fetch timeout in seconds"`
	RunTimeout   int `long:"run-timeout" env:"RUN_TIMEOUT" default:"300" description:"Wall-clock budget for a whole run in seconds"`

	// Preview server
	Serve bool   `long:"serve" env:"SERVE" description:"Serve the generated document over HTTP after the run"`
	Port  string `long:"port" env:"PORT" default:"8080" description:"Preview server port"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"PulseFeed/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SettingsFile: raw.SettingsFile,
		OutputFile:   raw.OutputFile,
		HistoryFile:  raw.HistoryFile,
		FetchTimeout: raw.FetchTimeout,
		RunTimeout:   raw.RunTimeout,
		Serve:        raw.Serve,
		Port:         raw.Port,
		UserAgent:    raw.UserAgent,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
