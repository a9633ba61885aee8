package cfg

type Cfg struct {
	// Paths
	SettingsFile string
	OutputFile   string
	HistoryFile  string

	// Run behavior
	FetchTimeout int
	RunTimeout   int

	// Preview server
	Serve bool
	Port  string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
