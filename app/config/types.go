package config

// Settings is the parsed aggregation settings document. It is read once
// at startup and never mutated by the pipeline.
type Settings struct {
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	SiteBase    string `yaml:"site_base"`

	// Mode restricts the run to sources of one kind ("rss" or "csv").
	// Empty means all configured sources run.
	Mode string `yaml:"mode"`

	Sources []Source `yaml:"sources"`

	Keywords        []string `yaml:"keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`

	MaxItems         int  `yaml:"max_items"`
	DaysLookback     int  `yaml:"days_lookback"`
	SummaryMaxLength int  `yaml:"summary_max_length"`
	EnrichSummaries  bool `yaml:"enrich_summaries"`
	RequireSource    bool `yaml:"require_source"` // fail the run when no source fetched successfully
}

// Source is one configured origin of records.
type Source struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // "rss" or "csv"
	URL  string `yaml:"url"`

	// Per-source keyword overrides. When set they replace the global
	// keyword lists for items coming from this source.
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

const (
	SourceKindRSS = "rss"
	SourceKindCSV = "csv"
)
