package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads, defaults and validates the settings document.
func (l *Loader) Load() (*Settings, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	l.setDefaults(&settings)

	if err := l.validate(&settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &settings, nil
}

func (l *Loader) setDefaults(settings *Settings) {
	if settings.Title == "" {
		settings.Title = "Pulse Feed"
	}
	if settings.MaxItems == 0 {
		settings.MaxItems = 40
	}
	if settings.DaysLookback == 0 {
		settings.DaysLookback = 14
	}
	if settings.SummaryMaxLength == 0 {
		settings.SummaryMaxLength = 500
	}
	settings.SiteBase = strings.TrimRight(settings.SiteBase, "/")
}

func (l *Loader) validate(settings *Settings) error {
	if settings.Mode != "" && settings.Mode != SourceKindRSS && settings.Mode != SourceKindCSV {
		return fmt.Errorf("invalid mode: %s", settings.Mode)
	}

	// RSS 2.0 requires all three channel elements; title has a default.
	if settings.Link == "" {
		return fmt.Errorf("link is required")
	}
	if settings.Description == "" {
		return fmt.Errorf("description is required")
	}

	if settings.MaxItems < 0 {
		return fmt.Errorf("max_items must be non-negative")
	}
	if settings.DaysLookback < 0 {
		return fmt.Errorf("days_lookback must be non-negative")
	}
	if settings.SummaryMaxLength < 0 {
		return fmt.Errorf("summary_max_length must be non-negative")
	}

	if len(settings.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]bool, len(settings.Sources))
	for i, source := range settings.Sources {
		if source.ID == "" {
			return fmt.Errorf("source at index %d has no id", i)
		}
		if seen[source.ID] {
			return fmt.Errorf("duplicate source id: %s", source.ID)
		}
		seen[source.ID] = true

		if source.Kind != SourceKindRSS && source.Kind != SourceKindCSV {
			return fmt.Errorf("source %s has invalid kind: %s", source.ID, source.Kind)
		}
		if source.URL == "" {
			return fmt.Errorf("source %s has no url", source.ID)
		}
	}

	return nil
}

// EnabledSources returns the sources the configured mode allows to run.
func (s *Settings) EnabledSources() []Source {
	if s.Mode == "" {
		return s.Sources
	}

	enabled := make([]Source, 0, len(s.Sources))
	for _, source := range s.Sources {
		if source.Kind == s.Mode {
			enabled = append(enabled, source)
		}
	}
	return enabled
}

// FilterRules resolves the keyword lists applying to a source. Per-source
// overrides replace the global lists entirely when present.
func (s *Settings) FilterRules(sourceID string) (includes, excludes []string) {
	includes = s.Keywords
	excludes = s.ExcludeKeywords

	for _, source := range s.Sources {
		if source.ID != sourceID {
			continue
		}
		if len(source.Includes) > 0 {
			includes = source.Includes
		}
		if len(source.Excludes) > 0 {
			excludes = source.Excludes
		}
		break
	}

	return includes, excludes
}
