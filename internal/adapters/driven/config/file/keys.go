package file

import (
	"fmt"
	"strconv"
	"time"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindBool
	kindFloat
	kindDuration
)

// keyKinds lists every key config.toml understands.
var keyKinds = map[string]keyKind{
	"llm.provider":                 kindString,
	"llm.model":                    kindString,
	"llm.base_url":                 kindString,
	"llm.api_key":                  kindString,
	"embedding.provider":           kindString,
	"embedding.model":              kindString,
	"embedding.base_url":           kindString,
	"embedding.api_key":            kindString,
	"embedding.dimensions":         kindInt,
	"embedding.project":            kindString,
	"embedding.location":           kindString,
	"store.driver":                 kindString,
	"store.path":                   kindString,
	"vector.provider":              kindString,
	"vector.host":                  kindString,
	"vector.port":                  kindInt,
	"vector.api_key":               kindString,
	"vector.use_tls":               kindBool,
	"vector.collection":            kindString,
	"pipeline.pricing_file":        kindString,
	"pipeline.call_timeout":        kindDuration,
	"pipeline.max_attempts":        kindInt,
	"pipeline.retry_base_delay":    kindDuration,
	"pipeline.retry_max_delay":     kindDuration,
	"pipeline.requests_per_second": kindFloat,
	"pipeline.burst":               kindInt,
	"github.token":                 kindString,
	"github.repository":            kindString,
	"github.base_url":              kindString,
	"github.username":              kindString,
	"report.themes_file":           kindString,
	"report.max_prs_per_theme":     kindInt,
	"report.output_dir":            kindString,
	"review.stale_days":            kindInt,
	"review.urgent_keywords":       kindString,
}

// ParseValue converts a command-line value to the type stored under key.
// Durations stay strings in the file but must parse.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
	}

	switch kind {
	case kindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidConfig, key)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false", ErrInvalidConfig, key)
		}
		return b, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidConfig, key)
		}
		return f, nil
	case kindDuration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("%w: %s must be a duration such as 30s", ErrInvalidConfig, key)
		}
		return raw, nil
	default:
		return raw, nil
	}
}
