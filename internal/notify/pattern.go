package notify

import (
	"fmt"
	"strings"
)

// MetricPattern matches metric keys either exactly or, with a trailing "*",
// by prefix. The empty pattern matches every metric. Validation happens at
// construction so matching never has to re-parse.
type MetricPattern struct {
	raw      string
	prefix   string
	wildcard bool
}

// NewMetricPattern validates and compiles a pattern string. A "*" is only
// permitted as the final character.
func NewMetricPattern(raw string) (MetricPattern, error) {
	if i := strings.IndexByte(raw, '*'); i >= 0 && i != len(raw)-1 {
		return MetricPattern{}, fmt.Errorf("metric pattern %q: wildcard only allowed at end", raw)
	}
	if strings.HasSuffix(raw, "*") {
		return MetricPattern{raw: raw, prefix: raw[:len(raw)-1], wildcard: true}, nil
	}
	return MetricPattern{raw: raw}, nil
}

// Matches reports whether the metric key satisfies the pattern.
func (p MetricPattern) Matches(metricKey string) bool {
	if p.raw == "" {
		return true
	}
	if p.wildcard {
		return strings.HasPrefix(metricKey, p.prefix)
	}
	return p.raw == metricKey
}

// String returns the original pattern text.
func (p MetricPattern) String() string { return p.raw }
