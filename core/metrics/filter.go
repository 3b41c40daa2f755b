package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PrefixGatherer keeps the metric families whose name starts with one of
// its prefixes. An inverted gatherer keeps all other families.
type PrefixGatherer struct {
	g        prometheus.Gatherer
	prefixes []string
	invert   bool
}

// NewPrefixGatherer wraps g. Prefixes are trimmed and empty ones dropped.
// Dots and dashes are matched as underscores so that dotted names such as
// "com.hivemq.messages" select "com_hivemq_messages_*" families.
func NewPrefixGatherer(g prometheus.Gatherer, prefixes []string) *PrefixGatherer {
	return &PrefixGatherer{g: g, prefixes: normalizePrefixes(prefixes)}
}

// Inverted returns a gatherer over the same prefixes keeping the families
// this one drops.
func (p *PrefixGatherer) Inverted() *PrefixGatherer {
	return &PrefixGatherer{g: p.g, prefixes: p.prefixes, invert: !p.invert}
}

// Prefixes returns the normalised prefixes.
func (p *PrefixGatherer) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// Matches reports whether name is kept by this gatherer.
func (p *PrefixGatherer) Matches(name string) bool {
	for _, pre := range p.prefixes {
		if strings.HasPrefix(name, pre) {
			return !p.invert
		}
	}
	return p.invert
}

// Gather implements prometheus.Gatherer. A partial result from the wrapped
// gatherer is filtered and returned together with its error.
func (p *PrefixGatherer) Gather() ([]*dto.MetricFamily, error) {
	mfs, err := p.g.Gather()
	out := make([]*dto.MetricFamily, 0, len(mfs))
	for _, mf := range mfs {
		if p.Matches(mf.GetName()) {
			out = append(out, mf)
		}
	}
	return out, err
}

// SplitRegistry divides g into the families selected by prefixes and the
// remaining ones. ok is false when no prefix is configured or none matches a
// currently registered family; filtered is then nil and remaining is g.
func SplitRegistry(g prometheus.Gatherer, prefixes []string) (filtered, remaining prometheus.Gatherer, ok bool) {
	pg := NewPrefixGatherer(g, prefixes)
	if len(pg.prefixes) == 0 {
		return nil, g, false
	}
	if mfs, _ := pg.Gather(); len(mfs) == 0 {
		return nil, g, false
	}
	return pg, pg.Inverted(), true
}

func normalizePrefixes(prefixes []string) []string {
	r := strings.NewReplacer(".", "_", "-", "_")
	var out []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, r.Replace(p))
		}
	}
	return out
}
