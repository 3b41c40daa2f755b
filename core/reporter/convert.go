package reporter

import (
	"math"
	"strconv"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/kilianp07/brokerflux/core/metrics"
)

var quantileFields = map[float64]string{
	0.5:   "p50",
	0.75:  "p75",
	0.95:  "p95",
	0.98:  "p98",
	0.99:  "p99",
	0.999: "p999",
}

// Convert turns gathered metric families into points. Each metric becomes
// one point named prefix + family name, tagged with tags overlaid by the
// metric labels. Non-finite values are dropped and a point left without
// fields is skipped.
func Convert(mfs []*dto.MetricFamily, prefix string, tags map[string]string, now time.Time) []metrics.Point {
	var points []metrics.Point
	for _, mf := range mfs {
		name := prefix + mf.GetName()
		for _, m := range mf.GetMetric() {
			fields := fieldsFor(mf.GetType(), m)
			if len(fields) == 0 {
				continue
			}
			ts := now
			if m.TimestampMs != nil {
				ts = time.UnixMilli(m.GetTimestampMs())
			}
			points = append(points, metrics.Point{
				Measurement: name,
				Tags:        mergeTags(tags, m.GetLabel()),
				Fields:      fields,
				Time:        ts,
			})
		}
	}
	return points
}

func fieldsFor(t dto.MetricType, m *dto.Metric) map[string]any {
	f := fieldSet{}
	switch t {
	case dto.MetricType_COUNTER:
		f.add("count", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		f.add("value", m.GetGauge().GetValue())
	case dto.MetricType_UNTYPED:
		f.add("value", m.GetUntyped().GetValue())
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		f.addStats(s.GetSampleCount(), s.GetSampleSum())
		for _, q := range s.GetQuantile() {
			f.add(QuantileField(q.GetQuantile()), q.GetValue())
		}
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		h := m.GetHistogram()
		f.addStats(h.GetSampleCount(), h.GetSampleSum())
		for _, b := range h.GetBucket() {
			if math.IsInf(b.GetUpperBound(), +1) {
				continue
			}
			f["bucket_"+strconv.FormatFloat(b.GetUpperBound(), 'g', -1, 64)] = int64(b.GetCumulativeCount())
		}
	}
	return f
}

type fieldSet map[string]any

func (f fieldSet) add(key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	f[key] = v
}

func (f fieldSet) addStats(count uint64, sum float64) {
	f["count"] = int64(count)
	f.add("sum", sum)
	if count > 0 {
		f.add("mean", sum/float64(count))
	}
}

// QuantileField names the field of a summary quantile: 0.5 is "p50",
// 0.999 is "p999".
func QuantileField(q float64) string {
	if name, ok := quantileFields[q]; ok {
		return name
	}
	s := strconv.FormatFloat(math.Round(q*1e4)/1e2, 'f', -1, 64)
	return "p" + strings.ReplaceAll(s, ".", "")
}

func mergeTags(global map[string]string, labels []*dto.LabelPair) map[string]string {
	out := make(map[string]string, len(global)+len(labels))
	for k, v := range global {
		out[k] = v
	}
	for _, l := range labels {
		if l.GetValue() == "" {
			continue
		}
		out[l.GetName()] = l.GetValue()
	}
	return out
}
