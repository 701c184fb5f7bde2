package baseline

import "fmt"

// regressionThreshold is the relative slowdown that counts as a
// regression; the improvement case is symmetric.
const regressionThreshold = 0.20

// Comparison lists the metrics that regressed or improved relative to a
// previous baseline.
type Comparison struct {
	Regressions  []string `json:"regressions"`
	Improvements []string `json:"improvements"`
}

// Trend classifies a metric's movement between the two most recent
// baselines.
type Trend string

const (
	TrendImproving  Trend = "improving"
	TrendRegressing Trend = "regressing"
	TrendStable     Trend = "stable"
)

// Summary reports the trend of each tracked metric across the two most
// recent baselines in history.
type Summary struct {
	BaselineCount   int              `json:"baselineCount"`
	ColdStartTrend  Trend            `json:"coldStartTrend"`
	WarmCacheTrend  Trend            `json:"warmCacheTrend"`
	ThroughputTrend Trend            `json:"throughputTrend"`
	MemoryTrend     Trend            `json:"memoryTrend"`
	AspectTrends    map[string]Trend `json:"aspectTrends,omitempty"`
}

// CompareToBaseline compares this baseline against a previous one. A
// timing metric is a regression when it is more than 20% slower than in
// previous, an improvement when more than 20% faster. Cold-start time,
// warm-cache time and per-aspect averages are compared independently.
func (b PerformanceBaseline) CompareToBaseline(previous PerformanceBaseline) Comparison {
	var c Comparison

	compare := func(name string, current, prev float64) {
		if prev <= 0 || current <= 0 {
			return
		}
		delta := (current - prev) / prev
		switch {
		case delta > regressionThreshold:
			c.Regressions = append(c.Regressions,
				fmt.Sprintf("%s: %.2fms -> %.2fms (%.0f%% slower)", name, prev, current, delta*100))
		case delta < -regressionThreshold:
			c.Improvements = append(c.Improvements,
				fmt.Sprintf("%s: %.2fms -> %.2fms (%.0f%% faster)", name, prev, current, -delta*100))
		}
	}

	compare("coldStart", b.ColdStartTimeMs, previous.ColdStartTimeMs)
	compare("warmCache", b.WarmCacheTimeMs, previous.WarmCacheTimeMs)

	for aspect, stats := range b.ByAspect {
		prevStats, ok := previous.ByAspect[aspect]
		if !ok {
			continue
		}
		compare("aspect."+aspect, stats.AvgMs, prevStats.AvgMs)
	}

	return c
}

// Summary compares the two most recent baselines in history. With fewer
// than two baselines every trend is stable.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		BaselineCount:   len(t.history),
		ColdStartTrend:  TrendStable,
		WarmCacheTrend:  TrendStable,
		ThroughputTrend: TrendStable,
		MemoryTrend:     TrendStable,
	}
	if len(t.history) < 2 {
		return s
	}

	prev := t.history[len(t.history)-2]
	last := t.history[len(t.history)-1]

	s.ColdStartTrend = trendOf(last.ColdStartTimeMs, prev.ColdStartTimeMs, false)
	s.WarmCacheTrend = trendOf(last.WarmCacheTimeMs, prev.WarmCacheTimeMs, false)
	s.ThroughputTrend = trendOf(last.ThroughputResourcesPerSecond, prev.ThroughputResourcesPerSecond, true)
	s.MemoryTrend = trendOf(last.MemoryUsageMB, prev.MemoryUsageMB, false)

	s.AspectTrends = make(map[string]Trend)
	for aspect, stats := range last.ByAspect {
		prevStats, ok := prev.ByAspect[aspect]
		if !ok {
			continue
		}
		s.AspectTrends[aspect] = trendOf(stats.AvgMs, prevStats.AvgMs, false)
	}

	return s
}

// trendOf classifies the movement of a metric. For timing and memory
// metrics higher is worse; for throughput higher is better.
func trendOf(current, prev float64, higherIsBetter bool) Trend {
	if prev <= 0 || current <= 0 {
		return TrendStable
	}
	delta := (current - prev) / prev
	if higherIsBetter {
		delta = -delta
	}
	switch {
	case delta > regressionThreshold:
		return TrendRegressing
	case delta < -regressionThreshold:
		return TrendImproving
	default:
		return TrendStable
	}
}
