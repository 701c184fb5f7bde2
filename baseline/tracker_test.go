package baseline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBaseline_Stats(t *testing.T) {
	tr := NewTracker()

	durations := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
	}
	for _, d := range durations {
		tr.RecordValidationTime("Patient", "structural", d, false)
	}

	b := tr.GenerateBaseline()

	stats, ok := b.ByResourceType["Patient"]
	require.True(t, ok)
	assert.Equal(t, 4, stats.SampleCount)
	assert.InDelta(t, 25.0, stats.AvgMs, 0.001)
	assert.InDelta(t, 10.0, stats.MinMs, 0.001)
	assert.InDelta(t, 40.0, stats.MaxMs, 0.001)

	aspectStats, ok := b.ByAspect["structural"]
	require.True(t, ok)
	assert.Equal(t, 4, aspectStats.SampleCount)

	assert.False(t, b.GeneratedAt.IsZero())
	assert.Positive(t, b.ThroughputResourcesPerSecond)
	assert.Positive(t, b.MemoryUsageMB)
}

func TestPercentile_NearestRank(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	assert.Equal(t, 50.0, percentile(sorted, 50))
	assert.Equal(t, 100.0, percentile(sorted, 95))
	assert.Equal(t, 100.0, percentile(sorted, 99))
	assert.Equal(t, 10.0, percentile(sorted, 1))
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 42.0, percentile([]float64{42}, 99))
}

func TestCacheEffectiveness(t *testing.T) {
	tr := NewTracker()
	tr.RecordValidationTime("Patient", "structural", time.Millisecond, true)
	tr.RecordValidationTime("Patient", "structural", time.Millisecond, true)
	tr.RecordValidationTime("Patient", "structural", time.Millisecond, true)
	tr.RecordValidationTime("Patient", "structural", time.Millisecond, false)

	b := tr.GenerateBaseline()
	assert.InDelta(t, 0.75, b.CacheEffectiveness.HitRate, 0.001)
	assert.InDelta(t, 0.25, b.CacheEffectiveness.MissRate, 0.001)
}

func TestHistory_Bounded(t *testing.T) {
	tr := NewTracker()

	// Give each generation a distinguishable cold-start mean.
	for i := 0; i < MaxHistory+50; i++ {
		tr.ResetCurrentMeasurements()
		tr.RecordColdStart(time.Duration(i+1) * time.Millisecond)
		tr.GenerateBaseline()
	}

	history := tr.History()
	require.Len(t, history, MaxHistory)

	// The oldest 50 were evicted; the survivors are the most recent.
	assert.InDelta(t, 51.0, history[0].ColdStartTimeMs, 0.001)
	assert.InDelta(t, float64(MaxHistory+50), history[len(history)-1].ColdStartTimeMs, 0.001)
}

func TestGenerateBaseline_WindowNotCleared(t *testing.T) {
	tr := NewTracker()
	tr.RecordValidationTime("Patient", "structural", 10*time.Millisecond, false)

	first := tr.GenerateBaseline()
	require.Equal(t, 1, first.ByResourceType["Patient"].SampleCount)

	tr.RecordValidationTime("Patient", "structural", 20*time.Millisecond, false)
	second := tr.GenerateBaseline()
	assert.Equal(t, 2, second.ByResourceType["Patient"].SampleCount,
		"window aggregates until reset")

	tr.ResetCurrentMeasurements()
	tr.RecordValidationTime("Patient", "structural", 30*time.Millisecond, false)
	third := tr.GenerateBaseline()
	assert.Equal(t, 1, third.ByResourceType["Patient"].SampleCount)

	// Reset leaves the history alone.
	assert.Len(t, tr.History(), 3)
}

func TestCompareToBaseline(t *testing.T) {
	prev := PerformanceBaseline{
		ColdStartTimeMs: 100,
		WarmCacheTimeMs: 10,
		ByAspect: map[string]MetricStats{
			"structural": {AvgMs: 50},
			"profile":    {AvgMs: 200},
		},
	}

	tests := []struct {
		name             string
		current          PerformanceBaseline
		wantRegressions  int
		wantImprovements int
	}{
		{
			name: "within threshold is quiet",
			current: PerformanceBaseline{
				ColdStartTimeMs: 115, // +15%
				WarmCacheTimeMs: 9,   // -10%
				ByAspect: map[string]MetricStats{
					"structural": {AvgMs: 55},
				},
			},
		},
		{
			name: "regression past 20 percent",
			current: PerformanceBaseline{
				ColdStartTimeMs: 130, // +30%
				WarmCacheTimeMs: 10,
			},
			wantRegressions: 1,
		},
		{
			name: "improvement past 20 percent",
			current: PerformanceBaseline{
				ColdStartTimeMs: 100,
				WarmCacheTimeMs: 5, // -50%
				ByAspect: map[string]MetricStats{
					"profile": {AvgMs: 100}, // -50%
				},
			},
			wantImprovements: 2,
		},
		{
			name: "zero metrics are skipped",
			current: PerformanceBaseline{
				ColdStartTimeMs: 0,
				WarmCacheTimeMs: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.current.CompareToBaseline(prev)
			assert.Len(t, c.Regressions, tt.wantRegressions, "regressions: %v", c.Regressions)
			assert.Len(t, c.Improvements, tt.wantImprovements, "improvements: %v", c.Improvements)
		})
	}
}

func TestSummary(t *testing.T) {
	tr := NewTracker()

	s := tr.Summary()
	assert.Equal(t, 0, s.BaselineCount)
	assert.Equal(t, TrendStable, s.ColdStartTrend)

	tr.RecordColdStart(100 * time.Millisecond)
	tr.RecordValidationTime("Patient", "structural", 50*time.Millisecond, false)
	tr.GenerateBaseline()

	// Second window is markedly slower.
	tr.ResetCurrentMeasurements()
	tr.RecordColdStart(200 * time.Millisecond)
	tr.RecordValidationTime("Patient", "structural", 100*time.Millisecond, false)
	tr.GenerateBaseline()

	s = tr.Summary()
	assert.Equal(t, 2, s.BaselineCount)
	assert.Equal(t, TrendRegressing, s.ColdStartTrend)
	assert.Equal(t, TrendRegressing, s.AspectTrends["structural"])
	// Throughput in resources/second halves too: higher would be better.
	assert.Equal(t, TrendRegressing, s.ThroughputTrend)
}

func TestExportImport_RoundTrip(t *testing.T) {
	tr := NewTracker()
	tr.RecordColdStart(80 * time.Millisecond)
	tr.RecordValidationTime("Patient", "structural", 25*time.Millisecond, true)
	tr.GenerateBaseline()
	tr.GenerateBaseline()

	data, err := tr.ExportBaselines()
	require.NoError(t, err)

	restored := NewTracker()
	require.NoError(t, restored.ImportBaselines(data))

	original := tr.History()
	imported := restored.History()
	require.Len(t, imported, len(original))
	for i := range original {
		assert.Equal(t, original[i].ColdStartTimeMs, imported[i].ColdStartTimeMs)
		assert.True(t, original[i].GeneratedAt.Equal(imported[i].GeneratedAt))
	}
}

func TestImportBaselines_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"unknown field", `{"baselines":[],"exportedAt":"2026-01-01T00:00:00Z","bogus":1}`},
		{"missing baselines", `{"exportedAt":"2026-01-01T00:00:00Z"}`},
		{"zero generatedAt", `{"baselines":[{"generatedAt":"0001-01-01T00:00:00Z"}],"exportedAt":"2026-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			err := tr.ImportBaselines([]byte(tt.data))
			require.ErrorIs(t, err, ErrMalformedImport)
			assert.Empty(t, tr.History(), "failed import must not touch history")
		})
	}
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.RecordValidationTime("Patient", "structural", time.Millisecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	b := tr.GenerateBaseline()
	assert.Equal(t, 1000, b.ByResourceType["Patient"].SampleCount, "no sample may be lost")
	assert.InDelta(t, 0.5, b.CacheEffectiveness.HitRate, 0.001)
}
