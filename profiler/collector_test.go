package profiler

import (
	"testing"
)

func TestCollector_StopLayerMonitoring_AppendsHistory(t *testing.T) {
	// GIVEN a fresh collector
	c := NewCollector()

	// WHEN two runs of the same layer are finalized
	for run := 0; run < 2; run++ {
		m := c.StartLayerMonitoring("transformer.h.0", "TransformerBlock", 0)
		c.StopLayerMonitoring(m, float64(10+run))
	}

	// THEN the history holds both runs in finalization order
	if got := c.RunCount("transformer.h.0"); got != 2 {
		t.Fatalf("RunCount: got %d, want 2", got)
	}
	latest, ok := c.Latest("transformer.h.0")
	if !ok {
		t.Fatal("Latest: no record found")
	}
	if latest.ForwardLatencyMs != 11 {
		t.Errorf("Latest latency: got %v, want 11 (the second run)", latest.ForwardLatencyMs)
	}
}

func TestCollector_Latest_UnknownLayer_ReturnsFalse(t *testing.T) {
	c := NewCollector()
	if _, ok := c.Latest("missing"); ok {
		t.Error("Latest on unknown layer: got ok=true, want false")
	}
}

func TestCollector_EnrichmentAfterFinalize_IsIgnored(t *testing.T) {
	// GIVEN a finalized measurement
	c := NewCollector()
	m := c.StartLayerMonitoring("lm_head", "Linear", 25)
	c.RecordParameterInfo(m, 1000, 4.0)
	c.StopLayerMonitoring(m, 15.0)

	// WHEN enrichment and a second stop arrive after finalization
	c.RecordParameterInfo(m, 9999, 99.0)
	c.RecordMemoryUsage(m, 1, 2, 3, 4)
	c.StopLayerMonitoring(m, 99.0)

	// THEN the stored record is unchanged and no extra run was appended
	latest, _ := c.Latest("lm_head")
	if latest.NumParameters != 1000 {
		t.Errorf("NumParameters mutated post-append: got %d, want 1000", latest.NumParameters)
	}
	if latest.ForwardLatencyMs != 15.0 {
		t.Errorf("latency mutated post-append: got %v, want 15", latest.ForwardLatencyMs)
	}
	if got := c.RunCount("lm_head"); got != 1 {
		t.Errorf("RunCount: got %d, want 1", got)
	}
}

func TestCollector_RecordMemoryUsage_DerivesIncreases(t *testing.T) {
	c := NewCollector()
	m := c.StartLayerMonitoring("embeddings", "Embedding", 0)
	c.RecordMemoryUsage(m, 100, 350, 1000, 1200)
	c.StopLayerMonitoring(m, 25.0)

	latest, _ := c.Latest("embeddings")
	if latest.VRAMIncrease != 250 {
		t.Errorf("VRAMIncrease: got %d, want 250", latest.VRAMIncrease)
	}
	if latest.RAMIncrease != 200 {
		t.Errorf("RAMIncrease: got %d, want 200", latest.RAMIncrease)
	}
}

func TestCollector_LayerNames_FollowFinalizationOrder(t *testing.T) {
	// GIVEN layers finalized in a known order
	c := NewCollector()
	for i, name := range []string{"embeddings", "transformer.h.0", "lm_head"} {
		m := c.StartLayerMonitoring(name, "block", i)
		c.StopLayerMonitoring(m, 1.0)
	}

	// THEN LayerNames preserves that order
	names := c.LayerNames()
	want := []string{"embeddings", "transformer.h.0", "lm_head"}
	if len(names) != len(want) {
		t.Fatalf("LayerNames length: got %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("LayerNames[%d]: got %s, want %s", i, names[i], want[i])
		}
	}
}

func TestCollector_ComputePercentiles_EqualRuns(t *testing.T) {
	// GIVEN a layer with several identical-latency runs
	c := NewCollector()
	for run := 0; run < 10; run++ {
		m := c.StartLayerMonitoring("transformer.h.1", "TransformerBlock", 1)
		c.StopLayerMonitoring(m, 42.0)
	}

	// WHEN percentiles are computed
	c.ComputePercentiles()

	// THEN every percentile equals the common latency, written onto the
	// latest record only
	latest, _ := c.Latest("transformer.h.1")
	if latest.P50LatencyMs != 42.0 || latest.P95LatencyMs != 42.0 || latest.P99LatencyMs != 42.0 {
		t.Errorf("percentiles: got p50=%v p95=%v p99=%v, want all 42",
			latest.P50LatencyMs, latest.P95LatencyMs, latest.P99LatencyMs)
	}
}

func TestCollector_ComputePercentiles_Monotone(t *testing.T) {
	c := NewCollector()
	for run := 1; run <= 100; run++ {
		m := c.StartLayerMonitoring("transformer.h.2", "TransformerBlock", 2)
		c.StopLayerMonitoring(m, float64(run))
	}

	c.ComputePercentiles()

	latest, _ := c.Latest("transformer.h.2")
	if !(latest.P50LatencyMs <= latest.P95LatencyMs && latest.P95LatencyMs <= latest.P99LatencyMs) {
		t.Errorf("percentiles not monotone: p50=%v p95=%v p99=%v",
			latest.P50LatencyMs, latest.P95LatencyMs, latest.P99LatencyMs)
	}
	if latest.P50LatencyMs < 40 || latest.P50LatencyMs > 60 {
		t.Errorf("p50 over 1..100: got %v, want near 50", latest.P50LatencyMs)
	}
}

func TestCollector_ComputePercentiles_SingleRunSkipped(t *testing.T) {
	c := NewCollector()
	m := c.StartLayerMonitoring("lm_head", "Linear", 25)
	c.StopLayerMonitoring(m, 15.0)

	c.ComputePercentiles()

	latest, _ := c.Latest("lm_head")
	if latest.P50LatencyMs != 0 {
		t.Errorf("single-run p50: got %v, want 0", latest.P50LatencyMs)
	}
}

func TestCollector_Summary_AveragesHistory(t *testing.T) {
	// GIVEN three runs with latencies 10, 20, 30
	c := NewCollector()
	for _, lat := range []float64{10, 20, 30} {
		m := c.StartLayerMonitoring("embeddings", "Embedding", 0)
		c.RecordParameterInfo(m, 500000, 2.0)
		c.StopLayerMonitoring(m, lat)
	}

	// WHEN summarized
	s, ok := c.Summary()["embeddings"]

	// THEN the aggregate reflects the full history
	if !ok {
		t.Fatal("Summary missing layer embeddings")
	}
	if s.TotalRuns != 3 {
		t.Errorf("TotalRuns: got %d, want 3", s.TotalRuns)
	}
	if s.AvgLatencyMs != 20 {
		t.Errorf("AvgLatencyMs: got %v, want 20", s.AvgLatencyMs)
	}
	if s.NumParameters != 500000 {
		t.Errorf("NumParameters: got %d, want 500000", s.NumParameters)
	}
}

func TestCollector_SessionID_StampsRecords(t *testing.T) {
	c := NewCollector()
	m := c.StartLayerMonitoring("embeddings", "Embedding", 0)
	c.StopLayerMonitoring(m, 1.0)

	latest, _ := c.Latest("embeddings")
	if latest.SessionID == "" || latest.SessionID != c.SessionID() {
		t.Errorf("SessionID: record has %q, collector has %q", latest.SessionID, c.SessionID())
	}
}
