package metrics

import "testing"

func TestRegistryExposesCoordinatorMetrics(t *testing.T) {
	reg := NewRegistry()
	AnswersTotal.WithLabelValues("accepted").Inc()
	FlushFailures.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, mf := range families {
		seen[mf.GetName()] = true
	}
	for _, name := range []string{"quiz_answers_total", "quiz_flush_failures_total", "quiz_pending_answers", "go_goroutines"} {
		if !seen[name] {
			t.Fatalf("expected %s to be exposed", name)
		}
	}
}
