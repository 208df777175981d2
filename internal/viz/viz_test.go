package viz

import (
	"strings"
	"testing"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
)

func ramp() []pipeline.Record {
	var recs []pipeline.Record
	// dense early samples, sparse late ones
	for _, t := range []float64{0, 0.01, 0.02, 0.03, 1, 2, 3, 4} {
		x := dynamo.NewState()
		x[dynamo.Temperature] = t
		stage := stages.MashingStage
		if t >= 2 {
			stage = stages.BoilingStage
		}
		recs = append(recs, pipeline.Record{Stage: stage, Time: t, State: x})
	}
	return recs
}

func TestResampleIsEvenInTime(t *testing.T) {
	got := Resample(ramp(), dynamo.Temperature, 5)
	want := []float64{0, 1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %d values", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: got %v want %v", i, got[i], want[i])
		}
	}
	if Resample(nil, dynamo.Temperature, 5) != nil {
		t.Error("expected nil for empty trace")
	}
}

func TestPlot(t *testing.T) {
	out := Plot(ramp(), dynamo.Temperature, 40, 5)
	if !strings.Contains(out, "temperature vs time") {
		t.Errorf("missing caption in %q", out)
	}
	if got := StageBoundaries(ramp()); got != "mashing@0.0h boiling@2.0h" {
		t.Errorf("unexpected boundaries %q", got)
	}
}

func TestSparklineAndProgress(t *testing.T) {
	if got := Sparkline([]float64{0, 1}, 2); got != "▁█" {
		t.Errorf("unexpected sparkline %q", got)
	}
	if !strings.Contains(ProgressBar(5, 10, 10), "█████░░░░░") {
		t.Error("progress bar should be half full")
	}
	if ProgressBar(1, 0, 10) != "" {
		t.Error("zero total renders nothing")
	}
}

func TestFrontTable(t *testing.T) {
	front := []optim.Candidate{{Params: []float64{64}, Objectives: []float64{-900, 12.5}}}
	out := Front([]string{"mashing.rest_temp"}, []string{"neg_yield", "energy"}, front)
	if !strings.Contains(out, "MASHING.REST_TEMP") || !strings.Contains(out, "12.5") {
		t.Errorf("unexpected table:\n%s", out)
	}

	gens := Generations([]optim.GenerationStats{{Generation: 0, Evaluated: 4, Feasible: 0, Failed: 4}})
	if !strings.Contains(gens, "failed   4") {
		t.Errorf("unexpected summary:\n%s", gens)
	}
}
