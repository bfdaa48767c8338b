package ranking

import (
	"testing"

	"github.com/nonomal/stract/internal/webpage"
)

func TestScoreAppliesDefaultCoefficients(t *testing.T) {
	r := New(nil, nil)
	in := Input{
		BM25: map[SignalID]float64{SignalBM25Title: 2.0},
	}

	score := r.Score(in)

	want := defaultCoefficients[SignalBM25Title] * 2.0
	if score.Total != want {
		t.Fatalf("Total = %v, want %v", score.Total, want)
	}
	if len(score.Signals) != len(All()) {
		t.Fatalf("len(Signals) = %d, want %d", len(score.Signals), len(All()))
	}
}

func TestScoreOverrideTakesPriorityOverModel(t *testing.T) {
	overrides := map[SignalID]float64{SignalHostCentrality: 9.0}
	r := New(overrides, stubModel{SignalHostCentrality: 1.0})

	score := r.Score(Input{HostCentrality: 2.0})

	got := findSignal(t, score, SignalHostCentrality)
	if got.Coefficient != 9.0 {
		t.Fatalf("Coefficient = %v, want override 9.0", got.Coefficient)
	}
}

func TestScoreModelTakesPriorityOverDefault(t *testing.T) {
	r := New(nil, stubModel{SignalHostCentrality: 4.0})

	score := r.Score(Input{HostCentrality: 2.0})

	got := findSignal(t, score, SignalHostCentrality)
	if got.Coefficient != 4.0 {
		t.Fatalf("Coefficient = %v, want model 4.0", got.Coefficient)
	}
	if got.Value != 2.0 {
		t.Fatalf("Value = %v, want 2.0", got.Value)
	}
}

func TestZeroCoefficientSignalStillReported(t *testing.T) {
	r := New(nil, nil)
	score := r.Score(Input{UpdatedTime: 12345})

	got := findSignal(t, score, SignalUpdatedTime)
	if got.Value != 12345 {
		t.Fatalf("Value = %v, want 12345", got.Value)
	}
	if got.Coefficient != 0 {
		t.Fatalf("Coefficient = %v, want 0", got.Coefficient)
	}
}

type stubModel map[SignalID]float64

func (m stubModel) Coefficient(id SignalID) (float64, bool) {
	v, ok := m[id]
	return v, ok
}

func findSignal(t *testing.T, score webpage.Score, id SignalID) webpage.SignalScore {
	t.Helper()
	for _, s := range score.Signals {
		if s.Name == id.Name() {
			return s
		}
	}
	t.Fatalf("signal %s not found in score", id.Name())
	return webpage.SignalScore{}
}
