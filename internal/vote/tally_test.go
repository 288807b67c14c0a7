package vote

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCount_Empty(t *testing.T) {
	tally := Count(nil)
	if tally.Len() != 0 || tally.Total() != 0 {
		t.Errorf("empty tally has Len=%d Total=%d", tally.Len(), tally.Total())
	}
	if _, _, ok := tally.Leader(); ok {
		t.Error("empty tally reported a leader")
	}
}

func TestCount_InsertionOrder(t *testing.T) {
	tally := Count([]Vote{
		{Classification: "non_dili"},
		{Classification: "dili"},
		{Classification: "dili"},
		{Classification: "unknown"},
	})

	want := []Classification{"non_dili", "dili", "unknown"}
	if diff := cmp.Diff(want, tally.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if got := tally.Get("dili"); got != 2 {
		t.Errorf("Get(dili) = %d, want 2", got)
	}
	if got := tally.Total(); got != 4 {
		t.Errorf("Total = %d, want 4", got)
	}
}

func TestTally_LeaderTieBreak(t *testing.T) {
	tests := []struct {
		name  string
		votes []Classification
		want  Classification
		count int
	}{
		{name: "first seen wins tie", votes: []Classification{"B", "A", "A", "B"}, want: "B", count: 2},
		{name: "clear leader", votes: []Classification{"B", "A", "A"}, want: "A", count: 2},
		{name: "single", votes: []Classification{"A"}, want: "A", count: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tally Tally
			for _, c := range tt.votes {
				tally.Add(c)
			}
			got, count, ok := tally.Leader()
			if !ok || got != tt.want || count != tt.count {
				t.Errorf("Leader = (%q, %d, %v), want (%q, %d, true)", got, count, ok, tt.want, tt.count)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	votes := []Vote{
		{Classification: "A", Rationale: "a1"},
		{Classification: "B", Rationale: "b1"},
		{Classification: "A", Rationale: "a2"},
	}
	got := Resolve(Count(votes), votes)
	want := Decision{Classification: "A", Rationale: "a1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}

	if got := Resolve(Tally{}, nil); got.Classification != NoConsensus {
		t.Errorf("Resolve(empty) = %q, want NoConsensus", got.Classification)
	}
}
