package frame

import (
	"slices"

	"storyreel/pkg/schema"
)

// Run tracks the emission state of one streaming decomposition request: the
// high-water mark of emitted scene numbers and the scenes emitted so far.
// A Run belongs to exactly one request and is never shared.
type Run struct {
	requested int
	highest   int
	scenes    map[int]schema.Scene
	finalized bool
}

// NewRun starts a run targeting requested scenes. When resuming, resumeFrom
// seeds the high-water mark so previously delivered scenes are not re-emitted.
func NewRun(requested, resumeFrom int) *Run {
	return &Run{
		requested: requested,
		highest:   resumeFrom,
		scenes:    make(map[int]schema.Scene),
	}
}

// Accept admits a candidate iff its number is strictly above the high-water
// mark. Duplicates and lower-numbered repeats from the model are dropped, so
// accepted scenes always advance. Re-accepting a number after an external
// regeneration overwrites by key.
func (r *Run) Accept(s schema.Scene) bool {
	if s.SceneNumber <= r.highest {
		return false
	}
	r.highest = s.SceneNumber
	r.scenes[s.SceneNumber] = s
	return true
}

// Progress reports percent complete, held below 100 until Finalize so the
// client can tell "nearly done" from "done".
func (r *Run) Progress() float64 {
	return min(95, float64(r.highest)/float64(r.requested)*100)
}

// InitialProgress is the uncapped starting percentage for a resumed run.
func (r *Run) InitialProgress() float64 {
	return float64(r.highest) / float64(r.requested) * 100
}

// Highest returns the high-water mark.
func (r *Run) Highest() int { return r.highest }

// Finalize closes the run after the token stream is exhausted. It reports
// the total emitted count and whether the target was reached, exactly once;
// repeated calls return the same values.
func (r *Run) Finalize() (totalScenes int, isComplete bool) {
	r.finalized = true
	return r.highest, r.highest >= r.requested
}

// Finalized reports whether the run has been closed.
func (r *Run) Finalized() bool { return r.finalized }

// Scenes returns the emitted scenes in ascending scene order.
func (r *Run) Scenes() []schema.Scene {
	out := make([]schema.Scene, 0, len(r.scenes))
	for _, s := range r.scenes {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b schema.Scene) int { return a.SceneNumber - b.SceneNumber })
	return out
}
