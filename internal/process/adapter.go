// internal/process/adapter.go
package process

import (
	"fmt"
	"time"

	"github.com/tendant/simple-ocr/pkg/schema"
)

// State is a pipeline driver state. RecognizingPages carries the current page
// on Run.Page.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateRasterizing      State = "rasterizing"
	StateRecognizingPages State = "recognizing_pages"
	StateAssembling       State = "assembling"
	StateCleaningUp       State = "cleaning_up"
	StateDone             State = "done"
)

var stages = map[State]schema.ProcessingStage{
	StateIdle:             schema.StageIdle,
	StateValidating:       schema.StageValidation,
	StateRasterizing:      schema.StageRasterize,
	StateRecognizingPages: schema.StageRecognize,
	StateAssembling:       schema.StageAssemble,
	StateCleaningUp:       schema.StageCleanup,
	StateDone:             schema.StageDone,
}

// Stage maps a driver state onto its wire name.
func (s State) Stage() schema.ProcessingStage { return stages[s] }

// allowed lists the forward edges of the driver. Done is reachable from every
// non-terminal state and has no outgoing edges.
var allowed = map[State][]State{
	StateIdle:             {StateValidating},
	StateValidating:       {StateRasterizing},
	StateRasterizing:      {StateRecognizingPages},
	StateRecognizingPages: {StateRecognizingPages, StateAssembling},
	StateAssembling:       {StateCleaningUp},
	StateCleaningUp:       {},
}

// TransitionError reports an edge the state machine does not have.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// Run tracks one job from construction to its terminal state and records the
// lifecycle for auditing.
type Run struct {
	ID         string
	State      State
	Page       int
	TotalPages int
	StartTime  time.Time
	Lifecycle  []schema.LifecycleEvent
	Error      string

	now func() time.Time
}

func NewRun(id string) *Run {
	r := &Run{ID: id, State: StateIdle, now: time.Now}
	r.StartTime = r.now()
	return r
}

// Advance moves the run to a new state. Moving into RecognizingPages
// increments the page counter and requires TotalPages to be set; Done is
// always permitted unless the run is already finished.
func (r *Run) Advance(to State) error {
	if r.Finished() {
		return &TransitionError{From: r.State, To: to}
	}
	if to != StateDone && !contains(allowed[r.State], to) {
		return &TransitionError{From: r.State, To: to}
	}
	if to == StateRecognizingPages {
		if r.Page >= r.TotalPages {
			return &TransitionError{From: r.State, To: to}
		}
		r.Page++
	}
	if to == StateAssembling && r.Page < r.TotalPages {
		return &TransitionError{From: r.State, To: to}
	}
	r.State = to
	r.record(nil, "")
	return nil
}

// Fail moves the run straight to Done and records the failure on the final
// lifecycle event.
func Fail(r *Run, err error, failureType schema.FailureType) {
	if r.Finished() {
		return
	}
	stage := r.State
	r.State = StateDone
	if err != nil {
		r.Error = err.Error()
	}
	r.record(err, failureType)
	last := &r.Lifecycle[len(r.Lifecycle)-1]
	last.Stage = stage.Stage()
}

func (r *Run) Finished() bool { return r.State == StateDone }

func (r *Run) Duration() time.Duration {
	if r.StartTime.IsZero() {
		return 0
	}
	return r.now().Sub(r.StartTime)
}

// Last returns the most recent lifecycle event.
func (r *Run) Last() schema.LifecycleEvent {
	if len(r.Lifecycle) == 0 {
		return schema.LifecycleEvent{RunID: r.ID, Stage: r.State.Stage()}
	}
	return r.Lifecycle[len(r.Lifecycle)-1]
}

func (r *Run) record(err error, failureType schema.FailureType) {
	event := schema.LifecycleEvent{
		RunID:      r.ID,
		Stage:      r.State.Stage(),
		HappenedAt: r.now().Unix(),
	}
	if r.State == StateRecognizingPages {
		event.Page = r.Page
		event.TotalPages = r.TotalPages
	}
	if err != nil {
		event.Error = err.Error()
		event.FailureType = failureType
	}
	r.Lifecycle = append(r.Lifecycle, event)
}

func contains(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
