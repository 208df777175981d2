package pipeline

import (
	"errors"
	"fmt"

	"github.com/san-kum/brewsim/internal/dynamo"
)

// ErrIncompatibleHandoff reports a stage output that cannot seed the next stage.
var ErrIncompatibleHandoff = errors.New("pipeline: incompatible stage handoff")

// StageFailure tags a pipeline abort with the stage it happened in.
type StageFailure struct {
	Index     int
	Stage     string
	LastValid dynamo.State
	Time      float64
	Cause     error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("pipeline failed in stage %d (%s) at t=%.4fh: %v", e.Index, e.Stage, e.Time, e.Cause)
}

func (e *StageFailure) Unwrap() error { return e.Cause }
