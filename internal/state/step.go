package state

import (
	"encoding/json"
	"fmt"
)

// StepKind names a position in the integration state machine.
type StepKind string

const (
	StepStarted               StepKind = "Started"
	StepBaseBranchUpdated     StepKind = "BaseBranchUpdated"
	StepFeatureBranchPrepared StepKind = "FeatureBranchPrepared"
	StepConflictsDetected     StepKind = "ConflictsDetected"
	StepConflictsResolved     StepKind = "ConflictsResolved"
	StepIntegrationComplete   StepKind = "IntegrationComplete"
	StepFailed                StepKind = "Failed"
)

// Step is the state-machine position plus the payload some positions
// carry. Files is meaningful only for ConflictsDetected, Error only for
// Failed; keeping them inside Step stops the payload and the position
// from drifting apart.
type Step struct {
	Kind  StepKind
	Files []string
	Error string
}

func Started() Step               { return Step{Kind: StepStarted} }
func BaseBranchUpdated() Step     { return Step{Kind: StepBaseBranchUpdated} }
func FeatureBranchPrepared() Step { return Step{Kind: StepFeatureBranchPrepared} }
func ConflictsResolved() Step     { return Step{Kind: StepConflictsResolved} }
func IntegrationComplete() Step   { return Step{Kind: StepIntegrationComplete} }

func ConflictsDetected(files []string) Step {
	return Step{Kind: StepConflictsDetected, Files: files}
}

func Failed(reason string) Step {
	return Step{Kind: StepFailed, Error: reason}
}

// Terminal reports whether no forward transition leaves this step. Abort
// remains callable from terminal steps.
func (s Step) Terminal() bool {
	return s.Kind == StepIntegrationComplete || s.Kind == StepFailed
}

func (s Step) String() string {
	switch s.Kind {
	case StepConflictsDetected:
		return fmt.Sprintf("%s(%d files)", s.Kind, len(s.Files))
	case StepFailed:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Error)
	default:
		return string(s.Kind)
	}
}

type conflictsPayload struct {
	Files []string `json:"files"`
}

type failedPayload struct {
	Error string `json:"error"`
}

// MarshalJSON writes unit variants as bare strings and payload variants as
// single-key objects, e.g. {"ConflictsDetected":{"files":["a.txt"]}}.
func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StepConflictsDetected:
		return json.Marshal(map[string]conflictsPayload{
			string(StepConflictsDetected): {Files: s.Files},
		})
	case StepFailed:
		return json.Marshal(map[string]failedPayload{
			string(StepFailed): {Error: s.Error},
		})
	case StepStarted, StepBaseBranchUpdated, StepFeatureBranchPrepared,
		StepConflictsResolved, StepIntegrationComplete:
		return json.Marshal(string(s.Kind))
	default:
		return nil, fmt.Errorf("unknown integration step %q", s.Kind)
	}
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (s *Step) UnmarshalJSON(data []byte) error {
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		switch StepKind(unit) {
		case StepStarted, StepBaseBranchUpdated, StepFeatureBranchPrepared,
			StepConflictsResolved, StepIntegrationComplete:
			*s = Step{Kind: StepKind(unit)}
			return nil
		default:
			return fmt.Errorf("unknown integration step %q", unit)
		}
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("integration step is neither a string nor an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("integration step object must have exactly one variant, got %d", len(tagged))
	}

	for kind, payload := range tagged {
		switch StepKind(kind) {
		case StepConflictsDetected:
			var p conflictsPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("decoding ConflictsDetected payload: %w", err)
			}
			*s = Step{Kind: StepConflictsDetected, Files: p.Files}
			return nil
		case StepFailed:
			var p failedPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("decoding Failed payload: %w", err)
			}
			*s = Step{Kind: StepFailed, Error: p.Error}
			return nil
		default:
			return fmt.Errorf("unknown integration step %q", kind)
		}
	}
	return fmt.Errorf("empty integration step object")
}
