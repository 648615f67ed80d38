package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/xcfit/internal/fit"
)

// Record is the persisted outcome of a fit. The converged, loss, params and
// params_diff keys form the result document printed by the train command.
type Record struct {
	RunID     string `yaml:"run_id,omitempty"`
	Model     string `yaml:"model,omitempty"`
	Method    string `yaml:"method,omitempty"`
	Converged bool   `yaml:"converged"`

	Loss       float64            `yaml:"loss"`
	Params     map[string]float64 `yaml:"params"`
	ParamsDiff map[string]float64 `yaml:"params_diff"`

	Iterations int       `yaml:"iterations,omitempty"`
	Reactions  int       `yaml:"reactions,omitempty"` // Number of fitted reactions
	Timestamp  time.Time `yaml:"timestamp,omitempty"`
}

// RecordInfo contains metadata about a stored run without the parameters.
type RecordInfo struct {
	RunID      string
	Model      string
	Method     string
	Converged  bool
	Loss       float64
	Iterations int
	Timestamp  time.Time
}

// NewRecord creates a record from a fit result.
func NewRecord(runID, model string, res *fit.Result, reactions int) *Record {
	return &Record{
		RunID:      runID,
		Model:      model,
		Method:     string(res.Method),
		Converged:  res.Converged,
		Loss:       res.Loss,
		Params:     res.Params.Clone(),
		ParamsDiff: res.ParamsDiff.Clone(),
		Iterations: res.Iterations,
		Reactions:  reactions,
		Timestamp:  time.Now(),
	}
}

// ToInfo converts a full Record to RecordInfo (metadata only).
func (r *Record) ToInfo() RecordInfo {
	return RecordInfo{
		RunID:      r.RunID,
		Model:      r.Model,
		Method:     r.Method,
		Converged:  r.Converged,
		Loss:       r.Loss,
		Iterations: r.Iterations,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks the fields needed to reuse the parameters of a record.
// RunID and Timestamp are only required for records kept in a Store.
func (r *Record) Validate() error {
	if len(r.Params) == 0 {
		return &ValidationError{Field: "Params", Reason: "cannot be empty"}
	}
	for name, v := range r.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "Params." + name, Reason: "must be finite"}
		}
	}
	for name := range r.ParamsDiff {
		if _, ok := r.Params[name]; !ok {
			return &ValidationError{Field: "ParamsDiff." + name, Reason: "has no matching parameter"}
		}
	}
	if math.IsNaN(r.Loss) || r.Loss < 0 {
		return &ValidationError{Field: "Loss", Reason: "must be a non-negative number"}
	}
	if r.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	return nil
}

func (r *Record) validateStored() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return r.Validate()
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if the parameters of this record can be used with the
// given model and its parameter names.
func (r *Record) IsCompatible(model string, names []string) error {
	if r.Model != "" && model != "" && r.Model != model {
		return &CompatibilityError{Field: "Model", Expected: model, Actual: r.Model}
	}
	if len(r.Params) != len(names) {
		return &CompatibilityError{
			Field:    "Params",
			Expected: fmt.Sprintf("%d parameters", len(names)),
			Actual:   fmt.Sprintf("%d parameters", len(r.Params)),
		}
	}
	for _, name := range names {
		if _, ok := r.Params[name]; !ok {
			return &CompatibilityError{Field: "Params", Expected: name, Actual: "missing"}
		}
	}
	return nil
}

// CompatibilityError represents a record/model mismatch.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
