// Package config provides the TrainConfig struct and loader for YAML
// training configuration files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/xcfit/internal/fit"
	"github.com/cwbudde/xcfit/internal/xc"
	"gopkg.in/yaml.v3"
)

// Default values for training configuration. New() references them and
// the CLI uses them as flag defaults.
const (
	DefaultBasis      = "def2-qzvppd"
	DefaultFunctional = "PBE"
	DefaultModel      = string(xc.KindHybridB88)
	DefaultMethod     = string(fit.MethodLBFGS)
	DefaultDataRoot   = "."
	DefaultStoreDir   = "./data"

	DefaultMaxIterations  = 10
	DefaultTolerance      = 1e-3
	DefaultStepRate       = 1e-3
	DefaultGradTolerance  = 1e-6
	DefaultMaxEvaluations = 100
	DefaultDensityCutoff  = 1e-9

	DefaultPopSize    = 30
	DefaultSearchSpan = 1.0
	DefaultSeed       = 42
)

// TrainConfig holds every setting of a training run. Unknown keys in a
// configuration file are rejected.
type TrainConfig struct {
	Reactions  []string `yaml:"reactions,omitempty"` // Reaction database files
	Model      string   `yaml:"model"`
	Basis      string   `yaml:"basis"`
	Functional string   `yaml:"functional"`
	DataRoot   string   `yaml:"data_root"`

	Method         string  `yaml:"method"`
	MaxIterations  int     `yaml:"max_iterations"`
	Tolerance      float64 `yaml:"tolerance"`
	StepRate       float64 `yaml:"step_rate"`
	Rescale        bool    `yaml:"rescale"`
	GradTolerance  float64 `yaml:"grad_tolerance"`
	MaxEvaluations int     `yaml:"max_evaluations"`
	DensityCutoff  float64 `yaml:"density_cutoff"`

	PopSize    int     `yaml:"pop_size"`
	SearchSpan float64 `yaml:"search_span"`
	Seed       int64   `yaml:"seed"`

	ParamWeightsFile string `yaml:"param_weights_file,omitempty"`
	NoiseFile        string `yaml:"noise_file,omitempty"`
	SaveFile         string `yaml:"save_file,omitempty"`
	StoreDir         string `yaml:"store_dir"`
}

// New returns a TrainConfig with all defaults populated.
func New() *TrainConfig {
	return &TrainConfig{
		Model:          DefaultModel,
		Basis:          DefaultBasis,
		Functional:     DefaultFunctional,
		DataRoot:       DefaultDataRoot,
		Method:         DefaultMethod,
		MaxIterations:  DefaultMaxIterations,
		Tolerance:      DefaultTolerance,
		StepRate:       DefaultStepRate,
		Rescale:        true,
		GradTolerance:  DefaultGradTolerance,
		MaxEvaluations: DefaultMaxEvaluations,
		DensityCutoff:  DefaultDensityCutoff,
		PopSize:        DefaultPopSize,
		SearchSpan:     DefaultSearchSpan,
		Seed:           DefaultSeed,
		StoreDir:       DefaultStoreDir,
	}
}

// Load reads a YAML configuration file over the defaults. Keys absent from
// the file keep their default values.
func Load(path string) (*TrainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document over the defaults.
func Parse(data []byte) (*TrainConfig, error) {
	cfg := New()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ValidationError reports the first invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}

// Is makes every ValidationError match fit.ErrConfig.
func (e *ValidationError) Is(target error) bool {
	return target == fit.ErrConfig
}

// Validate checks the configuration and reports the first invalid field.
func (c *TrainConfig) Validate() error {
	if _, err := xc.ParseKind(c.Model); err != nil {
		return &ValidationError{Field: "model", Reason: err.Error()}
	}
	method, err := fit.ParseMethod(c.Method)
	if err != nil {
		return &ValidationError{Field: "method", Reason: err.Error()}
	}
	switch {
	case c.Basis == "":
		return &ValidationError{Field: "basis", Reason: "cannot be empty"}
	case c.Functional == "":
		return &ValidationError{Field: "functional", Reason: "cannot be empty"}
	case c.MaxIterations < 1:
		return &ValidationError{Field: "max_iterations", Reason: "must be positive"}
	case !(c.DensityCutoff >= 0):
		return &ValidationError{Field: "density_cutoff", Reason: "cannot be negative"}
	}

	switch method {
	case fit.MethodGradientDescent:
		if !(c.StepRate > 0) {
			return &ValidationError{Field: "step_rate", Reason: "must be positive"}
		}
		if !(c.Tolerance > 0) {
			return &ValidationError{Field: "tolerance", Reason: "must be positive"}
		}
	case fit.MethodLBFGS:
		if !(c.GradTolerance > 0) {
			return &ValidationError{Field: "grad_tolerance", Reason: "must be positive"}
		}
		if c.MaxEvaluations < 1 {
			return &ValidationError{Field: "max_evaluations", Reason: "must be positive"}
		}
	case fit.MethodMayfly:
		if c.PopSize < 2 {
			return &ValidationError{Field: "pop_size", Reason: "must be at least 2"}
		}
		if !(c.SearchSpan > 0) {
			return &ValidationError{Field: "search_span", Reason: "must be positive"}
		}
	}
	return nil
}

// FitOptions converts the configuration into fit options. Call Validate first.
func (c *TrainConfig) FitOptions() (fit.Options, error) {
	method, err := fit.ParseMethod(c.Method)
	if err != nil {
		return fit.Options{}, err
	}
	opts := fit.DefaultOptions()
	opts.Method = method
	opts.MaxIterations = c.MaxIterations
	opts.Tolerance = c.Tolerance
	opts.StepRate = c.StepRate
	opts.Rescale = c.Rescale
	opts.GradTolerance = c.GradTolerance
	opts.MaxEvaluations = c.MaxEvaluations
	opts.PopSize = c.PopSize
	opts.SearchSpan = c.SearchSpan
	opts.Seed = c.Seed
	return opts, nil
}

// LoadParamWeights reads a YAML map from parameter name to fit weight.
func LoadParamWeights(path string) (xc.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading parameter weights: %w", err)
	}
	var weights map[string]float64
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&weights); err != nil {
		return nil, fmt.Errorf("parsing parameter weights %s: %w", path, err)
	}
	if len(weights) == 0 {
		return nil, &ValidationError{Field: "param_weights_file", Reason: "contains no weights"}
	}
	return xc.Params(weights), nil
}
