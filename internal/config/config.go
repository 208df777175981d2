package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/experiment"
	"github.com/san-kum/brewsim/internal/metrics"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
)

type Config struct {
	Name         string              `yaml:"name,omitempty"`
	Integrator   string              `yaml:"integrator" validate:"oneof=rk45 rk4 dopri5"`
	Solver       dynamo.Config       `yaml:"solver"`
	InitialState map[string]float64  `yaml:"initial_state"`
	Params       stages.ParameterSet `yaml:"params"`
	Targets      metrics.Targets     `yaml:"targets"`
	Limits       experiment.Limits   `yaml:"limits"`
	Optimizer    optim.Config        `yaml:"optimizer"`
	Search       []optim.Bound       `yaml:"search" validate:"dive"`
	Objectives   []string            `yaml:"objectives,omitempty"`
	Constraints  []string            `yaml:"constraints,omitempty"`
}

func DefaultConfig() *Config {
	def := experiment.DefaultConfig()
	return &Config{
		Integrator:   def.Integrator,
		Solver:       def.Solver,
		InitialState: pipeline.DefaultInitial().Map(),
		Params:       def.Params,
		Targets:      def.Targets,
		Limits:       def.Limits,
		Optimizer:    def.Optimizer,
		Search:       def.Search,
	}
}

// Load overlays the YAML file at path onto DefaultConfig and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	return ParseOnto(DefaultConfig(), data)
}

// ParseOnto overlays YAML onto cfg in place and validates the
// result.
func ParseOnto(cfg *Config, data []byte) (*Config, error) {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports the first invalid setting as a
// *dynamo.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if _, err := c.State(); err != nil {
		return err
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config: %w", err)
	}
	fe := verrs[0]
	scope := "config"
	if parts := strings.Split(fe.Namespace(), "."); len(parts) >= 3 {
		scope = strings.Join(parts[1:len(parts)-1], ".")
	}
	value, _ := fe.Value().(float64)
	reason := "violates " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &dynamo.ConfigurationError{Scope: scope, Name: fe.Field(), Value: value, Reason: reason}
}

// State parses the named initial conditions.
func (c *Config) State() (dynamo.State, error) {
	x, err := dynamo.ParseState(c.InitialState)
	if err != nil {
		return nil, err
	}
	if err := pipeline.ValidateInitial(x); err != nil {
		return nil, err
	}
	first, err := stages.NewModel(stages.Order[0], c.Params)
	if err != nil {
		return nil, err
	}
	if err := pipeline.CheckEntry(first, x); err != nil {
		return nil, err
	}
	return x, nil
}

// Experiment converts the file form into a runnable experiment config.
func (c *Config) Experiment() (experiment.Config, error) {
	x, err := c.State()
	if err != nil {
		return experiment.Config{}, err
	}
	return experiment.Config{
		Integrator:  c.Integrator,
		Solver:      c.Solver,
		Initial:     x,
		Params:      c.Params,
		Targets:     c.Targets,
		Limits:      c.Limits,
		Optimizer:   c.Optimizer,
		Search:      append([]optim.Bound(nil), c.Search...),
		Objectives:  c.Objectives,
		Constraints: c.Constraints,
	}, nil
}
