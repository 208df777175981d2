package stages

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/san-kum/brewsim/internal/dynamo"
)

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

// ParameterSet groups every stage's coefficients.
type ParameterSet struct {
	Milling      MillingParams      `yaml:"milling"`
	Mashing      MashingParams      `yaml:"mashing"`
	Washing      WashingParams      `yaml:"washing"`
	Boiling      BoilingParams      `yaml:"boiling"`
	Cooling      CoolingParams      `yaml:"cooling"`
	Fermentation FermentationParams `yaml:"fermentation"`
	Conditioning ConditioningParams `yaml:"conditioning"`
}

func DefaultParameterSet() ParameterSet {
	return ParameterSet{
		Milling:      DefaultMillingParams(),
		Mashing:      DefaultMashingParams(),
		Washing:      DefaultWashingParams(),
		Boiling:      DefaultBoilingParams(),
		Cooling:      DefaultCoolingParams(),
		Fermentation: DefaultFermentationParams(),
		Conditioning: DefaultConditioningParams(),
	}
}

// Configurable is a stage parameter block addressable by coefficient name.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

func (p *ParameterSet) stage(name string) (Configurable, error) {
	switch name {
	case MillingStage:
		return &p.Milling, nil
	case MashingStage:
		return &p.Mashing, nil
	case WashingStage:
		return &p.Washing, nil
	case BoilingStage:
		return &p.Boiling, nil
	case CoolingStage:
		return &p.Cooling, nil
	case FermentationStage:
		return &p.Fermentation, nil
	case ConditioningStage:
		return &p.Conditioning, nil
	default:
		return nil, &dynamo.ConfigurationError{Scope: "params", Name: name, Reason: "unknown stage"}
	}
}

// Set assigns one coefficient. It does not validate the value.
func (p *ParameterSet) Set(stage, name string, value float64) error {
	c, err := p.stage(stage)
	if err != nil {
		return err
	}
	if err := c.SetParam(name, value); err != nil {
		return &dynamo.ConfigurationError{Scope: stage, Name: name, Value: value, Reason: err.Error()}
	}
	return nil
}

// SetKey assigns a coefficient addressed as "stage.name".
func (p *ParameterSet) SetKey(key string, value float64) error {
	stage, name, ok := strings.Cut(key, ".")
	if !ok {
		return &dynamo.ConfigurationError{Scope: "params", Name: key, Value: value, Reason: "expected stage.name"}
	}
	return p.Set(stage, name, value)
}

// Get reads one coefficient.
func (p ParameterSet) Get(stage, name string) (float64, error) {
	c, err := p.stage(stage)
	if err != nil {
		return 0, err
	}
	v, ok := c.GetParams()[name]
	if !ok {
		return 0, &dynamo.ConfigurationError{Scope: stage, Name: name, Reason: "unknown param"}
	}
	return v, nil
}

// Apply overlays an externally parsed stage -> coefficient -> value mapping.
func (p *ParameterSet) Apply(values map[string]map[string]float64) error {
	for stage, coeffs := range values {
		for name, v := range coeffs {
			if err := p.Set(stage, name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Map returns the set as stage -> coefficient -> value.
func (p ParameterSet) Map() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(Order))
	for _, name := range Order {
		c, _ := p.stage(name)
		out[name] = c.GetParams()
	}
	return out
}

// Validate checks every coefficient against its declared bounds.
func (p ParameterSet) Validate() error {
	return validateStruct("params", p)
}

func validateStruct(scope string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%s: %w", scope, err)
	}
	fe := verrs[0]
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) >= 3 {
		scope = parts[len(parts)-2]
	}
	value, _ := fe.Value().(float64)
	reason := fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &dynamo.ConfigurationError{Scope: scope, Name: fe.Field(), Value: value, Reason: "violates " + reason}
}

// Build constructs the seven models in process order.
func Build(p ParameterSet) ([]Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	models := make([]Model, 0, len(Order))
	for _, name := range Order {
		m, err := NewModel(name, p)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// NewModel constructs a single stage by name.
func NewModel(name string, p ParameterSet) (Model, error) {
	var (
		m   Model
		err error
	)
	switch name {
	case MillingStage:
		m, err = NewMilling(p.Milling)
	case MashingStage:
		m, err = NewMashing(p.Mashing)
	case WashingStage:
		m, err = NewWashing(p.Washing)
	case BoilingStage:
		m, err = NewBoiling(p.Boiling)
	case CoolingStage:
		m, err = NewCooling(p.Cooling)
	case FermentationStage:
		m, err = NewFermentation(p.Fermentation)
	case ConditioningStage:
		m, err = NewConditioning(p.Conditioning)
	default:
		return nil, &dynamo.ConfigurationError{Scope: "stage", Name: name, Reason: "unknown stage"}
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func unknownParam(name string) error {
	return fmt.Errorf("unknown param: %s", name)
}
