package config

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/experiment"
	"github.com/san-kum/brewsim/internal/integrators"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "rk45", cfg.Integrator)
	assert.Equal(t, 5.0, cfg.InitialState["grain_mass"])
	assert.NotEmpty(t, cfg.Search)

	x, err := cfg.State()
	require.NoError(t, err)
	assert.Equal(t, 18.0, x[dynamo.Temperature])
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
integrator: rk4
initial_state:
  grain_mass: 6.5
params:
  mashing:
    rest_temp: 64
  boiling:
    hop_dose: 45
optimizer:
  population_size: 12
search:
  - name: mashing.rest_temp
    lower: 62
    upper: 70
`))
	require.NoError(t, err)

	assert.Equal(t, "rk4", cfg.Integrator)
	assert.Equal(t, 6.5, cfg.InitialState["grain_mass"])
	assert.Equal(t, 18.0, cfg.InitialState["temperature"], "unset fields keep their defaults")
	assert.Equal(t, 64.0, cfg.Params.Mashing.RestTemp)
	assert.Equal(t, 3.0, cfg.Params.Mashing.WaterRatio)
	assert.Equal(t, 45.0, cfg.Params.Boiling.HopDose)
	assert.Equal(t, 12, cfg.Optimizer.PopulationSize)
	assert.Equal(t, 50, cfg.Optimizer.MaxGenerations)
	require.Len(t, cfg.Search, 1)
	assert.Equal(t, "mashing.rest_temp", cfg.Search[0].Name)

	ec, err := cfg.Experiment()
	require.NoError(t, err)
	assert.Equal(t, 6.5, ec.Initial[dynamo.Mass])
	assert.Equal(t, 64.0, ec.Params.Mashing.RestTemp)
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		scope string
		field string
	}{
		{"stage coefficient", "params:\n  washing:\n    efficiency: 1.5\n", "washing", "efficiency"},
		{"unknown initial field", "initial_state:\n  colour: 3\n", "initial_state", "colour"},
		{"negative initial mass", "initial_state:\n  grain_mass: -1\n", "initial_state", "grain_mass"},
		{"initial pH out of range", "initial_state:\n  ph: 12\n", "initial_state", "ph"},
		{"initial temperature out of range", "initial_state:\n  temperature: 65\n", "initial_state", "temperature"},
		{"solver safety", "solver:\n  safety: 1.5\n", "solver", "safety"},
		{"population", "optimizer:\n  population_size: 2\n", "optimizer", "population_size"},
		{"bound order", "search:\n  - name: boiling.hop_dose\n    lower: 90\n    upper: 20\n", "search[0]", "upper"},
		{"targets", "targets:\n  ibu: 0\n", "targets", "ibu"},
		{"integrator", "integrator: euler\n", "config", "integrator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, dynamo.ErrConfiguration)

			var cerr *dynamo.ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.scope, cerr.Scope)
			assert.Equal(t, tt.field, cerr.Name)
		})
	}

	_, err := Parse([]byte("params: [1, 2"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brew.yaml")
	cfg := GetPreset("lager")
	require.NotNil(t, cfg)
	cfg.Objectives = []string{"neg_yield", "energy"}

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"lager", "pale_ale", "stout"}, ListPresets())

	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.Equal(t, name, cfg.Name)
		require.NoError(t, cfg.Validate(), name)
		_, err := cfg.Experiment()
		require.NoError(t, err, name)
	}

	lager := GetPreset("lager")
	assert.Equal(t, 11.0, lager.Params.Fermentation.Temp)
	assert.Equal(t, 66.0, DefaultConfig().Params.Mashing.RestTemp, "presets do not leak into defaults")

	assert.Nil(t, GetPreset("sour"))
}

func TestParseOntoPreset(t *testing.T) {
	cfg, err := ParseOnto(GetPreset("stout"), []byte("params:\n  boiling:\n    hop_dose: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.Params.Boiling.HopDose)
	assert.Equal(t, 68.0, cfg.Params.Mashing.RestTemp, "preset values survive the overlay")
	assert.Equal(t, "stout", cfg.Name)
}

func TestEveryValidIntegratorResolves(t *testing.T) {
	field, ok := reflect.TypeOf(Config{}).FieldByName("Integrator")
	require.True(t, ok)
	tag := field.Tag.Get("validate")
	require.True(t, strings.HasPrefix(tag, "oneof="))
	accepted := strings.Fields(strings.TrimPrefix(tag, "oneof="))
	assert.ElementsMatch(t, integrators.Methods, accepted)

	registry := experiment.NewRegistry()
	for _, name := range accepted {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte("integrator: " + name + "\n"))
			require.NoError(t, err)
			solver, err := registry.Solver(cfg.Integrator, cfg.Solver)
			require.NoError(t, err)
			assert.NotNil(t, solver)
		})
	}
}
