package config

import "sort"

// Preset is a named recipe applied on top of DefaultConfig.
type Preset struct {
	Description string
	apply       func(*Config)
}

var Presets = map[string]Preset{
	"pale_ale": {
		Description: "single infusion at 66C, late-hopped, warm ale fermentation",
		apply: func(c *Config) {
			c.Params.Mashing.RestTemp = 66
			c.Params.Boiling.HopDose = 90
			c.Params.Fermentation.Temp = 19
			c.Targets.IBU = 35
			c.Targets.CO2 = 4.8
		},
	},
	"lager": {
		Description: "cool 64C rest for a fermentable wort, cold fermentation and long lagering",
		apply: func(c *Config) {
			c.Params.Mashing.RestTemp = 64
			c.Params.Mashing.Duration = 1.5
			c.Params.Boiling.HopDose = 40
			c.Params.Boiling.Duration = 1.5
			c.Params.Cooling.CoolantTemp = 6
			c.Params.Fermentation.Temp = 11
			c.Params.Fermentation.PitchRate = 10
			c.Params.Fermentation.Duration = 240
			c.Params.Conditioning.Temp = 0
			c.Params.Conditioning.Duration = 504
			c.Targets.IBU = 20
			c.Targets.CO2 = 5.2
		},
	},
	"stout": {
		Description: "coarse crush, thick 68C mash, bitter and lightly carbonated",
		apply: func(c *Config) {
			c.Params.Milling.Gap = 1.1
			c.Params.Mashing.WaterRatio = 2.6
			c.Params.Mashing.RestTemp = 68
			c.Params.Boiling.HopDose = 80
			c.Params.Fermentation.Temp = 18
			c.Targets.IBU = 40
			c.Targets.CO2 = 4.0
			c.Params.Conditioning.HeadPressure = 1.3
		},
	},
}

// GetPreset returns a fresh config for a preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = name
	p.apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
