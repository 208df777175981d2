package stages

import "math"

const (
	gasConstant       = 8.314  // J/(mol K)
	kelvin            = 273.15 // degC offset
	waterHeatCapacity = 4.186  // kJ/(kg K), wort treated as water
	grainHeatCapacity = 1.7    // kJ/(kg K)
	latentHeat        = 2257.0 // kJ/kg at 100 degC
	ambientTemp       = 20.0   // degC
	tapWaterTemp      = 15.0   // degC
	chillerCOP        = 3.0

	// Gay-Lussac: C6H12O6 -> 2 C2H5OH + 2 CO2, by mass.
	ethanolPerSugar = 0.511
	co2PerSugar     = 0.489

	// kJ released per g of sugar fermented.
	fermentationHeat = 0.586

	// Henry's law for CO2 in beer: g/(L atm) at 25 degC and van 't Hoff slope in K.
	henryCO2   = 1.45
	henrySlope = 2400.0

	// width in K of the smooth boiling and sterilisation switches
	switchWidth = 0.2
)

// arrhenius scales a rate known at refC to tempC.
func arrhenius(kRef, ea, tempC, refC float64) float64 {
	return kRef * math.Exp(-ea/gasConstant*(1/(tempC+kelvin)-1/(refC+kelvin)))
}

// monod is the saturating substrate term S/(Ks+S), with S floored at zero.
func monod(s, ks float64) float64 {
	s = math.Max(s, 0)
	return s / (ks + s)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// CO2Saturation is the equilibrium dissolved CO2 (g/L) at a temperature
// and absolute head pressure in atm.
func CO2Saturation(tempC, pressureAtm float64) float64 {
	return henryCO2 * math.Exp(henrySlope*(1/(tempC+kelvin)-1/298.15)) * pressureAtm
}

// ExtractionEfficiency is the fraction of grain-liquor sugar recovered by a
// wash volume with the given stage efficiency and retained liquor volume.
func ExtractionEfficiency(washVolume, efficiency, retained float64) float64 {
	if retained <= 0 {
		return 1
	}
	return 1 - math.Exp(-efficiency*washVolume/retained)
}
