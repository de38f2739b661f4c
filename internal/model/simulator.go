package model

import (
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/units"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

// Simulator output names read by the model.
const (
	OutLuminosity = "final.star.Luminosity"
	OutRadius     = "final.star.Radius"
	OutRotPer     = "final.star.RotPer"
	OutRossby     = "final.star.RossbyNumber"
)

// SimulatorConfig returns the vplanet configuration for the stellar model:
// mass in Msun, initial period and stop age in the star's period and age
// units, starting at 5 Myr with 1 Myr outputs.
func SimulatorConfig(obs observation.Set, binary, inPath, outPath string) vplanet.Config {
	return vplanet.Config{
		Binary:   binary,
		InPath:   inPath,
		OutPath:  outPath,
		TimeInit: units.Q(5e6, units.Year),
		Timestep: units.Q(1e6, units.Year),
		TimeUnit: units.Year,
		InParams: []vplanet.InParam{
			{Name: "star.dMass", Unit: units.Msun, FileUnit: units.Msun},
			// negative dRotPeriod is read in days
			{Name: "star.dRotPeriod", Unit: obs.Unit(observation.Prot), FileUnit: units.Day, Negate: true},
			{Name: "vpl.dStopTime", Unit: obs.Unit(observation.Age), FileUnit: units.Year},
		},
		OutParams: []vplanet.OutParam{
			{Name: OutLuminosity, Column: "-Luminosity", FileUnit: units.Lsun},
			{Name: OutRadius, Column: "-Radius", FileUnit: units.Rsun},
			{Name: OutRotPer, Column: "-RotPer", FileUnit: units.Day},
			{Name: OutRossby, Column: "RossbyNumber", FileUnit: units.One},
		},
	}
}
