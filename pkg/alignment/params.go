package alignment

import (
	"github.com/ChrisMcGann/spotkey/pkg/core"
)

// Parameters configure the refiner.
type Parameters struct {
	MzTolerance core.Tolerance `yaml:"mz_tolerance"`
	RtTolerance float64        `yaml:"rt_tolerance" validate:"gte=0"` // minutes; duplicates lie within half of it
	RtMargin    float64        `yaml:"rt_margin" validate:"gte=0"`    // minutes; window for partner spots when linking

	MinSamplesForCorrelation int     `yaml:"min_samples_for_correlation" validate:"gte=0"`
	CorrelationThreshold     float64 `yaml:"correlation_threshold" validate:"min=0,max=1"`

	MaxIsotopes int      `yaml:"max_isotopes" validate:"gte=0"`
	MaxCharge   int      `yaml:"max_charge" validate:"gte=0"`
	Adducts     []string `yaml:"adducts" validate:"dive,adduct"` // adduct names; empty uses the defaults of each polarity
}

// DefaultParameters returns the refiner defaults.
func DefaultParameters() Parameters {
	return Parameters{
		MzTolerance:              core.Tolerance{Value: 0.01, Threshold: core.DefaultPPMThreshold},
		RtTolerance:              0.1,
		RtMargin:                 0.05,
		MinSamplesForCorrelation: 3,
		CorrelationThreshold:     0.95,
		MaxIsotopes:              2,
		MaxCharge:                2,
	}
}

// adducts returns the adduct forms considered for a polarity.
func (p Parameters) adducts(pol core.Polarity) []core.Adduct {
	if len(p.Adducts) == 0 {
		return core.DefaultAdducts(pol)
	}
	var out []core.Adduct
	for _, name := range p.Adducts {
		a, ok := core.LookupAdduct(name)
		if !ok {
			continue
		}
		if pol == core.PolarityUnknown || a.Polarity() == pol {
			out = append(out, a)
		}
	}
	return out
}

func (p Parameters) maxCharge() int {
	if p.MaxCharge < 1 {
		return 1
	}
	return p.MaxCharge
}
