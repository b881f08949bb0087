package core

import (
	"math"
	"sort"
)

// Atomic masses (monoisotopic)
const (
	MassH  = 1.0078250321
	MassC  = 12.0000000000
	MassN  = 14.0030740052
	MassO  = 15.9949146221
	MassS  = 31.9720706900
	MassP  = 30.9737615100
	MassNa = 22.9897692809
	MassK  = 38.9637064864
	MassCl = 34.9688527300

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
	// ElectronMass is subtracted for cation adducts formed by atoms, not protons.
	ElectronMass = 0.00054857990946
	// C13Diff is the spacing between consecutive isotope peaks at charge 1.
	C13Diff = 1.003354835

	massWater = 2*MassH + MassO
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// AminoAcidMasses maps amino acid one-letter codes to elemental composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// ResidueMass returns the monoisotopic residue mass of an amino acid and
// whether it is known.
func ResidueMass(aa rune) (float64, bool) {
	c, ok := AminoAcidMasses[aa]
	if !ok {
		return 0, false
	}
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS, true
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide
func CalculateNeutralMass(sequence string, modifications []Modification) float64 {
	mass := massWater
	for _, aa := range sequence {
		if m, ok := ResidueMass(aa); ok {
			mass += m
		}
	}
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// CalculatePeptideMass computes monoisotopic mass of a peptide sequence
// including modifications, then returns the m/z for a given charge state.
func CalculatePeptideMass(sequence string, charge int, modifications []Modification) float64 {
	mass := CalculateNeutralMass(sequence, modifications)
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// FragmentIon is a theoretical b or y ion.
type FragmentIon struct {
	Type     byte // 'b' or 'y'
	Position int  // number of residues in the fragment
	Charge   int
	MZ       float64
}

// FragmentIons returns the b and y ladders of a peptide for fragment charges
// 1..maxCharge, sorted by m/z. Modifications at position -1 count as
// N-terminal and at len(sequence) as C-terminal.
func FragmentIons(sequence string, modifications []Modification, maxCharge int) []FragmentIon {
	residues := []rune(sequence)
	n := len(residues)
	if n < 2 {
		return nil
	}
	if maxCharge < 1 {
		maxCharge = 1
	}

	shifts := make([]float64, n)
	var nTerm, cTerm float64
	for _, mod := range modifications {
		switch {
		case mod.Position < 0:
			nTerm += mod.Mass
		case mod.Position >= n:
			cTerm += mod.Mass
		default:
			shifts[mod.Position] += mod.Mass
		}
	}

	prefix := make([]float64, n+1)
	prefix[0] = nTerm
	for i, aa := range residues {
		m, _ := ResidueMass(aa)
		prefix[i+1] = prefix[i] + m + shifts[i]
	}
	total := prefix[n] + cTerm

	var ions []FragmentIon
	for k := 1; k < n; k++ {
		bNeutral := prefix[k]
		yNeutral := total - prefix[n-k] + massWater
		for z := 1; z <= maxCharge; z++ {
			ions = append(ions,
				FragmentIon{Type: 'b', Position: k, Charge: z, MZ: (bNeutral + float64(z)*ProtonMass) / float64(z)},
				FragmentIon{Type: 'y', Position: k, Charge: z, MZ: (yNeutral + float64(z)*ProtonMass) / float64(z)},
			)
		}
	}
	sort.SliceStable(ions, func(i, j int) bool { return ions[i].MZ < ions[j].MZ })
	return ions
}

// Adduct describes a precursor ion form: m/z = (Multimer*M + MassShift) / |Charge|.
type Adduct struct {
	Name      string
	Multimer  int
	MassShift float64
	Charge    int
}

// MZ returns the m/z of this adduct of a neutral mass.
func (a Adduct) MZ(neutral float64) float64 {
	return (float64(a.Multimer)*neutral + a.MassShift) / math.Abs(float64(a.Charge))
}

// NeutralMass inverts MZ.
func (a Adduct) NeutralMass(mz float64) float64 {
	return (mz*math.Abs(float64(a.Charge)) - a.MassShift) / float64(a.Multimer)
}

// Polarity returns the ion mode of the adduct.
func (a Adduct) Polarity() Polarity {
	if a.Charge < 0 {
		return PolarityNegative
	}
	return PolarityPositive
}

var knownAdducts = []Adduct{
	{Name: "[M+H]+", Multimer: 1, MassShift: ProtonMass, Charge: 1},
	{Name: "[M+NH4]+", Multimer: 1, MassShift: MassN + 4*MassH - ElectronMass, Charge: 1},
	{Name: "[M+Na]+", Multimer: 1, MassShift: MassNa - ElectronMass, Charge: 1},
	{Name: "[M+K]+", Multimer: 1, MassShift: MassK - ElectronMass, Charge: 1},
	{Name: "[M+H-H2O]+", Multimer: 1, MassShift: ProtonMass - massWater, Charge: 1},
	{Name: "[M+2H]2+", Multimer: 1, MassShift: 2 * ProtonMass, Charge: 2},
	{Name: "[2M+H]+", Multimer: 2, MassShift: ProtonMass, Charge: 1},
	{Name: "[M-H]-", Multimer: 1, MassShift: -ProtonMass, Charge: -1},
	{Name: "[M+Cl]-", Multimer: 1, MassShift: MassCl + ElectronMass, Charge: -1},
	{Name: "[M+FA-H]-", Multimer: 1, MassShift: MassC + 2*MassO + 2*MassH - ProtonMass, Charge: -1},
	{Name: "[M-H2O-H]-", Multimer: 1, MassShift: -massWater - ProtonMass, Charge: -1},
	{Name: "[M-2H]2-", Multimer: 1, MassShift: -2 * ProtonMass, Charge: -2},
	{Name: "[2M-H]-", Multimer: 2, MassShift: -ProtonMass, Charge: -1},
}

// LookupAdduct returns a known adduct by name.
func LookupAdduct(name string) (Adduct, bool) {
	for _, a := range knownAdducts {
		if a.Name == name {
			return a, true
		}
	}
	return Adduct{}, false
}

// DefaultAdducts returns the known adducts of one polarity, protonated or
// deprotonated form first. PolarityUnknown yields the positive set.
func DefaultAdducts(p Polarity) []Adduct {
	if p == PolarityUnknown {
		p = PolarityPositive
	}
	var out []Adduct
	for _, a := range knownAdducts {
		if a.Polarity() == p {
			out = append(out, a)
		}
	}
	return out
}

