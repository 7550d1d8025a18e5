package packer

import (
	"fmt"
	"math"
)

// Summary describes a loaded model for reporting.
type Summary struct {
	Positions         []int  `json:"positions"`
	RotamersPerPos    []int  `json:"rotamers_per_position"`
	NumRotamers       int    `json:"num_rotamers"`
	NumPairs          int    `json:"num_pairs"`
	SolutionSpaceSize string `json:"solution_space_size"`

	// The one-body energy range is nil for an empty model or when the
	// bound is not finite.
	MinOneBodyEnergy *float64 `json:"min_onebody_energy"`
	MaxOneBodyEnergy *float64 `json:"max_onebody_energy"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s Summary) String() string {
	return fmt.Sprintf("positions=%d rotamers=%d pairs=%d solutions=%s",
		len(s.Positions), s.NumRotamers, s.NumPairs, s.SolutionSpaceSize)
}

// Summarize reports the shape of m.
func Summarize(m *EnergyModel) (Summary, error) {
	size, err := SolutionSpaceSize(m)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Positions:         m.Positions(),
		RotamersPerPos:    make([]int, len(m.positions)),
		NumRotamers:       m.NumRotamers(),
		NumPairs:          m.NumPairs(),
		SolutionSpaceSize: size.String(),
	}
	for i, p := range m.positions {
		s.RotamersPerPos[i] = len(m.rotIndices[p])
	}
	if len(m.rotamers) > 0 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range m.rotamers {
			lo = math.Min(lo, r.OneBodyEnergy)
			hi = math.Max(hi, r.OneBodyEnergy)
		}
		s.MinOneBodyEnergy, s.MaxOneBodyEnergy = finite(lo), finite(hi)
	}
	return s, nil
}

// Energy returns the total energy of one solution. choice maps every
// packable position to the rotamer index picked there.
//
// The total is the sum of the chosen one-body energies plus every stored
// pairwise energy whose two endpoints were both chosen. Pairs are counted
// once each, exactly as stored; (A,B) does not imply (B,A).
func (m *EnergyModel) Energy(choice map[int]int) (float64, error) {
	if len(choice) != len(m.positions) {
		for p := range choice {
			if _, ok := m.rotIndices[p]; !ok {
				return 0, &AssignmentError{SeqPos: p, Reason: "not a packable position"}
			}
		}
	}
	total := 0.0
	for _, p := range m.positions {
		ri, ok := choice[p]
		if !ok {
			return 0, &AssignmentError{SeqPos: p, Reason: "no rotamer chosen"}
		}
		r, ok := m.rotamers[RotamerKey{p, ri}]
		if !ok {
			return 0, &AssignmentError{
				SeqPos: p,
				Reason: fmt.Sprintf("rotamer %d is not declared", ri),
			}
		}
		total += r.OneBodyEnergy
	}
	for _, k := range m.pairOrder {
		if choice[k.A.SeqPos] == k.A.RotIndex && choice[k.B.SeqPos] == k.B.RotIndex {
			total += m.pairs[k]
		}
	}
	return total, nil
}
