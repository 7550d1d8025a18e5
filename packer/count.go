package packer

import (
	"math/big"
)

// SolutionSpaceSize returns the number of ways to pick exactly one rotamer
// at every packable position. The count is exact; the error is reserved for
// models that violate their own invariants.
//
// A model with no positions has exactly one (empty) solution. Callers
// should treat that as a suspicious input rather than a real problem.
func SolutionSpaceSize(m *EnergyModel) (*big.Int, error) {
	total := big.NewInt(1)
	n := new(big.Int)
	for _, p := range m.positions {
		idx, ok := m.rotIndices[p]
		if !ok || len(idx) == 0 {
			return nil, &AssignmentError{SeqPos: p, Reason: "no rotamers"}
		}
		total.Mul(total, n.SetInt64(int64(len(idx))))
	}
	return total, nil
}

// SolutionSpaceSizeUint64 is SolutionSpaceSize for callers that need a
// machine integer. Sizes beyond the range of uint64 are reported as a
// *SolutionSpaceOverflowError.
func SolutionSpaceSizeUint64(m *EnergyModel) (uint64, error) {
	size, err := SolutionSpaceSize(m)
	if err != nil {
		return 0, err
	}
	if !size.IsUint64() {
		return 0, &SolutionSpaceOverflowError{Size: size}
	}
	return size.Uint64(), nil
}
