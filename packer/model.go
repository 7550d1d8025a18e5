package packer

import (
	"fmt"
	"sort"
)

// RotamerKey identifies a rotamer by its sequence position and its index
// at that position.
type RotamerKey struct {
	SeqPos   int
	RotIndex int
}

func (k RotamerKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.SeqPos, k.RotIndex)
}

// Less orders keys by sequence position, then rotamer index.
func (k RotamerKey) Less(o RotamerKey) bool {
	if k.SeqPos != o.SeqPos {
		return k.SeqPos < o.SeqPos
	}
	return k.RotIndex < o.RotIndex
}

// Rotamer is one candidate side-chain conformation at a sequence position.
// OneBodyEnergy includes interactions with the fixed background.
type Rotamer struct {
	SeqPos        int
	RotIndex      int
	OneBodyEnergy float64
}

// Key returns the rotamer's identity.
func (r Rotamer) Key() RotamerKey {
	return RotamerKey{r.SeqPos, r.RotIndex}
}

// PairKey is an ordered pair of rotamers. (A,B) and (B,A) are distinct.
type PairKey struct {
	A, B RotamerKey
}

// PairwiseEnergy is the interaction energy between two rotamer choices.
type PairwiseEnergy struct {
	A, B   RotamerKey
	Energy float64
}

// Key returns the ordered pair this energy is stored under.
func (p PairwiseEnergy) Key() PairKey {
	return PairKey{p.A, p.B}
}

// EnergyModel holds every rotamer and pairwise energy of a packer problem.
//
// A model is only ever built by Load (or LoadFile), which adds all one-body
// records before any two-body record. Once returned it is never modified,
// so it may be shared freely between goroutines.
type EnergyModel struct {
	rotamers   map[RotamerKey]Rotamer
	positions  []int
	rotIndices map[int][]int
	pairs      map[PairKey]float64
	pairOrder  []PairKey
}

func newEnergyModel() *EnergyModel {
	return &EnergyModel{
		rotamers:   make(map[RotamerKey]Rotamer),
		positions:  make([]int, 0, 16),
		rotIndices: make(map[int][]int),
		pairs:      make(map[PairKey]float64),
		pairOrder:  make([]PairKey, 0, 64),
	}
}

// addRotamer keeps rotamers, positions and rotIndices in lock step.
// The caller fills in the line number of a returned duplicate error.
func (m *EnergyModel) addRotamer(r Rotamer) error {
	k := r.Key()
	if _, ok := m.rotamers[k]; ok {
		return &DuplicateRotamerError{SeqPos: k.SeqPos, RotIndex: k.RotIndex}
	}
	m.rotamers[k] = r
	if _, ok := m.rotIndices[k.SeqPos]; !ok {
		m.positions = append(m.positions, k.SeqPos)
	}
	m.rotIndices[k.SeqPos] = append(m.rotIndices[k.SeqPos], k.RotIndex)
	return nil
}

func (m *EnergyModel) addPair(p PairwiseEnergy) error {
	if _, ok := m.rotamers[p.A]; !ok {
		return &UnknownRotamerReferenceError{
			Endpoint: "first", SeqPos: p.A.SeqPos, RotIndex: p.A.RotIndex,
		}
	}
	if _, ok := m.rotamers[p.B]; !ok {
		return &UnknownRotamerReferenceError{
			Endpoint: "second", SeqPos: p.B.SeqPos, RotIndex: p.B.RotIndex,
		}
	}
	k := p.Key()
	if _, ok := m.pairs[k]; ok {
		return &DuplicatePairwiseEnergyError{A: p.A, B: p.B}
	}
	m.pairs[k] = p.Energy
	m.pairOrder = append(m.pairOrder, k)
	return nil
}

// Rotamers returns every rotamer sorted by key.
func (m *EnergyModel) Rotamers() []Rotamer {
	rs := make([]Rotamer, 0, len(m.rotamers))
	for _, r := range m.rotamers {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Key().Less(rs[j].Key()) })
	return rs
}

// Rotamer looks up a single rotamer.
func (m *EnergyModel) Rotamer(k RotamerKey) (Rotamer, error) {
	r, ok := m.rotamers[k]
	if !ok {
		return Rotamer{}, fmt.Errorf("%s: %w", k, ErrRotamerNotFound)
	}
	return r, nil
}

// Positions returns the packable sequence positions in the order their
// first rotamer was read.
func (m *EnergyModel) Positions() []int {
	return append([]int(nil), m.positions...)
}

// RotamerIndices returns the rotamer indices declared at seqPos, in the
// order they were read.
func (m *EnergyModel) RotamerIndices(seqPos int) ([]int, error) {
	idx, ok := m.rotIndices[seqPos]
	if !ok {
		return nil, fmt.Errorf("%d: %w", seqPos, ErrPositionNotFound)
	}
	return append([]int(nil), idx...), nil
}

// OneBodyEnergy returns the one-body energy of a rotamer.
func (m *EnergyModel) OneBodyEnergy(k RotamerKey) (float64, error) {
	r, err := m.Rotamer(k)
	if err != nil {
		return 0, err
	}
	return r.OneBodyEnergy, nil
}

// PairwiseEnergy returns the energy stored for exactly the ordered pair
// (a, b). The reverse pair is not consulted.
func (m *EnergyModel) PairwiseEnergy(a, b RotamerKey) (float64, error) {
	e, ok := m.pairs[PairKey{a, b}]
	if !ok {
		return 0, fmt.Errorf("%s-%s: %w", a, b, ErrPairNotFound)
	}
	return e, nil
}

// Pairs returns every pairwise energy in the order it was read.
func (m *EnergyModel) Pairs() []PairwiseEnergy {
	ps := make([]PairwiseEnergy, len(m.pairOrder))
	for i, k := range m.pairOrder {
		ps[i] = PairwiseEnergy{A: k.A, B: k.B, Energy: m.pairs[k]}
	}
	return ps
}

// NumRotamers returns the total number of rotamers over all positions.
func (m *EnergyModel) NumRotamers() int {
	return len(m.rotamers)
}

// NumPairs returns the number of stored pairwise energies.
func (m *EnergyModel) NumPairs() int {
	return len(m.pairs)
}
