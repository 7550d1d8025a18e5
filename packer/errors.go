package packer

import (
	"errors"
	"fmt"
	"math/big"
)

// Lookup failures returned by the EnergyModel accessors.
var (
	ErrRotamerNotFound  = errors.New("rotamer not found")
	ErrPositionNotFound = errors.New("sequence position not found")
	ErrPairNotFound     = errors.New("pairwise energy not found")
)

// MissingBlockError is returned when a block's begin marker never appears.
type MissingBlockError struct {
	Block string
}

func (e *MissingBlockError) Error() string {
	return fmt.Sprintf("missing block %q", BeginMarker(e.Block))
}

// UnterminatedBlockError is returned when a block is opened but its end
// marker never follows. Line is the line number of the begin marker.
type UnterminatedBlockError struct {
	Block string
	Line  int
}

func (e *UnterminatedBlockError) Error() string {
	return fmt.Sprintf("line %d: block %q is never closed by %q",
		e.Line, BeginMarker(e.Block), EndMarker(e.Block))
}

// MalformedRecordError reports a line inside a block that could not be
// turned into a record. Field is -1 when the field count was wrong.
type MalformedRecordError struct {
	Block  string
	Line   int
	Text   string
	Field  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("line %d: %s: '%s'", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("line %d: field %d (%s): %s: '%s'",
		e.Line, e.Field+1, fieldName(e.Block, e.Field), e.Reason, e.Text)
}

// DuplicateRotamerError is returned when a (seqpos, rotindex) key is
// declared twice in the one-body block.
type DuplicateRotamerError struct {
	SeqPos   int
	RotIndex int
	Line     int
}

func (e *DuplicateRotamerError) Error() string {
	return fmt.Sprintf("line %d: duplicate rotamer %d at sequence position %d",
		e.Line, e.RotIndex, e.SeqPos)
}

// DuplicatePairwiseEnergyError is returned when the same ordered pair of
// rotamers appears twice in the two-body block.
type DuplicatePairwiseEnergyError struct {
	A, B RotamerKey
	Line int
}

func (e *DuplicatePairwiseEnergyError) Error() string {
	return fmt.Sprintf("line %d: duplicate pairwise energy between %s and %s",
		e.Line, e.A, e.B)
}

// UnknownRotamerReferenceError is returned when a two-body record names a
// rotamer the one-body block never declared. Endpoint is "first" or
// "second".
type UnknownRotamerReferenceError struct {
	Endpoint string
	SeqPos   int
	RotIndex int
	Line     int
}

func (e *UnknownRotamerReferenceError) Error() string {
	return fmt.Sprintf("line %d: %s endpoint references undeclared rotamer %s",
		e.Line, e.Endpoint, RotamerKey{e.SeqPos, e.RotIndex})
}

// SolutionSpaceOverflowError is returned when the solution space does not
// fit in a fixed-width counter.
type SolutionSpaceOverflowError struct {
	Size *big.Int
}

func (e *SolutionSpaceOverflowError) Error() string {
	return fmt.Sprintf("solution space size %s overflows uint64", e.Size)
}

// AssignmentError is returned by Energy when a choice of rotamers is not a
// complete solution.
type AssignmentError struct {
	SeqPos int
	Reason string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("sequence position %d: %s", e.SeqPos, e.Reason)
}
