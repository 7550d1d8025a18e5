package packer

import (
	"strings"
)

// Block names as they appear between "[BEGIN " / "[END " and "]".
const (
	OneBodyBlock = "ONEBODY SEQPOS/ROTINDEX/ENERGY"
	TwoBodyBlock = "TWOBODY SEQPOS1/ROTINDEX1/SEQPOS2/ROTINDEX2/ENERGY"
)

var fieldNames = map[string][]string{
	OneBodyBlock: {"seqpos", "rotindex", "energy"},
	TwoBodyBlock: {"seqpos1", "rotindex1", "seqpos2", "rotindex2", "energy"},
}

func fieldName(block string, i int) string {
	names := fieldNames[block]
	if i < 0 || i >= len(names) {
		return "?"
	}
	return names[i]
}

// BeginMarker returns the line that opens the named block.
func BeginMarker(name string) string {
	return "[BEGIN " + name + "]"
}

// EndMarker returns the line that closes the named block.
func EndMarker(name string) string {
	return "[END " + name + "]"
}

// Block is the run of lines strictly between a block's markers.
// First is the 1-based input line number of Lines[0].
type Block struct {
	Name  string
	Lines []string
	First int
}

// LineNumber returns the input line number of Lines[i].
func (b Block) LineNumber(i int) int {
	return b.First + i
}

// ScanBlock finds the first line equal to the begin marker of the named
// block and returns every line up to (not including) the first end marker
// after it. Only trailing whitespace is ignored when matching markers.
func ScanBlock(lines []string, name string) (Block, error) {
	begin, end := BeginMarker(name), EndMarker(name)
	start := -1
	for i, line := range lines {
		if trimRight(line) == begin {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return Block{}, &MissingBlockError{Block: name}
	}
	for i := start; i < len(lines); i++ {
		if trimRight(lines[i]) == end {
			return Block{Name: name, Lines: lines[start:i], First: start + 1}, nil
		}
	}
	return Block{}, &UnterminatedBlockError{Block: name, Line: start}
}

func trimRight(line string) string {
	return strings.TrimRight(line, " \t\r\n")
}
