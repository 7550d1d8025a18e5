package packer

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

const maxLineLength = 1024 * 1024

// Load builds an EnergyModel from the lines of a packer problem. The
// one-body block is read in full before the two-body block, since every
// pairwise energy must name rotamers that already exist.
//
// The first problem found aborts the load; no partial model is returned.
func Load(lines []string) (*EnergyModel, error) {
	m := newEnergyModel()
	one, err := ScanBlock(lines, OneBodyBlock)
	if err != nil {
		return nil, err
	}
	if err := readOneBody(m, one); err != nil {
		return nil, err
	}
	two, err := ScanBlock(lines, TwoBodyBlock)
	if err != nil {
		return nil, err
	}
	if err := readTwoBody(m, two); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile reads and loads the packer problem at fileName. Files ending in
// ".gz" are decompressed.
func LoadFile(fileName string) (*EnergyModel, error) {
	r, err := Open(fileName)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	lines, err := ReadLines(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	m, err := Load(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return m, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

// Open opens a packer problem file, wrapping it in a gzip reader when the
// name ends in ".gz".
func Open(fileName string) (io.ReadCloser, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	if path.Ext(fileName) != ".gz" {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip: %v", err)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

// ReadLines slurps every line of r. Line terminators are stripped.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func readOneBody(m *EnergyModel, b Block) error {
	for i, text := range b.Lines {
		line := b.LineNumber(i)
		fields := splitFields(text)
		if len(fields) != 3 {
			return malformed(b, i, -1,
				fmt.Sprintf("expected 3 fields, got %d", len(fields)))
		}
		var r Rotamer
		var err error
		if r.SeqPos, err = parseInt(b, i, fields, 0); err != nil {
			return err
		}
		if r.RotIndex, err = parseInt(b, i, fields, 1); err != nil {
			return err
		}
		if r.OneBodyEnergy, err = parseFloat(b, i, fields, 2); err != nil {
			return err
		}
		if err := m.addRotamer(r); err != nil {
			err.(*DuplicateRotamerError).Line = line
			return err
		}
	}
	return nil
}

func readTwoBody(m *EnergyModel, b Block) error {
	for i, text := range b.Lines {
		fields := splitFields(text)
		if len(fields) != 5 {
			return malformed(b, i, -1,
				fmt.Sprintf("expected 5 fields, got %d", len(fields)))
		}
		var ints [4]int
		for j := range ints {
			v, err := parseInt(b, i, fields, j)
			if err != nil {
				return err
			}
			ints[j] = v
		}
		energy, err := parseFloat(b, i, fields, 4)
		if err != nil {
			return err
		}
		p := PairwiseEnergy{
			A:      RotamerKey{ints[0], ints[1]},
			B:      RotamerKey{ints[2], ints[3]},
			Energy: energy,
		}
		if err := m.addPair(p); err != nil {
			switch e := err.(type) {
			case *UnknownRotamerReferenceError:
				e.Line = b.LineNumber(i)
			case *DuplicatePairwiseEnergyError:
				e.Line = b.LineNumber(i)
			}
			return err
		}
	}
	return nil
}

// splitFields splits a record on runs of spaces and tabs. Other whitespace
// is part of a field, except for a trailing carriage return.
func splitFields(text string) []string {
	return strings.FieldsFunc(strings.TrimRight(text, "\r"), func(c rune) bool {
		return c == ' ' || c == '\t'
	})
}

func parseInt(b Block, i int, fields []string, field int) (int, error) {
	v, err := strconv.Atoi(fields[field])
	if err != nil {
		return 0, malformed(b, i, field, parseReason(err, "not an integer"))
	}
	return v, nil
}

func parseFloat(b Block, i int, fields []string, field int) (float64, error) {
	v, err := strconv.ParseFloat(fields[field], 64)
	if err != nil {
		return 0, malformed(b, i, field, parseReason(err, "not a number"))
	}
	return v, nil
}

func parseReason(err error, reason string) string {
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return "out of range"
	}
	return reason
}

func malformed(b Block, i, field int, reason string) error {
	return &MalformedRecordError{
		Block:  b.Name,
		Line:   b.LineNumber(i),
		Text:   b.Lines[i],
		Field:  field,
		Reason: reason,
	}
}
