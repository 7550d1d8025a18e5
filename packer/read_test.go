package packer

import (
	"bufio"
	"compress/gzip"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioA = "[BEGIN ONEBODY SEQPOS/ROTINDEX/ENERGY]\n" +
	"1 1 -2.5\n" +
	"1 2 -1.0\n" +
	"2 1 0.3\n" +
	"[END ONEBODY SEQPOS/ROTINDEX/ENERGY]\n" +
	"[BEGIN TWOBODY SEQPOS1/ROTINDEX1/SEQPOS2/ROTINDEX2/ENERGY]\n" +
	"1 1 2 1 -0.4\n" +
	"[END TWOBODY SEQPOS1/ROTINDEX1/SEQPOS2/ROTINDEX2/ENERGY]"

// problem assembles a two-block input from raw record lines.
func problem(onebody, twobody []string) []string {
	lines := []string{BeginMarker(OneBodyBlock)}
	lines = append(lines, onebody...)
	lines = append(lines, EndMarker(OneBodyBlock), BeginMarker(TwoBodyBlock))
	lines = append(lines, twobody...)
	return append(lines, EndMarker(TwoBodyBlock))
}

func TestLoadScenarioA(t *testing.T) {
	m, err := Load(strings.Split(scenarioA, "\n"))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, m.Positions())
	assert.Equal(t, 3, m.NumRotamers())
	assert.Equal(t, 1, m.NumPairs())

	e, err := m.OneBodyEnergy(RotamerKey{1, 2})
	require.NoError(t, err)
	assert.Equal(t, -1.0, e)

	e, err = m.PairwiseEnergy(RotamerKey{1, 1}, RotamerKey{2, 1})
	require.NoError(t, err)
	assert.Equal(t, -0.4, e)

	_, err = m.PairwiseEnergy(RotamerKey{2, 1}, RotamerKey{1, 1})
	assert.True(t, errors.Is(err, ErrPairNotFound))

	size, err := SolutionSpaceSize(m)
	require.NoError(t, err)
	assert.Equal(t, "2", size.String())
}

func TestLoadMissingOneBody(t *testing.T) {
	lines := strings.Split(scenarioA, "\n")[5:]
	_, err := Load(lines)
	var missing *MissingBlockError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, OneBodyBlock, missing.Block)
}

func TestLoadMissingTwoBody(t *testing.T) {
	lines := strings.Split(scenarioA, "\n")[:5]
	_, err := Load(lines)
	var missing *MissingBlockError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, TwoBodyBlock, missing.Block)
}

func TestLoadDuplicateRotamer(t *testing.T) {
	_, err := Load(problem([]string{"1 1 -2.5", "1 1 -3.0"}, nil))
	var dup *DuplicateRotamerError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, 1, dup.SeqPos)
	assert.Equal(t, 1, dup.RotIndex)
	assert.Equal(t, 3, dup.Line)
}

func TestLoadUnknownRotamerReference(t *testing.T) {
	tests := []struct {
		name     string
		record   string
		endpoint string
		key      RotamerKey
	}{
		{"second", "1 1 3 1 0.5", "second", RotamerKey{3, 1}},
		{"first", "3 1 1 1 0.5", "first", RotamerKey{3, 1}},
		{"index", "1 1 2 7 0.5", "second", RotamerKey{2, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := problem([]string{"1 1 -2.5", "2 1 0.3"}, []string{tt.record})
			_, err := Load(lines)
			var unknown *UnknownRotamerReferenceError
			require.True(t, errors.As(err, &unknown), "got %v", err)
			assert.Equal(t, tt.endpoint, unknown.Endpoint)
			assert.Equal(t, tt.key, RotamerKey{unknown.SeqPos, unknown.RotIndex})
			assert.Equal(t, 6, unknown.Line)
		})
	}
}

func TestLoadDuplicatePair(t *testing.T) {
	one := []string{"1 1 -2.5", "2 1 0.3"}

	_, err := Load(problem(one, []string{"1 1 2 1 -0.4", "1\t1  2 1 9"}))
	var dup *DuplicatePairwiseEnergyError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, RotamerKey{1, 1}, dup.A)
	assert.Equal(t, RotamerKey{2, 1}, dup.B)

	m, err := Load(problem(one, []string{"1 1 2 1 -0.4", "2 1 1 1 -0.6"}))
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumPairs())
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		onebody []string
		twobody []string
		line    int
		field   int
		reason  string
	}{
		{"short", []string{"1 1"}, nil, 2, -1, "expected 3 fields, got 2"},
		{"long", []string{"1 1 0 0"}, nil, 2, -1, "expected 3 fields, got 4"},
		{"blank", []string{"1 1 0", "   "}, nil, 3, -1, "expected 3 fields, got 0"},
		{"seqpos", []string{"A 1 0"}, nil, 2, 0, "not an integer"},
		{"rotindex", []string{"1 1.5 0"}, nil, 2, 1, "not an integer"},
		{"energy", []string{"1 1 x"}, nil, 2, 2, "not a number"},
		{"overflow", []string{"99999999999999999999 1 0"}, nil, 2, 0, "out of range"},
		{"nbsp", []string{"1\u00a01 -2.5"}, nil, 2, -1, "expected 3 fields, got 2"},
		{"vertical tab", []string{"1 1\v-2.5"}, nil, 2, -1, "expected 3 fields, got 2"},
		{"form feed", []string{"1 1 -2.5\f"}, nil, 2, 2, "not a number"},
		{"pair fields", []string{"1 1 0"}, []string{"1 1 1 1"}, 5, -1, "expected 5 fields, got 4"},
		{"pair rotindex2", []string{"1 1 0"}, []string{"1 1 1 b 0"}, 5, 3, "not an integer"},
		{"pair energy", []string{"1 1 0"}, []string{"1 1 1 1 --1"}, 5, 4, "not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(problem(tt.onebody, tt.twobody))
			var bad *MalformedRecordError
			require.True(t, errors.As(err, &bad), "got %v", err)
			assert.Equal(t, tt.line, bad.Line)
			assert.Equal(t, tt.field, bad.Field)
			assert.Equal(t, tt.reason, bad.Reason)
		})
	}
}

func TestLoadMalformedMessage(t *testing.T) {
	_, err := Load(problem([]string{"1 1 0", "2 x 0"}, nil))
	require.Error(t, err)
	assert.Equal(t, "line 3: field 2 (rotindex): not an integer: '2 x 0'", err.Error())
}

func TestLoadFieldSeparators(t *testing.T) {
	m, err := Load(problem([]string{"\t1   1\t-2.5  ", "  5 3 1e-3\r"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, m.Positions())
	e, err := m.OneBodyEnergy(RotamerKey{5, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.001, e)
}

// Positions and their rotamer index lists must agree with the rotamer
// table after any successful load.
func TestLoadConsistency(t *testing.T) {
	one := []string{
		"7 2 0", "3 1 0", "7 1 0", "-4 0 0", "3 9 0", "7 5 0",
	}
	m, err := Load(problem(one, []string{"7 2 3 9 1.5", "3 9 7 2 1.5"}))
	require.NoError(t, err)

	assert.Equal(t, []int{7, 3, -4}, m.Positions())

	fromTable := make(map[int][]int)
	for _, r := range m.Rotamers() {
		fromTable[r.SeqPos] = append(fromTable[r.SeqPos], r.RotIndex)
	}
	require.Len(t, fromTable, len(m.Positions()))
	for _, p := range m.Positions() {
		idx, err := m.RotamerIndices(p)
		require.NoError(t, err)
		sorted := append([]int(nil), idx...)
		sort.Ints(sorted)
		assert.Equal(t, fromTable[p], sorted, "position %d", p)
	}

	idx, err := m.RotamerIndices(7)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 5}, idx)

	for _, p := range m.Pairs() {
		_, err := m.Rotamer(p.A)
		assert.NoError(t, err)
		_, err = m.Rotamer(p.B)
		assert.NoError(t, err)
	}
}

func TestAccessorsReportMissingKeys(t *testing.T) {
	m, err := Load(strings.Split(scenarioA, "\n"))
	require.NoError(t, err)

	_, err = m.Rotamer(RotamerKey{9, 9})
	assert.True(t, errors.Is(err, ErrRotamerNotFound))
	_, err = m.OneBodyEnergy(RotamerKey{2, 2})
	assert.True(t, errors.Is(err, ErrRotamerNotFound))
	_, err = m.RotamerIndices(3)
	assert.True(t, errors.Is(err, ErrPositionNotFound))

	// Accessors hand out copies.
	ps := m.Positions()
	ps[0] = 100
	assert.Equal(t, []int{1, 2}, m.Positions())
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "packer")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	plain := filepath.Join(dir, "problem.txt")
	require.NoError(t, ioutil.WriteFile(plain, []byte(scenarioA+"\n"), 0666))

	gz := filepath.Join(dir, "problem.txt.gz")
	f, err := os.Create(gz)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(scenarioA))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	for _, fp := range []string{plain, gz} {
		m, err := LoadFile(fp)
		require.NoError(t, err, fp)
		assert.Equal(t, 3, m.NumRotamers(), fp)
		assert.Equal(t, 1, m.NumPairs(), fp)
	}

	_, err = LoadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestLoadFileWrapsLoadErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "packer")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	fp := filepath.Join(dir, "bad.txt")
	body := strings.Join(problem([]string{"1 1 0", "1 1 0"}, nil), "\n")
	require.NoError(t, ioutil.WriteFile(fp, []byte(body), 0666))

	_, err = LoadFile(fp)
	var dup *DuplicateRotamerError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.True(t, strings.HasPrefix(err.Error(), fp+": "))
}

func TestLoadFileWrapsReadErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "packer")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	fp := filepath.Join(dir, "long.txt")
	long := BeginMarker(OneBodyBlock) + "\n" + strings.Repeat("1", maxLineLength+1) + "\n"
	require.NoError(t, ioutil.WriteFile(fp, []byte(long), 0666))

	_, err = LoadFile(fp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong), "got %v", err)
	assert.True(t, strings.HasPrefix(err.Error(), fp+": "))
}
