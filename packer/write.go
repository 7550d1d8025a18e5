package packer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Write serializes m in the packer problem text format. Rotamers are
// grouped by position in first-seen order and pairs keep their input order,
// so loading the output reproduces m exactly.
func Write(w io.Writer, m *EnergyModel) error {
	buf := bufio.NewWriter(w)
	fmt.Fprintln(buf, BeginMarker(OneBodyBlock))
	for _, p := range m.positions {
		for _, ri := range m.rotIndices[p] {
			r := m.rotamers[RotamerKey{p, ri}]
			fmt.Fprintf(buf, "%d %d %s\n", r.SeqPos, r.RotIndex,
				formatEnergy(r.OneBodyEnergy))
		}
	}
	fmt.Fprintln(buf, EndMarker(OneBodyBlock))
	fmt.Fprintln(buf, BeginMarker(TwoBodyBlock))
	for _, k := range m.pairOrder {
		fmt.Fprintf(buf, "%d %d %d %d %s\n",
			k.A.SeqPos, k.A.RotIndex, k.B.SeqPos, k.B.RotIndex,
			formatEnergy(m.pairs[k]))
	}
	fmt.Fprintln(buf, EndMarker(TwoBodyBlock))
	return buf.Flush()
}

func formatEnergy(e float64) string {
	return strconv.FormatFloat(e, 'g', -1, 64)
}
