/*
Package packer reads packer problems: a set of sequence positions, the
candidate rotamers at each position with their one-body energies, and the
pairwise energies between rotamers at different positions.

The text format has two blocks, each delimited by marker lines:

	[BEGIN ONEBODY SEQPOS/ROTINDEX/ENERGY]
	<seqpos> <rotindex> <energy>
	...
	[END ONEBODY SEQPOS/ROTINDEX/ENERGY]
	[BEGIN TWOBODY SEQPOS1/ROTINDEX1/SEQPOS2/ROTINDEX2/ENERGY]
	<seqpos1> <rotindex1> <seqpos2> <rotindex2> <energy>
	...
	[END TWOBODY SEQPOS1/ROTINDEX1/SEQPOS2/ROTINDEX2/ENERGY]

Fields are separated by any run of spaces or tabs. Every record is checked:
a rotamer may be declared only once, a pairwise energy may only reference
declared rotamers, and the same ordered pair may appear only once. Pairwise
energies are not symmetrized.

Load returns an EnergyModel, which is read-only once built. The size of the
search space over it is given by SolutionSpaceSize.
*/
package packer
