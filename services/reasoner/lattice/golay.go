// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lattice

import "sync"

// The extended binary Golay code G24 in systematic form [I12 | B].
//
// B is the standard bordered-circulant construction: row 0 is
// (0 1 1 1 1 1 1 1 1 1 1 1), rows 1..11 start with 1 followed by left
// rotations of the base vector (1 1 0 1 1 1 0 0 0 1 0).
//
// Codewords are represented as 24-bit masks, bit i = coordinate i, with
// the information bits in positions 0..11 and parity bits in 12..23.

// golayBase is the circulant base vector for B rows 1..11.
var golayBase = [11]uint32{1, 1, 0, 1, 1, 1, 0, 0, 0, 1, 0}

var (
	golayOnce  sync.Once
	golayWords []uint32
)

// golayGenerators builds the 12 generator rows of [I12 | B].
func golayGenerators() [12]uint32 {
	var rows [12]uint32

	// Row 0: identity bit 0, B row (0 1 1 ... 1).
	rows[0] = 1 << 0
	for j := 1; j < 12; j++ {
		rows[0] |= 1 << uint(12+j)
	}

	// Rows 1..11: identity bit i, B row (1 | rotate(base, i-1)).
	for i := 1; i < 12; i++ {
		row := uint32(1) << uint(i)
		row |= 1 << 12 // bordered column of ones
		for j := 0; j < 11; j++ {
			if golayBase[(j+i-1)%11] == 1 {
				row |= 1 << uint(13+j)
			}
		}
		rows[i] = row
	}
	return rows
}

// golayCodewords returns all 4096 codewords, built lazily once.
//
// Enumeration XORs generator rows per the 12 information bits, so the
// table costs 16 KiB and its construction is linear in the output.
func golayCodewords() []uint32 {
	golayOnce.Do(func() {
		rows := golayGenerators()
		golayWords = make([]uint32, 4096)
		for m := 0; m < 4096; m++ {
			var w uint32
			for i := 0; i < 12; i++ {
				if m&(1<<uint(i)) != 0 {
					w ^= rows[i]
				}
			}
			golayWords[m] = w
		}
	})
	return golayWords
}
