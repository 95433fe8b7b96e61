/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tlsh

// pearsonTable is a fixed permutation of 0..255 used for the rolling
// trigram bucket hash and the payload checksum. It is generated once at
// package init via a deterministic Fisher-Yates shuffle so the table is
// reproducible across builds without embedding a literal 256-byte array.
var pearsonTable [256]byte

func init() {
	for i := range pearsonTable {
		pearsonTable[i] = byte(i)
	}
	state := uint32(0x9e3779b9)
	next := func() uint32 {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		return state
	}
	for i := 255; i > 0; i-- {
		j := int(next() % uint32(i+1))
		pearsonTable[i], pearsonTable[j] = pearsonTable[j], pearsonTable[i]
	}
}

func pearsonStep(h, b byte) byte {
	return pearsonTable[h^b]
}

// trigramBucket hashes a 3-byte window, salted by an independent index, into
// a bucket in [0, bucketSize).
func trigramBucket(b0, b1, b2 byte, salt int, bucketSize int) int {
	h := pearsonStep(byte(salt), b0)
	h = pearsonStep(h, b1)
	h = pearsonStep(h, b2)
	return int(h) % bucketSize
}

// pearsonChecksum computes checksumLen independent running Pearson hashes
// over payload, each seeded with a distinct salt so the bytes are not
// simply repeated.
func pearsonChecksum(payload []byte, checksumLen int) []byte {
	out := make([]byte, checksumLen)
	for lane := 0; lane < checksumLen; lane++ {
		h := byte(lane)
		for _, b := range payload {
			h = pearsonStep(h, b)
		}
		out[lane] = h
	}
	return out
}
