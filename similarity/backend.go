/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package similarity

import (
	"fmt"

	"github.com/obsecurus/precursor/similarity/fbhash"
	"github.com/obsecurus/precursor/similarity/lzjd"
	"github.com/obsecurus/precursor/similarity/mrshv2"
	"github.com/obsecurus/precursor/similarity/tlsh"
)

// Hash is the closed, tagged-union dispatch point over the four concrete
// digest types. Same-variant-only distance is enforced here: Diff rejects
// any pairing that does not carry matching concrete types.
type Hash struct {
	mode  Mode
	tlsh  *tlsh.Digest
	lzjd  *lzjd.Digest
	mrsh  *mrshv2.Digest
	fb    *fbhash.Digest
}

// Build dispatches to the requested backend. tlshAlgorithm is only
// consulted when mode is ModeTLSH.
func Build(payload []byte, mode Mode, tlshAlgorithm string) (Hash, error) {
	switch mode {
	case ModeTLSH:
		d, err := tlsh.Build(payload, tlshAlgorithm)
		if err != nil {
			return Hash{}, err
		}
		return Hash{mode: mode, tlsh: d}, nil
	case ModeLZJD:
		d, err := lzjd.Build(payload)
		if err != nil {
			return Hash{}, err
		}
		return Hash{mode: mode, lzjd: d}, nil
	case ModeMRSHv2:
		d, err := mrshv2.Build(payload)
		if err != nil {
			return Hash{}, err
		}
		return Hash{mode: mode, mrsh: d}, nil
	case ModeFBHash:
		d, err := fbhash.Build(payload)
		if err != nil {
			return Hash{}, err
		}
		return Hash{mode: mode, fb: d}, nil
	default:
		return Hash{}, fmt.Errorf("unsupported similarity mode %q", mode)
	}
}

// Mode reports which backend produced this hash.
func (h Hash) Mode() Mode { return h.mode }

// Render returns the canonical textual form of whichever variant is set.
func (h Hash) Render() string {
	switch h.mode {
	case ModeTLSH:
		return h.tlsh.Render()
	case ModeLZJD:
		return h.lzjd.Render()
	case ModeMRSHv2:
		return h.mrsh.Render()
	case ModeFBHash:
		return h.fb.Render()
	default:
		return ""
	}
}

// Diff computes the normalized distance between two Hash values. Both
// must share the same mode and, for TLSH, the same algorithm tag.
func Diff(left, right Hash, includeLengthPenalty bool) (int, error) {
	if left.mode != right.mode {
		return 0, ErrIncompatibleVariants
	}
	switch left.mode {
	case ModeTLSH:
		return tlsh.Distance(left.tlsh, right.tlsh, includeLengthPenalty)
	case ModeLZJD:
		return lzjd.Distance(left.lzjd, right.lzjd, includeLengthPenalty), nil
	case ModeMRSHv2:
		return mrshv2.Distance(left.mrsh, right.mrsh, includeLengthPenalty)
	case ModeFBHash:
		return fbhash.Distance(left.fb, right.fb, includeLengthPenalty), nil
	default:
		return 0, ErrIncompatibleVariants
	}
}
