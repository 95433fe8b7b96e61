/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package mrshv2 exposes the context-triggered piecewise hash backend
// through a native C adapter, the sole cross-language boundary in
// Precursor. Build with the "mrshv2" tag and a linked adapter library to
// enable it; without the tag, every call returns AdapterError.
package mrshv2

import (
	"fmt"

	"github.com/obsecurus/precursor/similarity"
)

// Digest is an opaque adapter-produced string digest.
type Digest struct {
	value      string
	payloadLen int
}

// Render returns the adapter's digest string, prefixed mrshv2: by the
// adapter itself.
func (d *Digest) Render() string { return d.value }

// AdapterError wraps an MRSHv2 native-adapter failure, preserving the
// adapter's last-error text when available.
type AdapterError struct {
	Op      string
	Message string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("mrshv2 adapter: %s: %s", e.Op, e.Message)
}

// Build computes an MRSHv2 digest for payload via the native adapter.
func Build(payload []byte) (*Digest, error) {
	if len(payload) == 0 {
		return nil, similarity.ErrEmptyPayload
	}
	value, err := nativeHash(payload)
	if err != nil {
		return nil, err
	}
	return &Digest{value: value, payloadLen: len(payload)}, nil
}

// Distance computes the normalized [0,100] distance between two MRSHv2
// digests via the native adapter.
func Distance(a, b *Digest, includeLengthPenalty bool) (int, error) {
	raw, err := nativeDiff(a.value, b.value)
	if err != nil {
		return 0, err
	}
	distance := similarity.Clamp(raw)
	if includeLengthPenalty {
		distance = similarity.Clamp(distance + similarity.LengthPenalty(a.payloadLen, b.payloadLen))
	}
	return distance, nil
}
