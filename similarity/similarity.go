/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package similarity defines the shared polymorphic contract the four hash
// backends (tlsh, lzjd, mrshv2, fbhash) implement: build a digest from
// bytes, render it as a stable string, and compute an integer distance in
// [0,100] against a same-family digest.
package similarity

import (
	"errors"
	"fmt"
	"math"
)

// Mode names a similarity backend family.
type Mode string

const (
	ModeTLSH   Mode = "tlsh"
	ModeLZJD   Mode = "lzjd"
	ModeMRSHv2 Mode = "mrshv2"
	ModeFBHash Mode = "fbhash"
)

func ModeFromString(value string) (Mode, error) {
	switch Mode(value) {
	case ModeTLSH, ModeLZJD, ModeMRSHv2, ModeFBHash:
		return Mode(value), nil
	default:
		return "", fmt.Errorf("unsupported similarity mode %q", value)
	}
}

// ErrEmptyPayload is returned by every backend's Build when handed a
// zero-length payload.
var ErrEmptyPayload = errors.New("similarity: payload must not be empty")

// ErrIncompatibleVariants is returned by Distance when the two digests
// belong to different backends or incompatible parameterizations of the
// same backend (e.g. two TLSH digests built with different algorithm
// tags).
var ErrIncompatibleVariants = errors.New("similarity: incompatible digest variants")

// Digest is implemented by every backend's concrete hash type.
type Digest interface {
	// Render returns the canonical textual form used as both a map key and
	// a report field.
	Render() string
}

// LengthPenalty implements the shared length-penalty formula applied by
// every backend: up to 10 points proportional to the relative size
// difference between the two inputs.
func LengthPenalty(lenA, lenB int) int {
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	if maxLen == 0 {
		return 0
	}
	delta := lenA - lenB
	if delta < 0 {
		delta = -delta
	}
	return int(math.Round(float64(delta) / float64(maxLen) * 10))
}

// Clamp restricts v to [0,100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
