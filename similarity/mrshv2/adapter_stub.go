/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

//go:build !mrshv2

package mrshv2

// nativeHash and nativeDiff are stubbed out unless the module is built
// with the mrshv2 tag and a native adapter library is linked in.

func nativeHash(payload []byte) (string, error) {
	return "", &AdapterError{
		Op:      "hash",
		Message: "MRSHv2 support is disabled in this build; rebuild with -tags mrshv2 and provide a native adapter library",
	}
}

func nativeDiff(left, right string) (int, error) {
	return 0, &AdapterError{
		Op:      "diff",
		Message: "MRSHv2 support is disabled in this build; rebuild with -tags mrshv2 and provide a native adapter library",
	}
}
