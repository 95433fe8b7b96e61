/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

//go:build mrshv2

package mrshv2

/*
#include <stdlib.h>

extern int precursor_mrshv2_hash(const unsigned char *payload, size_t payload_len, char **out_digest);
extern int precursor_mrshv2_diff(const char *left_digest, const char *right_digest, int *out_distance);
extern void precursor_mrshv2_free(char *value);
extern const char *precursor_mrshv2_last_error(void);
*/
import "C"

import (
	"strings"
	"sync"
	"unsafe"
)

// ffiMutex serializes every call into the adapter: the C library is not
// thread-safe.
var ffiMutex sync.Mutex

func lastErrorMessage(fallback string) string {
	ptr := C.precursor_mrshv2_last_error()
	if ptr == nil {
		return fallback
	}
	msg := strings.TrimSpace(C.GoString(ptr))
	if msg == "" {
		return fallback
	}
	return msg
}

func nativeHash(payload []byte) (string, error) {
	ffiMutex.Lock()
	defer ffiMutex.Unlock()

	var outDigest *C.char
	rc := C.precursor_mrshv2_hash(
		(*C.uchar)(unsafe.Pointer(&payload[0])),
		C.size_t(len(payload)),
		&outDigest,
	)
	if rc != 0 {
		if outDigest != nil {
			C.precursor_mrshv2_free(outDigest)
		}
		return "", &AdapterError{Op: "hash", Message: lastErrorMessage("MRSHv2 adapter failed to compute hash; check linked native adapter")}
	}
	if outDigest == nil {
		return "", &AdapterError{Op: "hash", Message: "MRSHv2 adapter returned an empty digest pointer"}
	}
	digest := C.GoString(outDigest)
	C.precursor_mrshv2_free(outDigest)
	return digest, nil
}

func nativeDiff(left, right string) (int, error) {
	ffiMutex.Lock()
	defer ffiMutex.Unlock()

	leftC := C.CString(left)
	defer C.free(unsafe.Pointer(leftC))
	rightC := C.CString(right)
	defer C.free(unsafe.Pointer(rightC))

	var distance C.int
	rc := C.precursor_mrshv2_diff(leftC, rightC, &distance)
	if rc != 0 {
		return 0, &AdapterError{Op: "diff", Message: lastErrorMessage("MRSHv2 adapter failed to diff digests; check linked native adapter")}
	}
	return int(distance), nil
}
