// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package image

// Find returns the first position at or after start where pattern matches
// haystack. A zero mask byte matches any haystack byte.
func Find(haystack []byte, start int, pattern []byte, mask []byte) (int, bool) {
	return FindWithin(haystack, start, len(haystack)-start, pattern, mask)
}

// FindWithin is like Find but only considers matches lying entirely within
// window bytes from start.
func FindWithin(haystack []byte, start int, window int, pattern []byte, mask []byte) (int, bool) {
	if len(pattern) != len(mask) || len(pattern) == 0 || start < 0 || window < 0 {
		return 0, false
	}

	end := start + window

	if end > len(haystack) {
		end = len(haystack)
	}

	for p := start; p+len(pattern) <= end; p++ {
		if matchAt(haystack[p:], pattern, mask) {
			return p, true
		}
	}

	return 0, false
}

func matchAt(b []byte, pattern []byte, mask []byte) bool {
	for i := range pattern {
		if mask[i] != 0 && b[i] != pattern[i] {
			return false
		}
	}

	return true
}
