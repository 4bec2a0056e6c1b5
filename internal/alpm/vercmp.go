// Package alpm compares pacman package version strings of the form
// [epoch:]pkgver[-pkgrel], following the ordering rules of pacman's vercmp:
// versions are split into alternating numeric and alphabetic segments,
// numeric segments compare numerically and dominate alphabetic ones, and a
// higher epoch trumps everything else.
package alpm

import "strings"

// Compare returns -1, 0 or 1 depending on whether a orders before, equal
// to, or after b. It is a total order over version strings.
func Compare(a, b string) int {
	ae, av, ar := parseEVR(a)
	be, bv, br := parseEVR(b)

	if c := compareSegments(ae, be); c != 0 {
		return c
	}
	if c := compareSegments(av, bv); c != 0 {
		return c
	}
	// The release is only significant when both versions carry one.
	if ar != "" && br != "" {
		return compareSegments(ar, br)
	}
	return 0
}

// Newer reports whether the remote version strictly orders after local.
func Newer(remote, local string) bool {
	return Compare(local, remote) < 0
}

// parseEVR splits [epoch:]version[-release]. A missing epoch is 0; a
// missing release stays empty.
func parseEVR(s string) (epoch, version, release string) {
	epoch = "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		if i > 0 {
			epoch = s[:i]
		}
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		release = s[i+1:]
		s = s[:i]
	}
	return epoch, s, release
}

// compareSegments implements the segment walk shared by epoch, version and
// release comparison. Both strings are consumed in lock-step: separators
// are skipped, then the next run of digits (or letters) from each side is
// compared. Numeric runs compare numerically and always beat alphabetic
// runs; on a tie the walk continues.
func compareSegments(a, b string) int {
	if a == b {
		return 0
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		si, sj := i, j
		for i < len(a) && !isAlnum(a[i]) {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) {
			j++
		}
		if i >= len(a) || j >= len(b) {
			break
		}

		// Different amounts of separator characters order the
		// shorter separator run first.
		if i-si != j-sj {
			if i-si < j-sj {
				return -1
			}
			return 1
		}

		// The segment kind is chosen by the left string; a numeric
		// left segment against an alphabetic right one (or vice
		// versa) is decided immediately: numbers are newer.
		isnum := isDigit(a[i])
		var segA, segB string
		if isnum {
			segA, i = takeWhile(a, i, isDigit)
			segB, j = takeWhile(b, j, isDigit)
		} else {
			segA, i = takeWhile(a, i, isAlpha)
			segB, j = takeWhile(b, j, isAlpha)
		}

		if segB == "" {
			if isnum {
				return 1
			}
			return -1
		}

		if isnum {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) > len(segB) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			return c
		}
	}

	if i >= len(a) && j >= len(b) {
		return 0
	}

	// A remaining alphabetic suffix never beats an empty string: "1.0" is
	// newer than "1.0alpha", but older than "1.0.1".
	if (i >= len(a) && !isAlpha(b[j])) || (i < len(a) && isAlpha(a[i])) {
		return -1
	}
	return 1
}

func takeWhile(s string, start int, pred func(byte) bool) (string, int) {
	end := start
	for end < len(s) && pred(s[end]) {
		end++
	}
	return s[start:end], end
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
