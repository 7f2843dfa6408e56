// Package safeconv provides checked integer conversions for values coming out of libgit2.
package safeconv

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// percentMax is the upper bound returned by Percent.
const percentMax = 100

// MustUintToInt converts uint to int, panics on overflow.
// Use only when overflow is logically impossible.
func MustUintToInt(v uint) int {
	if v > uint(MaxInt) {
		panic("safeconv: uint to int overflow")
	}

	return int(v)
}

// Percent returns part/total scaled to [0, 100]. A zero total yields 0.
func Percent(part, total uint) int {
	if total == 0 {
		return 0
	}

	if part >= total {
		return percentMax
	}

	return int(uint64(part) * percentMax / uint64(total))
}
