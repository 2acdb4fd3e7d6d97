package algo

import "github.com/gohistogram/sketch/sketcherr"

// FindFirst returns the smallest x in [min, max] for which predicate(x) is
// true, assuming predicate is monotone non-decreasing over the range (once
// true, always true for larger x). It fails if predicate is false at max,
// since then no such x exists in range.
//
// Over the full int64 domain this takes at most 65 predicate evaluations:
// one to check predicate(max), then at most 64 bisection steps.
func FindFirst(min, max int64, predicate func(int64) bool) (int64, error) {
	if !predicate(max) {
		return 0, sketcherr.InvalidArgument("predicate is false at upper bound %d", max)
	}
	lo, hi := min, max
	for lo < hi {
		mid := Midpoint(lo, hi)
		if predicate(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// FindFirstWithGuess behaves like FindFirst, but first gallops outward
// from initialGuess in exponentially growing strides to bracket the
// answer before handing the bracket to FindFirst for bisection. This is
// much faster than a plain FindFirst when the answer is expected to lie
// near the guess, which is the common case when re-querying a layout for
// a value close to the previous one (as AddAscendingSequence does).
//
// The gallop phase takes at most ~63 evaluations to bracket the full
// int64 domain and the bisection phase at most 65 more, bounding the
// total at ~128.
func FindFirstWithGuess(min, max, initialGuess int64, predicate func(int64) bool) (int64, error) {
	if !predicate(max) {
		return 0, sketcherr.InvalidArgument("predicate is false at upper bound %d", max)
	}
	guess := ClipInt64(initialGuess, min, max)

	if predicate(guess) {
		// The answer is <= guess: gallop left until the predicate turns
		// false or we hit min, tracking the last point known true.
		hi := guess
		cur := guess
		step := int64(1)
		for cur > min {
			next := stepBack(cur, step, min)
			if predicate(next) {
				hi = next
				cur = next
				step = growStep(step, cur-min)
				continue
			}
			return FindFirst(next, hi, predicate)
		}
		return hi, nil
	}

	// The answer is > guess: gallop right until the predicate turns true.
	lo := guess
	cur := guess
	step := int64(1)
	for cur < max {
		next := stepForward(cur, step, max)
		if !predicate(next) {
			lo = next
			cur = next
			step = growStep(step, max-cur)
			continue
		}
		return FindFirst(lo, next, predicate)
	}
	return max, nil
}

// stepBack returns cur-step clamped to floor, without underflowing.
func stepBack(cur, step, floor int64) int64 {
	if step > cur-floor {
		return floor
	}
	return cur - step
}

// stepForward returns cur+step clamped to ceil, without overflowing.
func stepForward(cur, step, ceil int64) int64 {
	if step > ceil-cur {
		return ceil
	}
	return cur + step
}

// growStep doubles step, but never past the remaining room (which also
// keeps the doubling itself from overflowing).
func growStep(step, room int64) int64 {
	if room/2 < step {
		return room
	}
	return step * 2
}
