package command

// FindCommandNameEnd locates, in the original (un-normalised) message, the
// byte offset at which the dispatched command name ends, so the dispatcher
// can hand the remainder to the argument parser untouched by slicing
// original directly. original includes the leading prefix rune at index 0;
// name is the already-matched, concatenated command name (e.g. "debug_p").
// The search relies on §4.F's monotonicity invariant: normalising a longer
// prefix of the original message never produces a lexicographically
// smaller string.
func FindCommandNameEnd(original string, name string) int {
	runes := []rune(original)

	lo, hi := 1, len(runes)
	for lo < hi {
		mid := (lo + hi) / 2
		if Normalize(string(runes[1:mid])) < name {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return len(string(runes[:lo]))
}
