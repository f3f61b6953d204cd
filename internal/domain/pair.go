package domain

import "regexp"

var pairRe = regexp.MustCompile(`^[A-Z]{3}-[A-Z]{3}$`)

// ValidatePair checks the "BASE-TARGET" symbol form used for exchange rates.
func ValidatePair(p string) bool {
	if !pairRe.MatchString(p) {
		return false
	}
	// Identical base/target is not a quotable pair.
	return p[:3] != p[4:]
}

// SplitPair splits "USD-JPY" into its base and target currencies.
func SplitPair(p string) (base, target string, ok bool) {
	if !pairRe.MatchString(p) {
		return "", "", false
	}
	return p[:3], p[4:], true
}
