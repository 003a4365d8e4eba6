package rules

// ChainLookup resolves a rule id to its superseded_by pointer, or nil when
// the rule is not superseded.
type ChainLookup func(ruleID string) (*string, error)

// maxChainDepth bounds supersession chain walks. A chain deeper than this
// is treated as cyclic rather than followed indefinitely.
const maxChainDepth = 64

// chainWouldCycle reports whether setting superseded_by = target on ruleID
// would create a cycle. The chain is walked through the lookup rather than
// live pointers, so detection works against any backing store.
func chainWouldCycle(ruleID, target string, next ChainLookup) (bool, error) {
	if ruleID == target {
		return true, nil
	}

	seen := map[string]bool{ruleID: true}
	current := target

	for range maxChainDepth {
		if seen[current] {
			return true, nil
		}
		seen[current] = true

		ptr, err := next(current)
		if err != nil {
			return false, err
		}
		if ptr == nil {
			return false, nil
		}
		current = *ptr
	}

	return true, nil
}
