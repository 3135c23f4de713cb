package vector

// Predicate is evaluated by the root on the fully merged State of a round.
// Holds reports whether the global state satisfies the termination
// condition.
type Predicate interface {
	Holds(s State) bool
}

// PredicateFunc adapts an ordinary function to the Predicate interface.
type PredicateFunc func(s State) bool

// Holds implements Predicate.
func (f PredicateFunc) Holds(s State) bool {
	return f(s)
}

// AllQuiescent returns a Predicate that holds when every entry, except the
// ones at the skip indexes, is Passive. Unknown entries mean a process did not
// report and are treated as not quiescent. Negative skip indexes are ignored.
func AllQuiescent(skip ...int) Predicate {
	skipped := make(map[int]bool, len(skip))
	for _, i := range skip {
		if i >= 0 {
			skipped[i] = true
		}
	}

	return PredicateFunc(func(s State) bool {
		for i, v := range s {
			if skipped[i] {
				continue
			}
			if v != Passive {
				return false
			}
		}
		return true
	})
}

// AllAtLeast returns a Predicate that holds when every entry is greater than
// or equal to min. It suits vectors of counters.
func AllAtLeast(min uint32) Predicate {
	return PredicateFunc(func(s State) bool {
		for _, v := range s {
			if v < min {
				return false
			}
		}
		return true
	})
}
