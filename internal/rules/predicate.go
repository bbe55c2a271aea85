package rules

import "github.com/draftline/draftline/internal/catalog"

// evalPredicate evaluates a declared predicate against a value that may
// be absent. A nil predicate degenerates to a presence check.
//
// Missing values fail every operator except nothing: requires_answer
// and scoped_to both treat absence as a violation, so there is no
// "absent passes" case here.
func evalPredicate(p *catalog.Predicate, v catalog.Value, present bool) bool {
	if p == nil {
		return present
	}
	if p.Op == catalog.OpExists {
		return present
	}
	if !present {
		return false
	}

	switch p.Op {
	case catalog.OpEquals:
		return catalog.Equal(v, p.Value)
	case catalog.OpNotEquals:
		return !catalog.Equal(v, p.Value)
	case catalog.OpIn:
		for _, candidate := range p.Values {
			if catalog.Equal(v, candidate) {
				return true
			}
		}
		return false
	case catalog.OpAtLeast:
		a, b, ok := intPair(v, p.Value)
		return ok && a >= b
	case catalog.OpAtMost:
		a, b, ok := intPair(v, p.Value)
		return ok && a <= b
	default:
		// Unknown operator never passes; the compiler rejects these
		// before they reach the catalog.
		return false
	}
}

// intPair extracts two int values, failing on type mismatch.
func intPair(a, b catalog.Value) (int64, int64, bool) {
	ai, aok := a.(catalog.IntValue)
	bi, bok := b.(catalog.IntValue)
	if !aok || !bok {
		return 0, 0, false
	}
	return int64(ai), int64(bi), true
}
