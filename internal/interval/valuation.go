package interval

// Valuation maps variable names to the interval they are known to lie in.
// Missing entries are unknown and read as Top. A nil valuation is
// unreachable.
type Valuation map[string]Interval

// Get returns the stored interval and whether the name is bound.
func (v Valuation) Get(name string) (Interval, bool) {
	i, ok := v[name]
	return i, ok
}

// Set binds name to i. Binding Top is kept: it masks the name so the
// interpreter stops resolving it through its definitions.
func (v Valuation) Set(name string, i Interval) {
	if v == nil {
		return
	}
	v[name] = i
}

// Clone returns a shallow copy.
func (v Valuation) Clone() Valuation {
	if v == nil {
		return nil
	}
	out := make(Valuation, len(v))
	for k, i := range v {
		out[k] = i
	}
	return out
}

// Join merges two valuations. Names bound in both are unioned; a name
// bound in only one side is unknown in the other and is dropped.
func Join(a, b Valuation) Valuation {
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}
	out := make(Valuation)
	for name, x := range a {
		if y, ok := b[name]; ok {
			out[name] = Union(x, y)
		}
	}
	return out
}

// Equal reports whether two valuations bind the same names to the same
// intervals.
func (v Valuation) Equal(o Valuation) bool {
	if v == nil || o == nil {
		return v == nil && o == nil
	}
	if len(v) != len(o) {
		return false
	}
	for k, i := range v {
		if j, ok := o[k]; !ok || i != j {
			return false
		}
	}
	return true
}
