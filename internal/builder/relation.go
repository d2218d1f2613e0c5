package builder

// oneToOne is a bijection between keys and values. A failed Add leaves the
// relation unchanged.
type oneToOne[K, V comparable] struct {
	byKey   map[K]V
	byValue map[V]K
	order   []K
}

func newOneToOne[K, V comparable]() *oneToOne[K, V] {
	return &oneToOne[K, V]{
		byKey:   make(map[K]V),
		byValue: make(map[V]K),
	}
}

// add reports which side collided: keyTaken when k is already mapped,
// valueTaken when v is already mapped to a different key.
func (r *oneToOne[K, V]) add(k K, v V) (keyTaken, valueTaken bool) {
	if _, ok := r.byKey[k]; ok {
		return true, false
	}
	if _, ok := r.byValue[v]; ok {
		return false, true
	}
	r.byKey[k] = v
	r.byValue[v] = k
	r.order = append(r.order, k)
	return false, false
}

func (r *oneToOne[K, V]) value(k K) (V, bool) {
	v, ok := r.byKey[k]
	return v, ok
}

func (r *oneToOne[K, V]) key(v V) (K, bool) {
	k, ok := r.byValue[v]
	return k, ok
}

func (r *oneToOne[K, V]) size() int { return len(r.byKey) }
