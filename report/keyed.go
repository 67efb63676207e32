package report

import (
	"iter"
	"maps"
	"slices"
)

// chunkSize is the number of values stored per chunk. Replacing a value
// copies only its chunk.
const chunkSize = 64

// Keyed is an immutable insertion-ordered map. Every update returns a new
// value and leaves the receiver untouched, so a Keyed embedded in a published
// report can be shared freely between readers. The zero value is empty.
//
// Values live in fixed-size chunks addressed by insertion position. Replacing
// the value of an existing key copies one chunk and shares the key order and
// the index with the receiver; adding or removing a key rebuilds the index.
type Keyed[K comparable, V any] struct {
	keys   []K
	index  map[K]int
	chunks []*[chunkSize]V
}

func (m Keyed[K, V]) at(i int) V { return m.chunks[i/chunkSize][i%chunkSize] }

// Len returns the number of entries.
func (m Keyed[K, V]) Len() int { return len(m.keys) }

// Get returns the value stored under k.
func (m Keyed[K, V]) Get(k K) (V, bool) {
	i, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return m.at(i), true
}

// Has reports whether k is present.
func (m Keyed[K, V]) Has(k K) bool {
	_, ok := m.index[k]
	return ok
}

// Keys returns the keys in insertion order.
func (m Keyed[K, V]) Keys() []K { return slices.Clone(m.keys) }

// All iterates over the entries in insertion order.
func (m Keyed[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, k := range m.keys {
			if !yield(k, m.at(i)) {
				return
			}
		}
	}
}

// With returns a copy of m with k set to v. An existing key keeps its
// position; a new key is appended.
func (m Keyed[K, V]) With(k K, v V) Keyed[K, V] {
	if i, ok := m.index[k]; ok {
		return m.replace(i, v)
	}
	n := len(m.keys)
	out := Keyed[K, V]{
		keys:   append(slices.Clip(m.keys), k),
		index:  make(map[K]int, n+1),
		chunks: m.chunks,
	}
	maps.Copy(out.index, m.index)
	out.index[k] = n
	if n%chunkSize == 0 {
		out.chunks = append(slices.Clip(m.chunks), new([chunkSize]V))
	}
	return out.replace(n, v)
}

// replace returns a copy of m with position i set to v.
func (m Keyed[K, V]) replace(i int, v V) Keyed[K, V] {
	chunks := slices.Clone(m.chunks)
	c := *chunks[i/chunkSize]
	c[i%chunkSize] = v
	chunks[i/chunkSize] = &c
	m.chunks = chunks
	return m
}

// Without returns a copy of m with k removed.
func (m Keyed[K, V]) Without(k K) Keyed[K, V] {
	if !m.Has(k) {
		return m
	}
	var b KeyedBuilder[K, V]
	for i, key := range m.keys {
		if key != k {
			b.Add(key, m.at(i))
		}
	}
	return b.Keyed()
}

// EqualFunc reports whether both maps hold the same keys in the same order
// with values equal under eq.
func (m Keyed[K, V]) EqualFunc(o Keyed[K, V], eq func(V, V) bool) bool {
	if !slices.Equal(m.keys, o.keys) {
		return false
	}
	for i := range m.keys {
		if !eq(m.at(i), o.at(i)) {
			return false
		}
	}
	return true
}

// consistent reports whether the key order and the index agree.
func (m Keyed[K, V]) consistent() bool {
	if len(m.keys) != len(m.index) || len(m.keys) > len(m.chunks)*chunkSize {
		return false
	}
	for i, k := range m.keys {
		if j, ok := m.index[k]; !ok || j != i {
			return false
		}
	}
	return true
}

// KeyedBuilder assembles a Keyed in place, for decoders that add many
// entries at once. The zero value is ready to use.
type KeyedBuilder[K comparable, V any] struct {
	m Keyed[K, V]
}

// Add appends k with value v. It returns false and changes nothing when k
// was already added.
func (b *KeyedBuilder[K, V]) Add(k K, v V) bool {
	if _, dup := b.m.index[k]; dup {
		return false
	}
	if b.m.index == nil {
		b.m.index = make(map[K]int)
	}
	n := len(b.m.keys)
	if n%chunkSize == 0 {
		b.m.chunks = append(b.m.chunks, new([chunkSize]V))
	}
	b.m.chunks[n/chunkSize][n%chunkSize] = v
	b.m.keys = append(b.m.keys, k)
	b.m.index[k] = n
	return true
}

// Len returns the number of entries added so far.
func (b *KeyedBuilder[K, V]) Len() int { return len(b.m.keys) }

// Keyed returns the assembled map and resets the builder.
func (b *KeyedBuilder[K, V]) Keyed() Keyed[K, V] {
	m := b.m
	b.m = Keyed[K, V]{}
	return m
}
