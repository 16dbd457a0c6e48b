// Package aggregate folds flat, parent-contiguous join rows into nested listings.
package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ordered is a map that remembers insertion order.
type Ordered[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

func NewOrdered[K comparable, V any]() *Ordered[K, V] {
	return &Ordered[K, V]{vals: make(map[K]V)}
}

func (o *Ordered[K, V]) Get(k K) (V, bool) {
	v, ok := o.vals[k]
	return v, ok
}

// PutIfAbsent stores v under k unless k is already present. It reports whether v was stored.
func (o *Ordered[K, V]) PutIfAbsent(k K, v V) bool {
	if _, ok := o.vals[k]; ok {
		return false
	}
	o.keys = append(o.keys, k)
	o.vals[k] = v
	return true
}

func (o *Ordered[K, V]) Len() int { return len(o.keys) }

// Keys returns the keys in insertion order.
func (o *Ordered[K, V]) Keys() []K {
	out := make([]K, len(o.keys))
	copy(out, o.keys)
	return out
}

// Values returns the values in insertion order.
func (o *Ordered[K, V]) Values() []V {
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.vals[k])
	}
	return out
}

// MarshalJSON writes an object whose members follow insertion order.
func (o *Ordered[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(fmt.Sprint(k))
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %v: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Group is one parent payload with its children in arrival order.
type Group[P, C any] struct {
	Container P   `json:"container"`
	Children  []C `json:"children"`
}

// Fold groups rows by key in a single pass. The first row seen for a key supplies the parent
// payload; parent is never called again for that key. child may report false when a row
// carries no child, as a LEFT JOIN does for a childless parent.
func Fold[R any, K comparable, P, C any](
	rows []R,
	key func(R) K,
	parent func(R) P,
	child func(R) (C, bool),
) *Ordered[K, *Group[P, C]] {
	groups, _ := FoldWithParticipants[R, K, P, C, struct{}, struct{}](rows, key, parent, child, nil)
	return groups
}

// FoldWithParticipants is Fold plus a whole-result participant map, deduplicated on first
// occurrence no matter which parent the row belongs to. A nil participant skips the map.
func FoldWithParticipants[R any, K comparable, P, C any, UK comparable, U any](
	rows []R,
	key func(R) K,
	parent func(R) P,
	child func(R) (C, bool),
	participant func(R) (UK, U, bool),
) (*Ordered[K, *Group[P, C]], *Ordered[UK, U]) {
	groups := NewOrdered[K, *Group[P, C]]()
	people := NewOrdered[UK, U]()

	var (
		current    *Group[P, C]
		currentKey K
		started    bool
	)
	for _, row := range rows {
		k := key(row)
		if !started || k != currentKey {
			g, ok := groups.Get(k)
			if !ok {
				g = &Group[P, C]{Container: parent(row), Children: []C{}}
				groups.PutIfAbsent(k, g)
			}
			current, currentKey, started = g, k, true
		}
		if c, ok := child(row); ok {
			current.Children = append(current.Children, c)
		}
		if participant != nil {
			if uk, u, ok := participant(row); ok {
				people.PutIfAbsent(uk, u)
			}
		}
	}
	return groups, people
}

// Participants builds only the deduplicated participant map.
func Participants[R any, UK comparable, U any](rows []R, participant func(R) (UK, U, bool)) *Ordered[UK, U] {
	people := NewOrdered[UK, U]()
	for _, row := range rows {
		if uk, u, ok := participant(row); ok {
			people.PutIfAbsent(uk, u)
		}
	}
	return people
}
