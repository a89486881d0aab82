// Package hash implements the id-keyed entity collections owned by the world.
package hash

import (
	"container/list"

	"arena-server/internal/ident"
	"arena-server/internal/signal"
)

// Entity is anything a Hash can hold: it has a stable id and a serializable
// projection S.
type Entity[S any] interface {
	ID() ident.ID
	State() S
}

// Hash keeps entities in insertion order with O(1) lookup and removal by id.
// Adds and deletes are reconciled against the current contents and reported
// as one batch per call.
type Hash[S any, E Entity[S]] struct {
	order *list.List
	index map[ident.ID]*list.Element

	OnAdd    signal.Signal[[]E]
	OnDelete signal.Signal[[]E]
}

// New creates an empty Hash.
func New[S any, E Entity[S]]() *Hash[S, E] {
	return &Hash[S, E]{
		order: list.New(),
		index: make(map[ident.ID]*list.Element),
	}
}

// Add inserts the entities whose ids are not present yet. Known ids are
// ignored. Emits OnAdd once with the inserted entities, if any.
func (h *Hash[S, E]) Add(entities ...E) {
	var added []E
	for _, e := range entities {
		id := e.ID()
		if _, ok := h.index[id]; ok {
			continue
		}
		h.index[id] = h.order.PushBack(e)
		added = append(added, e)
	}
	if len(added) > 0 {
		h.OnAdd.Emit(added)
	}
}

// Delete removes the entities that are present. Absent ids are ignored.
// Emits OnDelete once with the removed entities, if any.
func (h *Hash[S, E]) Delete(entities ...E) {
	ids := make([]ident.ID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID()
	}
	h.DeleteID(ids...)
}

// DeleteID is Delete by id.
func (h *Hash[S, E]) DeleteID(ids ...ident.ID) {
	var removed []E
	for _, id := range ids {
		el, ok := h.index[id]
		if !ok {
			continue
		}
		delete(h.index, id)
		h.order.Remove(el)
		removed = append(removed, el.Value.(E))
	}
	if len(removed) > 0 {
		h.OnDelete.Emit(removed)
	}
}

// Get returns the entity with the given id.
func (h *Hash[S, E]) Get(id ident.ID) (E, bool) {
	el, ok := h.index[id]
	if !ok {
		var zero E
		return zero, false
	}
	return el.Value.(E), true
}

// Has reports whether id is present.
func (h *Hash[S, E]) Has(id ident.ID) bool {
	_, ok := h.index[id]
	return ok
}

// Len returns the number of entities.
func (h *Hash[S, E]) Len() int {
	return len(h.index)
}

// Each calls fn in insertion order. fn may delete the entity it is given.
func (h *Hash[S, E]) Each(fn func(E)) {
	for el := h.order.Front(); el != nil; {
		next := el.Next()
		fn(el.Value.(E))
		el = next
	}
}

// Values returns the entities in insertion order.
func (h *Hash[S, E]) Values() []E {
	out := make([]E, 0, h.Len())
	h.Each(func(e E) { out = append(out, e) })
	return out
}

// State returns the projection of every entity in insertion order.
func (h *Hash[S, E]) State() []S {
	return h.AppendState(make([]S, 0, h.Len()))
}

// AppendState appends the projections to dst and returns the extended slice.
func (h *Hash[S, E]) AppendState(dst []S) []S {
	for el := h.order.Front(); el != nil; el = el.Next() {
		dst = append(dst, el.Value.(E).State())
	}
	return dst
}

// Clear removes everything, emitting one OnDelete batch.
func (h *Hash[S, E]) Clear() {
	h.Delete(h.Values()...)
}
