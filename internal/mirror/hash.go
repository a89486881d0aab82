package mirror

import (
	"arena-server/internal/ident"
	"arena-server/internal/signal"
)

// Hash is the client side of an entity collection. Update diffs a full
// array against the previous one by id.
type Hash[S any] struct {
	id     func(*S) ident.ID
	states map[ident.ID]S
	seen   map[ident.ID]struct{}

	OnAdd    signal.Signal[S]
	OnUpdate signal.Signal[S]
	OnDelete signal.Signal[S]
}

// NewHash creates an empty Hash keyed by id.
func NewHash[S any](id func(*S) ident.ID) *Hash[S] {
	return &Hash[S]{
		id:     id,
		states: make(map[ident.ID]S),
		seen:   make(map[ident.ID]struct{}),
	}
}

// Update makes states the current contents. New ids fire OnAdd, known ids
// fire OnUpdate and ids no longer present fire OnDelete with their last
// state.
func (h *Hash[S]) Update(states []S) {
	clear(h.seen)
	for i := range states {
		s := states[i]
		id := h.id(&s)
		h.seen[id] = struct{}{}
		_, known := h.states[id]
		h.states[id] = s
		if known {
			h.OnUpdate.Emit(s)
		} else {
			h.OnAdd.Emit(s)
		}
	}
	for id, s := range h.states {
		if _, ok := h.seen[id]; ok {
			continue
		}
		delete(h.states, id)
		h.OnDelete.Emit(s)
	}
}

func (h *Hash[S]) Get(id ident.ID) (S, bool) {
	s, ok := h.states[id]
	return s, ok
}

func (h *Hash[S]) Has(id ident.ID) bool {
	_, ok := h.states[id]
	return ok
}

func (h *Hash[S]) Len() int { return len(h.states) }
