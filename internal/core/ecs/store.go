package ecs

// ComponentType is the dense tag assigned to a component type at registration.
type ComponentType uint16

// anyStore is the type-erased view the World uses for lifecycle operations
// like bulk removal on destroy and query intersection.
type anyStore interface {
	Type() ComponentType
	Name() string
	Has(id EntityID) bool
	Remove(id EntityID)
	Len() int
	Entities() []EntityID

	newInstance() any
	attach(id EntityID, instance any) bool
	instance(id EntityID) (any, bool)
}

// Store holds every instance of one component type. Instances are heap
// allocated so pointers handed out by Get stay valid until removal. Iteration
// order is insertion order with swap-remove, which keeps it deterministic for
// a given sequence of operations.
type Store[T any] struct {
	typ   ComponentType
	name  string
	data  map[EntityID]*T
	order []EntityID
	index map[EntityID]int
}

func newStore[T any](typ ComponentType, name string) *Store[T] {
	return &Store[T]{
		typ:   typ,
		name:  name,
		data:  make(map[EntityID]*T, 64),
		order: make([]EntityID, 0, 64),
		index: make(map[EntityID]int, 64),
	}
}

func (s *Store[T]) Type() ComponentType { return s.typ }
func (s *Store[T]) Name() string        { return s.name }

// Set inserts or replaces the component for id and returns the stored pointer.
func (s *Store[T]) Set(id EntityID, c *T) *T {
	if c == nil {
		c = new(T)
	}
	if _, exists := s.data[id]; !exists {
		s.index[id] = len(s.order)
		s.order = append(s.order, id)
	}
	s.data[id] = c
	return c
}

// Get never panics; absence is an ordinary outcome.
func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Remove(id EntityID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	last := len(s.order) - 1
	if i != last {
		moved := s.order[last]
		s.order[i] = moved
		s.index[moved] = i
	}
	s.order = s.order[:last]
	delete(s.index, id)
	delete(s.data, id)
}

func (s *Store[T]) Len() int { return len(s.order) }

// Entities returns a copy of the ids holding this component.
func (s *Store[T]) Entities() []EntityID {
	out := make([]EntityID, len(s.order))
	copy(out, s.order)
	return out
}

// Each visits every instance in store order. Mutating this store from fn is
// not allowed; other stores may be mutated freely.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for _, id := range s.order {
		fn(id, s.data[id])
	}
}

func (s *Store[T]) newInstance() any { return new(T) }

func (s *Store[T]) attach(id EntityID, instance any) bool {
	c, ok := instance.(*T)
	if !ok {
		return false
	}
	s.Set(id, c)
	return true
}

func (s *Store[T]) instance(id EntityID) (any, bool) {
	c, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return c, true
}
