package ecs

import (
	"fmt"
	"sort"
)

// World owns the entity pool and one typed store per registered component
// type. It is not safe for concurrent use: the simulation loop is its only
// writer.
//
// Entities go through two phases. CreateEntity hands out an id in the pending
// state; components can be attached freely but the entity is invisible to
// Query and the Each helpers until NotifyEntityAdded promotes it. This keeps
// systems from ever seeing a half-assembled entity.
type World struct {
	pool   *EntityPool
	stores []anyStore
	types  map[any]ComponentType

	pending map[EntityID]struct{}
	ready   map[EntityID]struct{}

	onRemoved []func(EntityID)
}

func NewWorld() *World {
	return &World{
		pool:    NewEntityPool(),
		stores:  make([]anyStore, 0, 16),
		types:   make(map[any]ComponentType, 16),
		pending: make(map[EntityID]struct{}),
		ready:   make(map[EntityID]struct{}),
	}
}

// Register assigns T a dense type tag. Registering twice returns the same tag.
// The key is a typed nil pointer, so lookup compares dynamic types without
// reflection.
func Register[T any](w *World) ComponentType {
	key := any((*T)(nil))
	if t, ok := w.types[key]; ok {
		return t
	}
	t := ComponentType(len(w.stores))
	w.stores = append(w.stores, newStore[T](t, fmt.Sprintf("%T", *new(T))))
	w.types[key] = t
	return t
}

// TypeOf returns the tag of T, registering it on first use.
func TypeOf[T any](w *World) ComponentType {
	return Register[T](w)
}

// StoreOf returns the typed store for T. Systems call it once at construction
// and keep the pointer.
func StoreOf[T any](w *World) *Store[T] {
	return w.stores[Register[T](w)].(*Store[T])
}

// Add attaches c to id, replacing any existing T. A nil c attaches a zero T.
func Add[T any](w *World, id EntityID, c *T) (*T, error) {
	if !w.pool.Alive(id) {
		return nil, fmt.Errorf("add %T to %d: %w", *new(T), id, ErrEntityNotAlive)
	}
	return StoreOf[T](w).Set(id, c), nil
}

// Get looks up the T attached to id. Missing components are a normal runtime
// condition and are reported through ok.
func Get[T any](w *World, id EntityID) (*T, bool) {
	t, ok := w.types[any((*T)(nil))]
	if !ok {
		return nil, false
	}
	return w.stores[t].(*Store[T]).Get(id)
}

func Has[T any](w *World, id EntityID) bool {
	_, ok := Get[T](w, id)
	return ok
}

func Remove[T any](w *World, id EntityID) {
	t, ok := w.types[any((*T)(nil))]
	if !ok {
		return
	}
	w.stores[t].Remove(id)
}

// CreateEntity reserves a new id in the pending state.
func (w *World) CreateEntity() EntityID {
	id := w.pool.Create()
	w.pending[id] = struct{}{}
	return id
}

// CreateComponent returns a fresh zero-valued instance (a *T) of the given type.
func (w *World) CreateComponent(t ComponentType) (any, error) {
	if int(t) >= len(w.stores) {
		return nil, fmt.Errorf("create component %d: %w", t, ErrUnknownComponentType)
	}
	return w.stores[t].newInstance(), nil
}

// AddComponent attaches a type-erased instance produced by CreateComponent.
func (w *World) AddComponent(id EntityID, instance any) error {
	if instance == nil {
		return ErrNilComponent
	}
	if !w.pool.Alive(id) {
		return fmt.Errorf("add component to %d: %w", id, ErrEntityNotAlive)
	}
	for _, s := range w.stores {
		if s.attach(id, instance) {
			return nil
		}
	}
	return fmt.Errorf("add %T: %w", instance, ErrComponentNotRegistered)
}

// GetComponent is the type-erased lookup; it never panics.
func (w *World) GetComponent(id EntityID, t ComponentType) (any, bool) {
	if int(t) >= len(w.stores) {
		return nil, false
	}
	return w.stores[t].instance(id)
}

// NotifyEntityAdded promotes a fully configured entity so systems can see it.
func (w *World) NotifyEntityAdded(id EntityID) error {
	if !w.pool.Alive(id) {
		return fmt.Errorf("announce %d: %w", id, ErrEntityNotAlive)
	}
	if _, ok := w.ready[id]; ok {
		return fmt.Errorf("announce %d: %w", id, ErrEntityAlreadyAnnounced)
	}
	delete(w.pending, id)
	w.ready[id] = struct{}{}
	return nil
}

// DestroyEntity removes id and all of its components. Destroying an unknown
// or already destroyed id is a no-op that reports false.
func (w *World) DestroyEntity(id EntityID) bool {
	if !w.pool.Alive(id) {
		return false
	}
	for _, s := range w.stores {
		s.Remove(id)
	}
	delete(w.pending, id)
	delete(w.ready, id)
	w.pool.Destroy(id)
	for _, fn := range w.onRemoved {
		fn(id)
	}
	return true
}

func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

// Ready reports whether id is alive and announced.
func (w *World) Ready(id EntityID) bool {
	_, ok := w.ready[id]
	return ok
}

// Count returns the number of live entities, pending ones included.
func (w *World) Count() int { return w.pool.Count() }

// Query returns the announced entities holding every listed component type,
// ordered by id. The smallest store drives the intersection.
func (w *World) Query(types ...ComponentType) []EntityID {
	if len(types) == 0 {
		return nil
	}
	stores := make([]anyStore, 0, len(types))
	for _, t := range types {
		if int(t) >= len(w.stores) {
			return nil
		}
		stores = append(stores, w.stores[t])
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].Len() < stores[j].Len() })

	candidates := stores[0].Entities()
	out := candidates[:0]
	for _, id := range candidates {
		if _, ok := w.ready[id]; !ok {
			continue
		}
		match := true
		for _, s := range stores[1:] {
			if !s.Has(id) {
				match = false
				break
			}
		}
		if match {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OnEntityRemoved registers a hook fired after DestroyEntity.
func (w *World) OnEntityRemoved(fn func(EntityID)) {
	w.onRemoved = append(w.onRemoved, fn)
}
