package netsync

import (
	"slices"
	"time"

	"github.com/zeusync/arena/internal/core/ecs"
)

// IDMap is the one bidirectional remote id ↔ entity table, with the last time
// each remote id was seen.
type IDMap struct {
	toLocal  map[string]ecs.EntityID
	toRemote map[ecs.EntityID]string
	lastSeen map[string]time.Time
}

func NewIDMap() *IDMap {
	return &IDMap{
		toLocal:  make(map[string]ecs.EntityID),
		toRemote: make(map[ecs.EntityID]string),
		lastSeen: make(map[string]time.Time),
	}
}

// Bind maps remote to id, replacing any earlier binding of either side.
func (m *IDMap) Bind(remote string, id ecs.EntityID) {
	if old, ok := m.toLocal[remote]; ok {
		delete(m.toRemote, old)
	}
	if old, ok := m.toRemote[id]; ok {
		delete(m.toLocal, old)
		delete(m.lastSeen, old)
	}
	m.toLocal[remote] = id
	m.toRemote[id] = remote
}

func (m *IDMap) Local(remote string) (ecs.EntityID, bool) {
	id, ok := m.toLocal[remote]
	return id, ok
}

func (m *IDMap) Remote(id ecs.EntityID) (string, bool) {
	r, ok := m.toRemote[id]
	return r, ok
}

func (m *IDMap) Touch(remote string, now time.Time) { m.lastSeen[remote] = now }

func (m *IDMap) LastSeen(remote string) (time.Time, bool) {
	t, ok := m.lastSeen[remote]
	return t, ok
}

// Unbind drops remote and its entity from the table.
func (m *IDMap) Unbind(remote string) bool {
	id, ok := m.toLocal[remote]
	if !ok {
		return false
	}
	delete(m.toLocal, remote)
	delete(m.toRemote, id)
	delete(m.lastSeen, remote)
	return true
}

func (m *IDMap) Len() int { return len(m.toLocal) }

// Remotes returns the mapped remote ids in sorted order.
func (m *IDMap) Remotes() []string {
	out := make([]string, 0, len(m.toLocal))
	for r := range m.toLocal {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}
