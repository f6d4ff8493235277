package subscription

import (
	"fmt"
	"sync"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Table is a fixed-capacity subscription registry.
type Table struct {
	mu    sync.RWMutex
	slots []*Subscription
}

// NewTable creates a table with DefaultCapacity slots.
func NewTable() *Table {
	t, _ := NewTableWithCapacity(DefaultCapacity)
	return t
}

// NewTableWithCapacity creates a table with n slots.
func NewTableWithCapacity(n int) (*Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, n)
	}
	return &Table{slots: make([]*Subscription, n)}, nil
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// Reserve validates name and claims the first free slot for it, returning the
// slot index. The entry has no handler until Complete is called; Dispatch
// ignores it meanwhile. A failed reservation leaves the table untouched.
func (t *Table) Reserve(name string, qos transport.QoS) (int, error) {
	if err := ValidateTopic(name); err != nil {
		return -1, fmt.Errorf("%w: %q", err, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	free := -1
	for i, s := range t.slots {
		if s == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.Topic.Name == name {
			return -1, fmt.Errorf("%w: %q", ErrAlreadySubscribed, name)
		}
	}
	if free < 0 {
		return -1, ErrTableFull
	}
	t.slots[free] = &Subscription{Topic: transport.Topic{Name: name}, QoS: qos}
	return free, nil
}

// Complete fills in a reserved slot once the transport accepted the
// subscription. The slot keeps the name it was reserved under; only the
// transport's topic ID is taken from topic.
func (t *Table) Complete(slot int, topic transport.Topic, h transport.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s := t.slotLocked(slot); s != nil {
		s.Topic.ID = topic.ID
		s.Handler = h
	}
}

// Release clears a slot. It is used to roll back a reservation.
func (t *Table) Release(slot int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slot >= 0 && slot < len(t.slots) {
		t.slots[slot] = nil
	}
}

// Insert reserves and completes a slot in one step.
func (t *Table) Insert(topic transport.Topic, qos transport.QoS, h transport.Handler) (int, error) {
	slot, err := t.Reserve(topic.Name, qos)
	if err != nil {
		return -1, err
	}
	t.Complete(slot, topic, h)
	return slot, nil
}

// Lookup returns the subscription for name.
func (t *Table) Lookup(name string) (Subscription, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.slots {
		if s != nil && s.Topic.Name == name {
			return *s, true
		}
	}
	return Subscription{}, false
}

// Remove clears the slot holding name.
func (t *Table) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.slots {
		if s != nil && s.Topic.Name == name {
			t.slots[i] = nil
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Active returns the number of occupied slots.
func (t *Table) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// List returns the occupied slots in slot order.
func (t *Table) List() []Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Subscription, 0, len(t.slots))
	for _, s := range t.slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Clear empties the table.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		t.slots[i] = nil
	}
}

// Dispatch delivers an inbound message to the handler subscribed to its topic.
// The handler runs outside the lock. It reports whether a handler was found.
func (t *Table) Dispatch(topic transport.Topic, payload []byte) bool {
	t.mu.RLock()
	var h transport.Handler
	for _, s := range t.slots {
		if s != nil && s.Handler != nil && s.Topic.Name == topic.Name {
			h = s.Handler
			break
		}
	}
	t.mu.RUnlock()

	if h == nil {
		return false
	}
	h(topic, payload)
	return true
}

func (t *Table) slotLocked(slot int) *Subscription {
	if slot < 0 || slot >= len(t.slots) {
		return nil
	}
	return t.slots[slot]
}
