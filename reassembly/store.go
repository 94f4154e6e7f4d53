package reassembly

import (
	"fmt"

	"github.com/paperback-web/paperback/block"
)

// NFile is the maximum number of files reassembled concurrently.
const NFile = 5

// Store is a job-scoped table of in-flight slots, keyed by identity
// tuple, bounded by NFile. spec.md §9 calls for a small associative
// container here; a linear scan over at most NFile entries is
// acceptable.
type Store struct {
	slots []*Slot
}

// NewStore returns an empty slot table.
func NewStore() *Store {
	return &Store{}
}

// Lookup finds an existing slot matching id, if any.
func (st *Store) Lookup(id block.Identity) (*Slot, bool) {
	for _, s := range st.slots {
		if s.Identity == id {
			return s, true
		}
	}
	return nil, false
}

// Add creates a new slot for sb's identity, or returns the existing one
// if it already matches a slot in the table. Returns TooManyFiles
// (spec.md §7) if the table is full and sb does not match an existing
// slot.
func (st *Store) Add(sb block.Superblock, ngroup int) (*Slot, error) {
	if existing, ok := st.Lookup(sb.Identity()); ok {
		return existing, nil
	}
	if len(st.slots) >= NFile {
		return nil, fmt.Errorf("reassembly: too many concurrent files (limit %d)", NFile)
	}
	slot, err := NewSlot(sb, ngroup)
	if err != nil {
		return nil, err
	}
	st.slots = append(st.slots, slot)
	return slot, nil
}

// Remove closes and drops a slot from the table, e.g. once its file has
// been emitted or the caller cancels it.
func (st *Store) Remove(slot *Slot) {
	for i, s := range st.slots {
		if s == slot {
			st.slots = append(st.slots[:i], st.slots[i+1:]...)
			return
		}
	}
}

// Slots returns the table's current slots, for progress reporting.
func (st *Store) Slots() []*Slot {
	return st.slots
}
