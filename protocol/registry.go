package protocol

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ErrNotFound is returned when a protocol id is not registered.
var ErrNotFound = errors.New("protocol not found")

// Registry holds the user-defined protocols and which one is active.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Descriptor
	active    string
}

func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]Descriptor)}
}

// Register inserts d or replaces the descriptor with the same id.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	d = d.Clone()
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().UnixMilli()
	}
	if d.UpdatedAt == 0 {
		d.UpdatedAt = d.CreatedAt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocols[d.ID] = d
	return nil
}

// Remove deletes id and clears the active protocol if it was id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.protocols, id)
	if r.active == id {
		r.active = ""
	}
}

// SetActive selects the protocol used by Parse. The id is not checked;
// an empty id clears the selection.
func (r *Registry) SetActive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = id
}

// Active returns the active id, if any.
func (r *Registry) Active() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.active != ""
}

// List returns all descriptors ordered by creation time, then id.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	out := lo.Map(lo.Values(r.protocols), func(d Descriptor, _ int) Descriptor { return d.Clone() })
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Descriptor) int {
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.protocols[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.Clone(), true
}

// Parse decodes data with the active protocol. It returns false when no
// protocol is active or the active id is not registered.
func (r *Registry) Parse(data []byte) (Frame, bool) {
	r.mu.RLock()
	d, ok := r.protocols[r.active]
	ok = ok && r.active != ""
	r.mu.RUnlock()
	if !ok {
		return Frame{}, false
	}
	return Parse(d, data), true
}

// ParseWith decodes data with the protocol registered under id.
func (r *Registry) ParseWith(id string, data []byte) (Frame, error) {
	r.mu.RLock()
	d, ok := r.protocols[id]
	r.mu.RUnlock()
	if !ok {
		return Frame{}, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return Parse(d, data), nil
}
