package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// HostHandle is an opaque reference to a native resource owned by a host
// module (a database connection, an HTTP response). The VM never looks
// inside; handles are reference-counted through the registry so multiple
// values can share one resource.
type HostHandle struct {
	ID       uuid.UUID
	Resource interface{}
	Close    func() // optional finalizer, run when the last reference drops
	refs     int
}

// String renders the handle opaquely
func (h *HostHandle) String() string {
	return fmt.Sprintf("<handle %s>", h.ID)
}

// HandleRegistry tracks live host handles and their reference counts
type HandleRegistry struct {
	handles map[uuid.UUID]*HostHandle
}

// NewHandleRegistry creates an empty registry
func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{handles: map[uuid.UUID]*HostHandle{}}
}

// New registers a native resource and returns a handle value with one
// reference.
func (r *HandleRegistry) New(resource interface{}, close func()) Value {
	h := &HostHandle{
		ID:       uuid.New(),
		Resource: resource,
		Close:    close,
		refs:     1,
	}
	r.handles[h.ID] = h
	return Value{Kind: KindHandle, Handle: h}
}

// Retain adds a reference to a handle
func (r *HandleRegistry) Retain(h *HostHandle) {
	if _, ok := r.handles[h.ID]; ok {
		h.refs++
	}
}

// Release drops a reference; the last release closes the resource and
// removes the handle from the registry.
func (r *HandleRegistry) Release(h *HostHandle) {
	if _, ok := r.handles[h.ID]; !ok {
		return
	}
	h.refs--
	if h.refs <= 0 {
		delete(r.handles, h.ID)
		if h.Close != nil {
			h.Close()
		}
	}
}

// Lookup retrieves a live handle by id
func (r *HandleRegistry) Lookup(id uuid.UUID) (*HostHandle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// Live returns the number of live handles, for tests and diagnostics
func (r *HandleRegistry) Live() int {
	return len(r.handles)
}
