// services/hal/registry.go
package hal

import (
	"sync"
	"sync/atomic"

	"boardhal-go/errcode"
	"boardhal-go/types"
)

// Handle is an opaque token owned by the native layer. The registry stores
// and returns handles without ever dereferencing them; they are
// address-equivalent identifiers.
type Handle uintptr

var handleSeq uint64

// NewHandle mints a process-unique Handle for managed drivers that have no
// native address to offer.
func NewHandle() Handle {
	return Handle(atomic.AddUint64(&handleSeq, 1))
}

// DriverRecord describes one installed driver instance. Records are
// immutable once added; Author and Version are informational and play no
// part in resolution.
type DriverRecord struct {
	Type    types.ControllerType
	Name    string
	Author  string
	Version string
	Impl    Handle // implementation object, native side
	State   Handle // per-instance state, native side
}

// ProviderCreator constructs a purely-managed default provider for a
// controller type that has no native record registered.
type ProviderCreator func() any

type recordKey struct {
	t    types.ControllerType
	name string
}

// Registry is a directory of driver records keyed by (controller type,
// name), with per-type default selection. Mutations are rare (install time)
// relative to lookups, so reads take an RLock and copy out.
type Registry struct {
	mu          sync.RWMutex
	records     map[recordKey]DriverRecord
	defaultName map[types.ControllerType]string
	creators    map[types.ControllerType]ProviderCreator
}

func NewRegistry() *Registry {
	return &Registry{
		records:     map[recordKey]DriverRecord{},
		defaultName: map[types.ControllerType]string{},
		creators:    map[types.ControllerType]ProviderCreator{},
	}
}

// Providers is the process-wide registry. Tests construct their own.
var Providers = NewRegistry()

// Add installs a record. Within one controller type, names are unique among
// currently-registered records.
func (r *Registry) Add(rec DriverRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{t: rec.Type, name: rec.Name}
	if _, exists := r.records[k]; exists {
		return errcode.New(errcode.DuplicateName, "Add", rec.Name)
	}
	r.records[k] = rec
	return nil
}

// Remove deletes the record whose implementation handle matches impl. A
// missing record reports errcode.NotFound rather than crashing a caller
// racing with another unregister.
func (r *Registry) Remove(impl Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, rec := range r.records {
		if rec.Impl == impl {
			delete(r.records, k)
			return nil
		}
	}
	return errcode.NotFound
}

// Find is an exact (name, type) lookup. Absence is an expected outcome, not
// an error; callers probe for optional drivers this way.
func (r *Registry) Find(name string, t types.ControllerType) (DriverRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[recordKey{t: t, name: name}]
	return rec, ok
}

// FindAll returns a snapshot of every record. Later registry mutations do
// not show through the returned slice.
func (r *Registry) FindAll() []DriverRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DriverRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// FindByType returns a snapshot of the records registered for one type.
func (r *Registry) FindByType(t types.ControllerType) []DriverRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DriverRecord
	for k, rec := range r.records {
		if k.t == t {
			out = append(out, rec)
		}
	}
	return out
}

// DefaultName reports the configured default record name for a type.
func (r *Registry) DefaultName(t types.ControllerType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.defaultName[t]
	return name, ok
}

// SetDefaultName selects which named record is "the" default for a type.
// Existence is not validated eagerly: a default may be named before its
// provider registers.
func (r *Registry) SetDefaultName(t types.ControllerType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName[t] = name
}

// SetDefaultCreator installs a factory used when no native default record
// exists for a type.
func (r *Registry) SetDefaultCreator(t types.ControllerType, fn ProviderCreator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creators[t] = fn
}

// DefaultFromCreator invokes the registered factory for t, if any. The
// factory runs outside the registry lock.
func (r *Registry) DefaultFromCreator(t types.ControllerType) (any, bool) {
	r.mu.RLock()
	fn := r.creators[t]
	r.mu.RUnlock()

	if fn == nil {
		return nil, false
	}
	return fn(), true
}

// Resolution is the outcome of default resolution: either a registered
// record (Record set) or a factory-constructed provider (Provider set).
type Resolution struct {
	Record   *DriverRecord
	Provider any
}

// ResolveDefault applies the default-selection algorithm for a type:
//  1. the configured default name, if it matches a registered record;
//  2. otherwise the default creator, if one is installed;
//  3. otherwise absent.
//
// A default name pointing at a removed or never-registered record falls
// through rather than returning a stale handle.
func (r *Registry) ResolveDefault(t types.ControllerType) (Resolution, bool) {
	r.mu.RLock()
	name, named := r.defaultName[t]
	var rec DriverRecord
	var found bool
	if named {
		rec, found = r.records[recordKey{t: t, name: name}]
	}
	r.mu.RUnlock()

	if found {
		return Resolution{Record: &rec}, true
	}
	if p, ok := r.DefaultFromCreator(t); ok {
		return Resolution{Provider: p}, true
	}
	return Resolution{}, false
}
