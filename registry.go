package permkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loader supplies raw instance, role and assignment records to the
// registry. The Service implements it over the database; tests implement
// it in memory.
type Loader interface {
	// LoadInstance returns the instance, or an error wrapping
	// ErrInstanceNotFound when it does not exist.
	LoadInstance(ctx context.Context, instanceID string) (*Instance, error)

	// LoadRoles returns every role of the instance with grants populated.
	LoadRoles(ctx context.Context, instanceID string) ([]*Role, error)

	// LoadAssignment returns the user's assignment in the instance, or
	// (nil, nil) when the user has none.
	LoadAssignment(ctx context.Context, userID, instanceID string) (*Assignment, error)
}

// Registry caches the role and grant data of each instance and is the
// only component that reads them from storage. Each instance's data is
// held as an immutable snapshot that is swapped atomically on refresh,
// so concurrent readers never observe a partially-updated role. Readers
// may see a stale snapshot until the next Invalidate or Refresh; that is
// acceptable, grant edits are rare administrative events.
type Registry struct {
	loader Loader

	mu        sync.RWMutex
	snapshots map[string]*instanceSnapshot

	hits      int64
	misses    int64
	refreshes int64
}

// instanceSnapshot is one instance's fully-materialized role data.
// Immutable after construction: role pointers stay stable for the life
// of the snapshot, so repeated lookups return the same object and
// callers can compare roles by reference.
type instanceSnapshot struct {
	instance    *Instance
	roles       []*Role
	byID        map[string]*Role
	defaultRole *Role // synthetic zero-grant role when the instance has none
	loadedAt    time.Time
}

// RegistryStats reports cache behavior for health surfaces.
type RegistryStats struct {
	CachedInstances int   `json:"cached_instances"`
	Hits            int64 `json:"hits"`
	Misses          int64 `json:"misses"`
	Refreshes       int64 `json:"refreshes"`
}

// NewRegistry creates a registry backed by the given loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:    loader,
		snapshots: make(map[string]*instanceSnapshot),
	}
}

// InstanceFor returns the cached instance record.
func (r *Registry) InstanceFor(ctx context.Context, instanceID string) (*Instance, error) {
	snap, err := r.snapshot(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return snap.instance, nil
}

// RolesFor returns every role defined by the instance. The returned
// slice is shared with the snapshot and must not be mutated.
func (r *Registry) RolesFor(ctx context.Context, instanceID string) ([]*Role, error) {
	snap, err := r.snapshot(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return snap.roles, nil
}

// RoleFor resolves the single role a user holds in an instance: the
// assigned role when an assignment exists, the instance's default role
// otherwise, and a zero-grant role when the instance defines no default.
// It never returns nil with a nil error; permission checks against the
// zero-grant role all come back denied instead of crashing.
func (r *Registry) RoleFor(ctx context.Context, userID, instanceID string) (*Role, error) {
	snap, err := r.snapshot(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if userID == "" {
		// Anonymous callers always get the default role.
		return snap.defaultRole, nil
	}

	assignment, err := r.loader.LoadAssignment(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return snap.defaultRole, nil
	}

	if role, ok := snap.byID[assignment.RoleID]; ok {
		return role, nil
	}
	// Assignment references a role deleted since the snapshot was taken.
	// Fail closed rather than erroring.
	return snap.defaultRole, nil
}

// Invalidate drops the cached snapshot of an instance. The next lookup
// reloads from storage. Call after any role, grant or assignment change.
func (r *Registry) Invalidate(instanceID string) {
	r.mu.Lock()
	delete(r.snapshots, instanceID)
	r.mu.Unlock()
}

// Refresh reloads an instance's snapshot immediately.
func (r *Registry) Refresh(ctx context.Context, instanceID string) error {
	snap, err := r.load(ctx, instanceID)
	if err != nil {
		return err
	}
	atomic.AddInt64(&r.refreshes, 1)
	r.mu.Lock()
	r.snapshots[instanceID] = snap
	r.mu.Unlock()
	return nil
}

// Stats returns cache statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	cached := len(r.snapshots)
	r.mu.RUnlock()
	return RegistryStats{
		CachedInstances: cached,
		Hits:            atomic.LoadInt64(&r.hits),
		Misses:          atomic.LoadInt64(&r.misses),
		Refreshes:       atomic.LoadInt64(&r.refreshes),
	}
}

// snapshot returns the cached snapshot of an instance, loading it on
// first use. The load happens outside the lock; if two goroutines race,
// one snapshot wins the swap and both observe consistent data.
func (r *Registry) snapshot(ctx context.Context, instanceID string) (*instanceSnapshot, error) {
	r.mu.RLock()
	snap, ok := r.snapshots[instanceID]
	r.mu.RUnlock()
	if ok {
		atomic.AddInt64(&r.hits, 1)
		return snap, nil
	}

	atomic.AddInt64(&r.misses, 1)
	loaded, err := r.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.snapshots[instanceID]; ok {
		// Lost the race; keep the established snapshot so role identity
		// stays stable for callers that already hold it.
		r.mu.Unlock()
		return existing, nil
	}
	r.snapshots[instanceID] = loaded
	r.mu.Unlock()
	return loaded, nil
}

func (r *Registry) load(ctx context.Context, instanceID string) (*instanceSnapshot, error) {
	instance, err := r.loader.LoadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	roles, err := r.loader.LoadRoles(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	snap := &instanceSnapshot{
		instance: instance,
		roles:    roles,
		byID:     make(map[string]*Role, len(roles)),
		loadedAt: time.Now(),
	}
	for _, role := range roles {
		role.resolve()
		snap.byID[role.ID] = role
	}

	if instance.DefaultRoleID != "" {
		snap.defaultRole = snap.byID[instance.DefaultRoleID]
	}
	if snap.defaultRole == nil {
		for _, role := range roles {
			if role.IsDefault {
				snap.defaultRole = role
				break
			}
		}
	}
	if snap.defaultRole == nil {
		// No default role configured: users without an assignment get a
		// zero-grant role so checks still resolve (to denied).
		snap.defaultRole = &Role{
			InstanceID: instanceID,
			Name:       "no-access",
			idx:        emptyGrantIndex,
		}
	}

	return snap, nil
}
