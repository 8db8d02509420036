package permkit

import (
	"context"
	"fmt"
	"sync"
)

// memLoader is an in-memory Loader for registry and resolution tests.
// It mimics the Service's contract: missing instances error, missing
// assignments return (nil, nil).
type memLoader struct {
	mu          sync.Mutex
	instances   map[string]*Instance
	roles       map[string][]*Role
	assignments map[string]*Assignment
	loads       int // LoadRoles calls, to observe cache behavior
}

func newMemLoader() *memLoader {
	return &memLoader{
		instances:   make(map[string]*Instance),
		roles:       make(map[string][]*Role),
		assignments: make(map[string]*Assignment),
	}
}

func (l *memLoader) addInstance(instance *Instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instances[instance.ID] = instance
}

func (l *memLoader) addRole(role *Role) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roles[role.InstanceID] = append(l.roles[role.InstanceID], role)
}

func (l *memLoader) assign(userID, instanceID, roleID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.assignments[userID+"|"+instanceID] = &Assignment{
		UserID:     userID,
		InstanceID: instanceID,
		RoleID:     roleID,
	}
}

func (l *memLoader) LoadInstance(ctx context.Context, instanceID string) (*Instance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	instance, ok := l.instances[instanceID]
	if !ok {
		return nil, NewError(ErrInstanceNotFound, "no instance with this id").WithInstance(instanceID)
	}
	return instance, nil
}

func (l *memLoader) LoadRoles(ctx context.Context, instanceID string) ([]*Role, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	// Fresh copies each load: the registry owns snapshot identity.
	var roles []*Role
	for _, role := range l.roles[instanceID] {
		copied := *role
		copied.idx = nil
		roles = append(roles, &copied)
	}
	return roles, nil
}

func (l *memLoader) LoadAssignment(ctx context.Context, userID, instanceID string) (*Assignment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assignments[userID+"|"+instanceID], nil
}

var fixtureSeq int

func nextID(prefix string) string {
	fixtureSeq++
	return fmt.Sprintf("%s-%d", prefix, fixtureSeq)
}

// testInstance builds an instance with the given features enabled.
func testInstance(features ...string) *Instance {
	return &Instance{
		ID:       nextID("instance"),
		Name:     nextID("map"),
		URLName:  nextID("map"),
		Features: features,
	}
}

// testRole builds a resolved role in an instance with the given grants.
func testRole(instanceID, name string, grants ...*RoleGrant) *Role {
	role := &Role{
		ID:         nextID("role"),
		InstanceID: instanceID,
		Name:       name,
		Grants:     grants,
	}
	role.resolve()
	return role
}

// testContext builds a resolved PermissionContext directly, bypassing
// the registry, for checker and resolver tests.
func testContext(userID string, instance *Instance, grants ...*RoleGrant) *PermissionContext {
	return &PermissionContext{
		UserID:   userID,
		Instance: instance,
		Role:     testRole(instance.ID, "test", grants...),
	}
}

func modelGrant(model ModelType, level Level) *RoleGrant {
	return &RoleGrant{Model: model, Level: level}
}

func ownerGrant(model ModelType, level Level) *RoleGrant {
	return &RoleGrant{Model: model, Level: level, OwnerOnly: true}
}

func fieldGrant(model ModelType, field string, level Level) *RoleGrant {
	return &RoleGrant{Model: model, Field: field, Level: level}
}
