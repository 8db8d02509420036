package permkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Instance feature toggles. An instance only exposes optional
// functionality it has explicitly enabled.
const (
	// FeaturePhotos enables photo uploads on map features.
	FeaturePhotos = "photos"

	// FeatureAdvancedSearch enables the advanced search filter set.
	FeatureAdvancedSearch = "advanced_search"

	// FeatureExports enables data exports for non-administrators.
	FeatureExports = "exports"
)

// Instance is a tenant boundary: one organization's map, users, roles and
// domain objects. Every role and every domain object belongs to exactly
// one instance, and nothing is ever evaluated across that boundary.
type Instance struct {
	bun.BaseModel `bun:"table:instances,alias:i"`

	ID            string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name          string    `bun:"name,notnull,unique"`
	URLName       string    `bun:"url_name,notnull,unique"`
	DefaultRoleID string    `bun:"default_role_id,type:uuid,nullzero"`
	IsPublic      bool      `bun:"is_public,notnull,default:false"`
	Features      []string  `bun:"features,type:jsonb"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// FeatureEnabled reports whether an optional feature is enabled for this
// instance.
func (i *Instance) FeatureEnabled(feature string) bool {
	for _, f := range i.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Role is a named bundle of grants scoped to one instance. Roles are
// never shared across instances, even when two instances define roles
// with the same name.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID         string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	InstanceID string    `bun:"instance_id,notnull,type:uuid"`
	Name       string    `bun:"name,notnull"`
	IsDefault  bool      `bun:"is_default,notnull,default:false"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Grants []*RoleGrant `bun:"rel:has-many,join:id=role_id"`

	// Built once when the registry materializes a snapshot; decision
	// functions only read it.
	idx *grantIndex
}

// RoleGrant is a single permission a role confers: a level on one model,
// or on one field of a model. A grant with an empty Field is the
// model-level grant. OwnerOnly grants contribute their level only when
// the requesting user owns the object being checked.
type RoleGrant struct {
	bun.BaseModel `bun:"table:role_grants,alias:rg"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	RoleID    string    `bun:"role_id,notnull,type:uuid"`
	Model     ModelType `bun:"model,notnull"`
	Field     string    `bun:"field"` // empty means model-level
	Level     Level     `bun:"level,notnull"`
	OwnerOnly bool      `bun:"owner_only,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// IsModelGrant reports whether this is a model-level grant.
func (g *RoleGrant) IsModelGrant() bool {
	return g.Field == ""
}

// Assignment binds a user to exactly one role within one instance. It is
// a pure relation: it owns neither the user nor the role. At most one
// assignment exists per (user, instance) pair; users without one fall
// back to the instance's default role.
type Assignment struct {
	bun.BaseModel `bun:"table:assignments,alias:a"`

	ID         string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID     string    `bun:"user_id,notnull"`
	InstanceID string    `bun:"instance_id,notnull,type:uuid"`
	RoleID     string    `bun:"role_id,notnull,type:uuid"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// GrantAudit records every administrative change to roles, grants and
// assignments for compliance and debugging.
type GrantAudit struct {
	bun.BaseModel `bun:"table:grant_audit_log,alias:ga"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Who performed the change
	ActorID string `bun:"actor_id,notnull"`

	// What changed
	Action     string `bun:"action,notnull"`
	InstanceID string `bun:"instance_id,notnull"`
	RoleID     string `bun:"role_id"`
	RoleName   string `bun:"role_name"`

	// Target of an assignment change, if any
	TargetUserID string `bun:"target_user_id"`

	// Grant detail, if the change touched a grant
	Model string `bun:"model"`
	Field string `bun:"field"`
	Level string `bun:"level"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`

	// Additional context (JSON)
	Metadata map[string]interface{} `bun:"metadata,type:jsonb"`
}

// AuditAction identifies the kind of administrative change recorded.
type AuditAction string

const (
	AuditInstanceCreated    AuditAction = "instance.created"
	AuditFeatureChanged     AuditAction = "instance.feature_changed"
	AuditRoleCreated        AuditAction = "role.created"
	AuditRoleDeleted        AuditAction = "role.deleted"
	AuditDefaultRoleChanged AuditAction = "role.default_changed"
	AuditGrantAdded         AuditAction = "grant.added"
	AuditGrantRemoved       AuditAction = "grant.removed"
	AuditRoleAssigned       AuditAction = "assignment.created"
	AuditRoleRevoked        AuditAction = "assignment.revoked"
)

// AuditEntry is used to create new audit log rows.
type AuditEntry struct {
	ActorID      string
	Action       AuditAction
	InstanceID   string
	RoleID       string
	RoleName     string
	TargetUserID string
	Model        ModelType
	Field        string
	Level        Level
	IPAddress    string
	UserAgent    string
	RequestID    string
	Metadata     map[string]interface{}
}

// ToModel converts an AuditEntry to a GrantAudit row.
func (e *AuditEntry) ToModel() *GrantAudit {
	row := &GrantAudit{
		ActorID:      e.ActorID,
		Action:       string(e.Action),
		InstanceID:   e.InstanceID,
		RoleID:       e.RoleID,
		RoleName:     e.RoleName,
		TargetUserID: e.TargetUserID,
		Model:        string(e.Model),
		Field:        e.Field,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		RequestID:    e.RequestID,
		Metadata:     e.Metadata,
		Timestamp:    time.Now(),
	}
	if e.Model != "" {
		row.Level = e.Level.String()
	}
	return row
}

// grantEntry is the combined effect of every grant a role holds for one
// model (or one field). Level applies to everyone holding the role;
// OwnerLevel applies when the requester owns the object. OwnerLevel is
// never below Level: an owner keeps at least the base grant.
type grantEntry struct {
	level      Level
	ownerLevel Level
}

// levelFor returns the effective level for an owner or non-owner.
func (g grantEntry) levelFor(owner bool) Level {
	if owner {
		return g.ownerLevel
	}
	return g.level
}

// grantIndex is the read-optimized form of a role's grants, built once
// per registry snapshot so decisions are map lookups.
type grantIndex struct {
	models map[ModelType]grantEntry
	fields map[ModelType]map[string]grantEntry
}

// buildGrantIndex folds a role's grants into an index. Duplicate grants
// for the same target union by taking the highest level.
func buildGrantIndex(grants []*RoleGrant) *grantIndex {
	idx := &grantIndex{
		models: make(map[ModelType]grantEntry),
		fields: make(map[ModelType]map[string]grantEntry),
	}

	merge := func(entry grantEntry, g *RoleGrant) grantEntry {
		if g.OwnerOnly {
			entry.ownerLevel = MaxLevel(entry.ownerLevel, g.Level)
		} else {
			entry.level = MaxLevel(entry.level, g.Level)
			entry.ownerLevel = MaxLevel(entry.ownerLevel, g.Level)
		}
		return entry
	}

	for _, g := range grants {
		if g.IsModelGrant() {
			idx.models[g.Model] = merge(idx.models[g.Model], g)
			continue
		}
		byField := idx.fields[g.Model]
		if byField == nil {
			byField = make(map[string]grantEntry)
			idx.fields[g.Model] = byField
		}
		byField[g.Field] = merge(byField[g.Field], g)
	}

	return idx
}

var emptyGrantIndex = &grantIndex{}

// resolve builds the role's grant index. Called by the registry when a
// snapshot is materialized; idempotent.
func (r *Role) resolve() {
	if r.idx == nil {
		r.idx = buildGrantIndex(r.Grants)
	}
}

// modelEntry returns the combined model-level grant for a model type.
// Roles without a grant for the model get the zero entry (no access).
func (r *Role) modelEntry(model ModelType) grantEntry {
	if r.idx == nil {
		return grantEntry{}
	}
	return r.idx.models[model]
}

// fieldEntry returns the field-level grant for (model, field), if one
// exists.
func (r *Role) fieldEntry(model ModelType, field string) (grantEntry, bool) {
	if r.idx == nil {
		return grantEntry{}, false
	}
	byField, ok := r.idx.fields[model]
	if !ok {
		return grantEntry{}, false
	}
	entry, ok := byField[field]
	return entry, ok
}
