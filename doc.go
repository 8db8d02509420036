// Package permkit is the authorization engine for multi-tenant map-data
// applications: many independent tree maps ("instances"), each with its
// own users, roles and geolocated features (plots, trees, photos).
//
// Whether an operation is allowed is never a flat flag on a user. It is
// decided by walking the relationships between the user, their role
// assignment in the instance, the object's instance membership, the
// object's owner, and the role's model- and field-level grants. permkit
// centralizes that walk in one decision surface so the answer is the
// same everywhere it is asked.
//
// # Core Concepts
//
// Instance: a tenant boundary. Every role and every domain object
// belongs to exactly one instance; nothing is ever evaluated across
// that boundary.
//
// Role: a named bundle of grants scoped to one instance. An instance
// designates one role as its default, applied to users with no explicit
// assignment.
//
// RoleGrant: one permission level (none, read, write) on a model type,
// or on a single field of a model. A field grant never exceeds its
// model grant; the resolver clamps to the minimum of the two. Grants
// marked OwnerOnly apply only to objects the requesting user owns
// ("ownership escalation").
//
// Assignment: binds a user to exactly one role within one instance. The
// same user may hold different roles in different instances.
//
// PermissionContext: the resolved (user, instance, role) triple,
// computed once per request and passed explicitly to every check.
//
// # Key Properties
//
//   - Cross-instance access is unconditionally denied; no grant can
//     override tenant isolation
//   - Field permission is clamped to model permission (min of the two)
//   - Denial is data, not an error: decisions carry a reason code
//     (cross-instance, insufficient-model-grant, insufficient-field-grant,
//     not-owner, feature-disabled) for accurate user-facing messages
//   - Decision functions are pure and in-memory; all storage access is
//     confined to the Service and the registry's snapshot loads
//   - Registry snapshots are swapped atomically, so concurrent readers
//     never observe a partially-updated role
//
// # Basic Usage
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := permkit.NewService(db)
//
//	// Administrative setup.
//	instance, _ := service.CreateInstance(ctx, "Greenville Trees", "greenville",
//	    permkit.FeaturePhotos)
//	editor, _ := service.CreateRole(ctx, instance.ID, "editor")
//	_ = service.AddGrant(ctx, editor.ID, permkit.RoleGrant{
//	    Model: permkit.ModelTree, Level: permkit.LevelWrite,
//	})
//	_ = service.Assign(ctx, userID, instance.ID, editor.ID)
//
//	// Per request: resolve once, check everywhere.
//	pc, err := service.GetContext(ctx, userID, instance.ID)
//	if err != nil {
//	    // unknown instance -> 404
//	}
//	d := permkit.Decide(pc, permkit.ActionUpdate, tree)
//	if !d.Allowed {
//	    denial := permkit.ReportDenial(d, pc)
//	    // render 403 from denial
//	}
//
//	// Field-driven form rendering.
//	for _, field := range permkit.WritableFields(pc, permkit.ModelTree) {
//	    // render an editable input for field
//	}
package permkit
