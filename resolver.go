package permkit

// Field-level permission resolution.
//
// A role's field grant never exceeds its model grant: the resolved value
// is clamped to the model level, so a contradictory stored grant (which
// the write path rejects anyway) still resolves safely. A field with no
// narrower grant inherits the model level; a field name the model does
// not have resolves to none.

// ModelPermission returns the effective model-level permission the
// context holds for a model type, ignoring ownership.
func ModelPermission(pc *PermissionContext, model ModelType) Level {
	if !model.Valid() {
		return LevelNone
	}
	return pc.Role.modelEntry(model).levelFor(false)
}

// FieldPermission returns the effective permission the context holds for
// one field of a model. Ownership escalation does not apply here: field
// resolution has no object in hand. Use Checker.DecideField when
// checking a write against a concrete object.
func FieldPermission(pc *PermissionContext, model ModelType, field string) Level {
	return fieldLevel(pc.Role, model, field, false)
}

// fieldLevel computes the clamped field level, optionally with the
// owner-escalated grants in effect.
func fieldLevel(role *Role, model ModelType, field string, owner bool) Level {
	if !model.Valid() || !KnownField(model, field) {
		return LevelNone
	}

	modelLevel := role.modelEntry(model).levelFor(owner)
	entry, ok := role.fieldEntry(model, field)
	if !ok {
		// No narrower grant: the field inherits the model level.
		return modelLevel
	}
	return entry.levelFor(owner).Clamp(modelLevel)
}

// VisibleFields returns the fields of a model the context may render, in
// the model's declared field order. Drives read-side form and detail
// rendering: a field the user cannot read is omitted entirely.
func VisibleFields(pc *PermissionContext, model ModelType) []string {
	return fieldsAtLeast(pc, model, LevelRead)
}

// WritableFields returns the fields of a model the context may edit.
// Drives edit forms that only show editable inputs.
func WritableFields(pc *PermissionContext, model ModelType) []string {
	return fieldsAtLeast(pc, model, LevelWrite)
}

func fieldsAtLeast(pc *PermissionContext, model ModelType, required Level) []string {
	var fields []string
	for _, field := range ModelFields(model) {
		if FieldPermission(pc, model, field).AtLeast(required) {
			fields = append(fields, field)
		}
	}
	return fields
}
