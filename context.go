package permkit

import (
	"context"
)

// PermissionContext is the resolved (user, instance, role) triple every
// permission check runs against. It is computed once per logical
// operation, passed explicitly to each check, and discarded afterwards:
// grants can change between operations, so contexts are never cached.
type PermissionContext struct {
	// UserID identifies the requesting user. Empty means anonymous.
	UserID string

	// Instance is the tenant the operation runs in.
	Instance *Instance

	// Role is the user's resolved role within Instance. Never nil: users
	// without an assignment get the instance default, and instances
	// without a default get a zero-grant role.
	Role *Role
}

// ResolveContext builds a PermissionContext for one operation. It is a
// pure function of (user, instance) through the registry and performs no
// side effects. Returns an error wrapping ErrInstanceNotFound when the
// instance does not exist.
func ResolveContext(ctx context.Context, registry *Registry, userID, instanceID string) (*PermissionContext, error) {
	instance, err := registry.InstanceFor(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	role, err := registry.RoleFor(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	return &PermissionContext{
		UserID:   userID,
		Instance: instance,
		Role:     role,
	}, nil
}

// Anonymous reports whether the context belongs to an unauthenticated
// caller.
func (pc *PermissionContext) Anonymous() bool {
	return pc.UserID == ""
}

// Equal reports whether two contexts resolve to the same user, instance
// and role. Used by tests to assert resolution equivalence.
func (pc *PermissionContext) Equal(other *PermissionContext) bool {
	if pc == nil || other == nil {
		return pc == other
	}
	return pc.UserID == other.UserID &&
		pc.Instance.ID == other.Instance.ID &&
		pc.Role == other.Role
}

// ownsObject reports whether the context's user owns the object. Always
// false for anonymous callers and for models without an owner.
func (pc *PermissionContext) ownsObject(ref objectRef) bool {
	return ref.hasOwner && pc.UserID != "" && ref.ownerID == pc.UserID
}

// Context keys for permkit values.
type contextKey string

const (
	contextKeyUserID     contextKey = "permkit:user_id"
	contextKeyInstanceID contextKey = "permkit:instance_id"
	contextKeyIPAddress  contextKey = "permkit:ip_address"
	contextKeyUserAgent  contextKey = "permkit:user_agent"
	contextKeyRequestID  contextKey = "permkit:request_id"
	contextKeyPermCtx    contextKey = "permkit:permission_context"
	contextKeyChecker    contextKey = "permkit:checker"
)

// WithUserID adds a user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID retrieves the user ID from context. Returns empty string
// (anonymous) if not set.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithInstanceID adds the tenant instance ID to the context.
func WithInstanceID(ctx context.Context, instanceID string) context.Context {
	return context.WithValue(ctx, contextKeyInstanceID, instanceID)
}

// GetInstanceID retrieves the instance ID from context.
func GetInstanceID(ctx context.Context) string {
	if v := ctx.Value(contextKeyInstanceID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithIPAddress adds the client IP address to the context (for audit).
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress retrieves the IP address from context.
func GetIPAddress(ctx context.Context) string {
	if v := ctx.Value(contextKeyIPAddress); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithUserAgent adds the user agent to the context (for audit).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent retrieves the user agent from context.
func GetUserAgent(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserAgent); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context (for audit and
// correlation).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithPermissionContext stores a resolved PermissionContext. This is set
// by middleware once per request and read by handlers.
func WithPermissionContext(ctx context.Context, pc *PermissionContext) context.Context {
	return context.WithValue(ctx, contextKeyPermCtx, pc)
}

// PermissionContextFrom retrieves the resolved PermissionContext.
// Returns nil if not set.
func PermissionContextFrom(ctx context.Context) *PermissionContext {
	if v := ctx.Value(contextKeyPermCtx); v != nil {
		if pc, ok := v.(*PermissionContext); ok {
			return pc
		}
	}
	return nil
}

// WithChecker stores a Checker in the context. Set by middleware once
// per request.
func WithChecker(ctx context.Context, checker *Checker) context.Context {
	return context.WithValue(ctx, contextKeyChecker, checker)
}

// CheckerFrom retrieves the Checker from context. Returns nil if not
// set.
func CheckerFrom(ctx context.Context) *Checker {
	if v := ctx.Value(contextKeyChecker); v != nil {
		if c, ok := v.(*Checker); ok {
			return c
		}
	}
	return nil
}

// AuditContext holds all audit-related information from context.
type AuditContext struct {
	ActorID   string
	IPAddress string
	UserAgent string
	RequestID string
}

// GetAuditContext extracts all audit information from context. The actor
// is the context user.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		ActorID:   GetUserID(ctx),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}
