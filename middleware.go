package permkit

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Middleware provides HTTP middleware that resolves a permission context
// once per request and enforces model-level permissions at the route
// boundary. Handlers fetch the resolved Checker from the request context
// for every further check in the same request.
type Middleware struct {
	service       ContextResolver
	getUserID     func(*http.Request) string
	denialHandler func(http.ResponseWriter, *http.Request, Denial)
	errorHandler  func(http.ResponseWriter, *http.Request, error)
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := permkit.NewMiddleware(service,
//	    permkit.WithUserIDExtractor(func(r *http.Request) string {
//	        return r.Context().Value("user_id").(string)
//	    }),
//	)
func NewMiddleware(service ContextResolver, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:       service,
		getUserID:     defaultGetUserID,
		denialHandler: defaultDenialHandler,
		errorHandler:  defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithUserIDExtractor sets a custom function to extract the user ID from
// a request. An empty return value means anonymous.
func WithUserIDExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getUserID = fn
	}
}

// WithDenialHandler sets a custom renderer for denied requests.
func WithDenialHandler(fn func(http.ResponseWriter, *http.Request, Denial)) MiddlewareOption {
	return func(m *Middleware) {
		m.denialHandler = fn
	}
}

// WithErrorHandler sets a custom handler for resolution errors.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

func defaultGetUserID(r *http.Request) string {
	return GetUserID(r.Context())
}

func defaultDenialHandler(w http.ResponseWriter, r *http.Request, denial Denial) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(denial.HTTPStatus())
	_ = json.NewEncoder(w).Encode(denial)
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if IsInstanceNotFound(err) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// InstanceExtractor extracts the tenant instance ID from an HTTP request.
type InstanceExtractor func(*http.Request) string

// InstanceFromParam reads the instance ID from a URL path parameter.
//
// Example:
//
//	// For route /maps/{instanceID}/plots
//	mw.ResolveContext(permkit.InstanceFromParam("instanceID"))
func InstanceFromParam(paramName string) InstanceExtractor {
	return func(r *http.Request) string {
		return r.PathValue(paramName)
	}
}

// InstanceFromHeader reads the instance ID from a request header.
func InstanceFromHeader(headerName string) InstanceExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// StaticInstance always returns the same instance ID. Useful for
// single-tenant deployments.
func StaticInstance(instanceID string) InstanceExtractor {
	return func(r *http.Request) string {
		return instanceID
	}
}

// ResolveContext creates middleware that resolves the permission context
// once and stores a Checker plus audit metadata in the request context.
// Requests for unknown instances are answered with 404 before any
// handler runs.
func (m *Middleware) ResolveContext(extractor InstanceExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx = WithRequestID(ctx, requestID)
			ctx = WithIPAddress(ctx, r.RemoteAddr)
			ctx = WithUserAgent(ctx, r.UserAgent())

			userID := m.getUserID(r)
			ctx = WithUserID(ctx, userID)

			instanceID := extractor(r)
			ctx = WithInstanceID(ctx, instanceID)

			checker, err := m.service.GetChecker(ctx, userID, instanceID)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			ctx = WithChecker(ctx, checker)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission creates middleware that requires a model-level
// permission for an action. Run it after ResolveContext.
//
// Example:
//
//	router.Handle("/maps/{instanceID}/trees",
//	    mw.ResolveContext(permkit.InstanceFromParam("instanceID"))(
//	        mw.RequirePermission(permkit.ActionCreate, permkit.ModelTree)(createTreeHandler)))
func (m *Middleware) RequirePermission(action Action, model ModelType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checker := CheckerFrom(r.Context())
			if checker == nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			pc := checker.Context()
			var d Decision
			if action == ActionCreate {
				d = DecideCreate(pc, model)
			} else {
				// No object in hand at the route boundary; gate on the
				// model-level grant. Handlers re-check per object.
				if ModelPermission(pc, model).AtLeast(action.Requires()) {
					d = allowed(action, model)
				} else {
					d = denied(action, model, ReasonInsufficientModelGrant)
				}
			}

			if !d.Allowed {
				m.denialHandler(w, r, ReportDenial(d, pc))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireFieldWrite creates middleware that requires write permission on
// a specific field. Run it after ResolveContext.
func (m *Middleware) RequireFieldWrite(model ModelType, field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checker := CheckerFrom(r.Context())
			if checker == nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			pc := checker.Context()
			if !FieldPermission(pc, model, field).AtLeast(LevelWrite) {
				d := denied(ActionUpdate, model, ReasonInsufficientFieldGrant)
				d.Field = field
				m.denialHandler(w, r, ReportDenial(d, pc))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
