package permkit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeResolver resolves contexts straight from a registry, standing in
// for the Service in middleware tests.
type fakeResolver struct {
	registry *Registry
}

func (f *fakeResolver) GetContext(ctx context.Context, userID, instanceID string) (*PermissionContext, error) {
	return ResolveContext(ctx, f.registry, userID, instanceID)
}

func (f *fakeResolver) GetChecker(ctx context.Context, userID, instanceID string) (*Checker, error) {
	pc, err := f.GetContext(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	return NewChecker(pc), nil
}

func newMiddlewareFixture(t *testing.T) (*Middleware, *Instance) {
	t.Helper()
	loader := newMemLoader()
	instance := testInstance()
	editor := testRole(instance.ID, "editor",
		modelGrant(ModelPlot, LevelWrite),
		fieldGrant(ModelPlot, "geometry", LevelRead),
	)
	viewer := testRole(instance.ID, "viewer", modelGrant(ModelPlot, LevelRead))
	viewer.IsDefault = true
	instance.DefaultRoleID = viewer.ID
	loader.addInstance(instance)
	loader.addRole(editor)
	loader.addRole(viewer)
	loader.assign("editor-user", instance.ID, editor.ID)

	resolver := &fakeResolver{registry: NewRegistry(loader)}
	mw := NewMiddleware(resolver, WithUserIDExtractor(func(r *http.Request) string {
		return r.Header.Get("X-User-ID")
	}))
	return mw, instance
}

func TestMiddlewareResolveContext(t *testing.T) {
	mw, instance := newMiddlewareFixture(t)

	var captured *Checker
	handler := mw.ResolveContext(InstanceFromHeader("X-Instance-ID"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = CheckerFrom(r.Context())
			assert.NotEmpty(t, GetRequestID(r.Context()))
			assert.Equal(t, instance.ID, GetInstanceID(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/plots", nil)
	req.Header.Set("X-Instance-ID", instance.ID)
	req.Header.Set("X-User-ID", "editor-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, captured)
	assert.Equal(t, "editor-user", captured.Context().UserID)
	assert.Equal(t, "editor", captured.Context().Role.Name)
}

func TestMiddlewareResolveContextKeepsRequestID(t *testing.T) {
	mw, instance := newMiddlewareFixture(t)

	handler := mw.ResolveContext(StaticInstance(instance.ID))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "req-42", GetRequestID(r.Context()))
		}))

	req := httptest.NewRequest(http.MethodGet, "/plots", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestMiddlewareUnknownInstanceIs404(t *testing.T) {
	mw, _ := newMiddlewareFixture(t)

	handler := mw.ResolveContext(StaticInstance("missing"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddlewareRequirePermission(t *testing.T) {
	mw, instance := newMiddlewareFixture(t)

	var handlerRan bool
	handler := mw.ResolveContext(StaticInstance(instance.ID))(
		mw.RequirePermission(ActionUpdate, ModelPlot)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerRan = true
			})))

	// Editor passes.
	req := httptest.NewRequest(http.MethodPut, "/plots/1", nil)
	req.Header.Set("X-User-ID", "editor-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.True(t, handlerRan)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Anonymous falls back to the viewer default and is denied.
	handlerRan = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/plots/1", nil))
	assert.False(t, handlerRan)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var denial Denial
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&denial))
	assert.Equal(t, ReasonInsufficientModelGrant, denial.Reason)
	assert.Equal(t, ModelPlot, denial.Model)
	assert.Equal(t, instance.ID, denial.InstanceID)
}

func TestMiddlewareRequirePermissionCreate(t *testing.T) {
	mw, instance := newMiddlewareFixture(t)

	handler := mw.ResolveContext(StaticInstance(instance.ID))(
		mw.RequirePermission(ActionCreate, ModelPlot)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodPost, "/plots", nil)
	req.Header.Set("X-User-ID", "editor-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRequirePermissionWithoutResolve(t *testing.T) {
	mw, _ := newMiddlewareFixture(t)

	handler := mw.RequirePermission(ActionRead, ModelPlot)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddlewareRequireFieldWrite(t *testing.T) {
	mw, instance := newMiddlewareFixture(t)

	handler := mw.ResolveContext(StaticInstance(instance.ID))(
		mw.RequireFieldWrite(ModelPlot, "geometry")(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	// The editor's geometry grant is read-only.
	req := httptest.NewRequest(http.MethodPut, "/plots/1/geometry", nil)
	req.Header.Set("X-User-ID", "editor-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var denial Denial
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&denial))
	assert.Equal(t, ReasonInsufficientFieldGrant, denial.Reason)
	assert.Equal(t, "geometry", denial.Field)

	// Other fields inherit the model write grant.
	open := mw.ResolveContext(StaticInstance(instance.ID))(
		mw.RequireFieldWrite(ModelPlot, "address")(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	req = httptest.NewRequest(http.MethodPut, "/plots/1/address", nil)
	req.Header.Set("X-User-ID", "editor-user")
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareCustomDenialHandler(t *testing.T) {
	loader := newMemLoader()
	instance := testInstance()
	viewer := testRole(instance.ID, "viewer", modelGrant(ModelPlot, LevelRead))
	viewer.IsDefault = true
	loader.addInstance(instance)
	loader.addRole(viewer)

	var seen Denial
	mw := NewMiddleware(&fakeResolver{registry: NewRegistry(loader)},
		WithDenialHandler(func(w http.ResponseWriter, r *http.Request, d Denial) {
			seen = d
			w.WriteHeader(http.StatusTeapot)
		}))

	handler := mw.ResolveContext(StaticInstance(instance.ID))(
		mw.RequirePermission(ActionDelete, ModelPlot)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/plots/1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, ReasonInsufficientModelGrant, seen.Reason)
}
