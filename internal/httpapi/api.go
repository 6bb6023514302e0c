// Package httpapi is the HTTP surface of the permissions manager. Handlers
// decode, call a service, and map sentinel errors to status codes; all policy
// lives in the service layer.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/audit"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/bindtoken"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/certs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/obs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/secrets"
)

// timeNow is swapped out by document tests that need a fixed clock.
var timeNow = time.Now

// ReadyProbe reports backend readiness (DB ping when one is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API wires services to routes.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	store        dds.Store
	gate         *authz.Gate
	grants       *dds.GrantService
	actions      *dds.ActionService
	applications *dds.ApplicationService
	permissions  *dds.PermissionService
	tokens       *bindtoken.Service
	signer       *certs.Signer
	secretStore  *secrets.FileStore
	userTokens   *TokenAuthority
}

// Deps carries the collaborators the API needs.
type Deps struct {
	Store        dds.Store
	Gate         *authz.Gate
	Grants       *dds.GrantService
	Actions      *dds.ActionService
	Applications *dds.ApplicationService
	Permissions  *dds.PermissionService
	Tokens       *bindtoken.Service
	Signer       *certs.Signer
	Secrets      *secrets.FileStore
	UserTokens   *TokenAuthority
	ReadyProbe   ReadyProbe
	Version      string
}

func New(deps Deps) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   deps.ReadyProbe,
		version:      deps.Version,
		store:        deps.Store,
		gate:         deps.Gate,
		grants:       deps.Grants,
		actions:      deps.Actions,
		applications: deps.Applications,
		permissions:  deps.Permissions,
		tokens:       deps.Tokens,
		signer:       deps.Signer,
		secretStore:  deps.Secrets,
		userTokens:   deps.UserTokens,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/token", a.handleAuthToken)

	a.mux.HandleFunc("/api/groups", a.handleGroups)
	a.mux.HandleFunc("/api/groups/", a.handleGroupScoped)
	a.mux.HandleFunc("/api/topics", a.handleTopics)
	a.mux.HandleFunc("/api/topics/", a.handleTopicScoped)
	a.mux.HandleFunc("/api/topic_sets", a.handleTopicSets)
	a.mux.HandleFunc("/api/topic_sets/", a.handleTopicSetScoped)
	a.mux.HandleFunc("/api/durations", a.handleDurations)
	a.mux.HandleFunc("/api/durations/", a.handleDurationScoped)
	a.mux.HandleFunc("/api/intervals", a.handleIntervals)
	a.mux.HandleFunc("/api/intervals/", a.handleIntervalScoped)

	a.mux.HandleFunc("/api/grants", a.handleGrants)
	a.mux.HandleFunc("/api/grants/", a.handleGrantScoped)
	a.mux.HandleFunc("/api/actions", a.handleActions)
	a.mux.HandleFunc("/api/actions/", a.handleActionScoped)

	a.mux.HandleFunc("/api/applications", a.handleApplications)
	a.mux.HandleFunc("/api/applications/", a.handleApplicationScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "dds-permissions-manager",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// handleServiceError maps model sentinels to status codes. Unauthorized is
// 403: the caller is known, the capability is missing. Missing or bad
// credentials are handled earlier by the authn middleware.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dds.ErrInvalidInput),
		errors.Is(err, dds.ErrInvalidNonce),
		errors.Is(err, dds.ErrInvalidAssociation),
		errors.Is(err, bindtoken.ErrTokenParse):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, bindtoken.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, authz.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, dds.ErrNotFound),
		errors.Is(err, certs.ErrCANotProvisioned):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, dds.ErrAlreadyExists),
		errors.Is(err, dds.ErrDurationInUse):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}
