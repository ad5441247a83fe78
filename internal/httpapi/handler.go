// Package httpapi exposes the record and signup operations over HTTP. Every
// operation's result passes through the uniform response envelope, and the
// owner for every store call comes from the verified caller identity bound to
// the request context, never from the request itself.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lockcase/backend/internal/domain/identity"
	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/errors"
	"github.com/lockcase/backend/internal/httputil"
	"github.com/lockcase/backend/internal/metrics"
	"github.com/lockcase/backend/internal/services/records"
	"github.com/lockcase/backend/internal/services/signup"
	"github.com/lockcase/backend/pkg/logger"
)

const maxBodyBytes = 64 << 10 // 64 KiB

// Config holds handler-level settings.
type Config struct {
	// HookSecret guards the pre-signup hook endpoint; the identity provider
	// presents it in the X-Hook-Secret header.
	HookSecret string
	// PoolID is the default identity pool searched by the signup gate when
	// the hook payload does not name one.
	PoolID string
	// RequestTimeout bounds each store round trip.
	RequestTimeout time.Duration
}

type handler struct {
	locks  *records.Service
	groups *records.Service
	gate   *signup.Service
	cfg    Config
	log    *logger.Logger
}

// NewHandler returns the router exposing the core REST API.
func NewHandler(locks, groups *records.Service, gate *signup.Service, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	h := &handler{locks: locks, groups: groups, gate: gate, cfg: cfg, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/locks", h.listLocks).Methods(http.MethodGet)
	r.HandleFunc("/locks", h.createLock).Methods(http.MethodPost)
	r.HandleFunc("/groups", h.listGroups).Methods(http.MethodGet)
	r.HandleFunc("/groups", h.createGroup).Methods(http.MethodPost)
	r.HandleFunc("/records", h.listRecords).Methods(http.MethodGet)
	r.HandleFunc("/hooks/pre-signup", h.preSignup).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (h *handler) listLocks(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}

	ctx, cancel := h.boundContext(r)
	defer cancel()

	locks, err := h.locks.ListByOwner(ctx, owner)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string][]record.Record{"locks": locks})
}

func (h *handler) createLock(w http.ResponseWriter, r *http.Request) {
	h.createRecord(w, r, h.locks, record.KindLock)
}

func (h *handler) listGroups(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}

	ctx, cancel := h.boundContext(r)
	defer cancel()

	groups, err := h.groups.ListByOwner(ctx, owner)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string][]record.Record{"groups": groups})
}

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	h.createRecord(w, r, h.groups, record.KindGroup)
}

func (h *handler) createRecord(w http.ResponseWriter, r *http.Request, svc *records.Service, kind record.Kind) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}

	var attrs map[string]string
	if err := decodeJSON(r.Body, &attrs); err != nil {
		httputil.WriteFailure(w, errors.MissingParameter("body"))
		return
	}

	ctx, cancel := h.boundContext(r)
	defer cancel()

	created, err := svc.Create(ctx, owner, attrs)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}
	metrics.RecordCreation(string(kind))
	httputil.WriteSuccess(w, created)
}

// listRecords is the combined endpoint returning both partitions for the
// caller in one round trip.
func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}

	ctx, cancel := h.boundContext(r)
	defer cancel()

	locks, err := h.locks.ListByOwner(ctx, owner)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}
	groups, err := h.groups.ListByOwner(ctx, owner)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string][]record.Record{
		"locks":  locks,
		"groups": groups,
	})
}

// preSignup is invoked by the identity provider before committing a new
// account. A Deny decision is returned as a failure envelope and must be
// treated as a hard rejection of the signup.
func (h *handler) preSignup(w http.ResponseWriter, r *http.Request) {
	if h.cfg.HookSecret != "" {
		presented := r.Header.Get("X-Hook-Secret")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.cfg.HookSecret)) != 1 {
			httputil.WriteFailure(w, errors.Unauthenticated("invalid hook secret"))
			return
		}
	}

	var payload struct {
		Email      string `json:"email"`
		UserPoolID string `json:"userPoolId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteFailure(w, errors.MissingParameter("body"))
		return
	}
	poolID := payload.UserPoolID
	if poolID == "" {
		poolID = h.cfg.PoolID
	}

	ctx, cancel := h.boundContext(r)
	defer cancel()

	decision := h.gate.Register(ctx, payload.Email, poolID)
	metrics.SignupDecision(decision.Allowed)
	if !decision.Allowed {
		h.log.WithField("pool_id", poolID).Warn("signup denied")
		httputil.WriteFailure(w, decision.Reason)
		return
	}
	httputil.WriteSuccess(w, map[string]bool{"allow": true})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// boundContext derives a deadline-bounded context from the request so store
// calls time out instead of hanging, and a client abort cancels the
// outstanding call.
func (h *handler) boundContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	return json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(dst)
}
