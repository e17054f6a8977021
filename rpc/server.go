// Package rpc exposes the journal, signature request and account operations
// over HTTP JSON, and provides a client for them.
package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"docsign/account"
	"docsign/auth"
	"docsign/journal"
	"docsign/metrics"
	"docsign/signature"
)

const requestIDHeader = "X-Request-Id"

type JournalService interface {
	Options(ctx context.Context, recordID, objectAPIName string) ([]journal.Option, error)
}

type SignatureService interface {
	Create(ctx context.Context, in signature.Input) (signature.CreateResult, error)
	ListForDocument(ctx context.Context, documentID string) ([]signature.Record, error)
	Get(ctx context.Context, id string) (signature.Record, error)
	Cancel(ctx context.Context, id string) (signature.CancelResult, error)
	Transition(ctx context.Context, params signature.TransitionParams) error
}

type AccountService interface {
	Get(ctx context.Context, id string) (account.Account, error)
}

type Authenticator interface {
	Login(ctx context.Context, req auth.TokenRequest) (auth.TokenResult, error)
	VerifyToken(token string) (auth.Principal, error)
}

// Server routes RPC calls to the backend services.
type Server struct {
	journals   JournalService
	signatures SignatureService
	accounts   AccountService
	auth       Authenticator
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func NewServer(journals JournalService, signatures SignatureService, accounts AccountService, authn Authenticator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		journals:   journals,
		signatures: signatures,
		accounts:   accounts,
		auth:       authn,
		logger:     logger,
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (s *Server) WithMetrics(c *metrics.Collector) *Server {
	s.metrics = c
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/auth/token", s.handleToken)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.requireRole(auth.RoleClient))
		api.Get("/journal-options", s.handleJournalOptions)
		api.Get("/documents/{id}/signature-requests", s.handleListForDocument)
		api.Post("/signature-requests", s.handleCreate)
		api.Get("/signature-requests/{id}", s.handleGet)
		api.Post("/signature-requests/{id}/cancel", s.handleCancel)
		api.Get("/accounts/{id}", s.handleAccount)
	})

	r.Route("/webhooks", func(wh chi.Router) {
		wh.Use(s.requireRole(auth.RoleProvider))
		wh.Post("/signature-status", s.handleStatusWebhook)
	})

	return r
}

type principalKey struct{}

// PrincipalFrom returns the authenticated caller stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := parseBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}
			p, err := s.auth.VerifyToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}
			if p.Role != role {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "role not permitted")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

func parseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req auth.TokenRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	res, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid client credentials")
			return
		}
		s.internalError(w, r, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: res.Token,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleJournalOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := s.journals.Options(r.Context(), q.Get("recordId"), q.Get("objectApiName"))
	if err != nil {
		s.serviceError(w, r, "journal options", err)
		return
	}
	if opts == nil {
		opts = []journal.Option{}
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleListForDocument(w http.ResponseWriter, r *http.Request) {
	records, err := s.signatures.ListForDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, r, "list signature requests", err)
		return
	}
	if records == nil {
		records = []signature.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.signatures.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, r, "get signature request", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in signature.Input
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	res, err := s.signatures.Create(r.Context(), in)
	if err != nil {
		s.serviceError(w, r, "create signature request", err)
		return
	}
	if res.Success && s.metrics != nil {
		s.metrics.RequestCreated()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	res, err := s.signatures.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, r, "cancel signature request", err)
		return
	}
	if res.Success && s.metrics != nil {
		s.metrics.RequestCancelled()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, r, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// statusWebhook is posted by the e-sign provider when a request changes state.
type statusWebhook struct {
	SignatureRequestID string         `json:"signatureRequestId"`
	Status             string         `json:"status"`
	Data               map[string]any `json:"data,omitempty"`
}

func (s *Server) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	var body statusWebhook
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	err := s.signatures.Transition(r.Context(), signature.TransitionParams{
		RequestID:  body.SignatureRequestID,
		NextStatus: signature.Status(body.Status),
		Payload:    body.Data,
	})
	if err != nil {
		s.serviceError(w, r, "apply status webhook", err)
		return
	}
	if s.metrics != nil {
		s.metrics.StatusTransition(body.Status)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, signature.ErrNotFound), errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, signature.ErrInvalidInput),
		errors.Is(err, signature.ErrMissingDocument),
		errors.Is(err, signature.ErrMissingRequestID),
		errors.Is(err, journal.ErrMissingRecord),
		errors.Is(err, journal.ErrUnsupportedObject):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, signature.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	default:
		s.internalError(w, r, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op,
		zap.String("request_id", w.Header().Get(requestIDHeader)),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}
