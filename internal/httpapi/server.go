package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/service"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Logger       zerolog.Logger
	Addr         string
	Registration *service.RegistrationManager
	Matcher      *service.EventMatcher
	Poller       *service.StatusPoller
	Directory    *service.DirectorySynchronizer
	Health       HealthCheck // optional
}

type Server struct {
	httpServer   *http.Server
	logger       zerolog.Logger
	mux          *http.ServeMux
	validate     *validator.Validate
	registration *service.RegistrationManager
	matcher      *service.EventMatcher
	poller       *service.StatusPoller
	directory    *service.DirectorySynchronizer
	health       HealthCheck
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:       d.Logger,
		mux:          mux,
		validate:     validator.New(),
		registration: d.Registration,
		matcher:      d.Matcher,
		poller:       d.Poller,
		directory:    d.Directory,
		health:       d.Health,
	}

	mux.HandleFunc("POST /v1/fingerprint/registrations", s.handleStartRegistration)
	mux.HandleFunc("GET /v1/fingerprint/registrations/status", s.handleCheckRegistration)
	mux.HandleFunc("DELETE /v1/fingerprint/registrations/{user_id}", s.handleUnregister)
	mux.HandleFunc("POST /v1/scanner/scans", s.handleScan)
	mux.HandleFunc("GET /v1/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := requestIDMiddleware(loggingMiddleware(d.Logger, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStartRegistration(w http.ResponseWriter, r *http.Request) {
	var req types.StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		code, msg := validationError(err)
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	resp, err := s.registration.Start(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "start_registration", err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleCheckRegistration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.poller.Check(r.Context(), q.Get("user_id"), q.Get("fingerprint_id"))
	if err != nil {
		s.writeServiceError(w, r, "check_registration", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registration.Unregister(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeServiceError(w, r, "unregister_fingerprint", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleScan acknowledges every scan with 200. The scanner cannot act on a
// failure, so match outcomes and errors only reach the logs and audit table.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	binary := wantsProtobuf(r)

	ack := types.ScanAck{OK: true}
	ev, err := decodeScan(w, r, binary)
	if err != nil {
		ack.OK = false
		zerolog.Ctx(r.Context()).Warn().Err(err).Bool("protobuf", binary).Msg("undecodable scan payload")
	} else if _, err := s.matcher.OnScan(r.Context(), ev); err != nil {
		// Already logged by the matcher with its outcome.
		ack.OK = !errors.Is(err, service.ErrInvalidFingerprintID)
	}
	ack.ServerTime = time.Now().UTC().Format(time.RFC3339Nano)

	writeScanAck(w, binary, ack)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.directory.ListAccounts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "fetch_accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, types.AccountsResponse{OK: true, Accounts: accounts})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var conflict *service.FingerprintAlreadyAssignedError
	switch {
	case errors.Is(err, service.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "invalid_user_id", err.Error())
	case errors.Is(err, service.ErrInvalidFingerprintID):
		writeError(w, http.StatusBadRequest, "invalid_fingerprint_id", err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "fingerprint_already_assigned", conflict.Error())
	case errors.Is(err, service.ErrFingerprintPending):
		writeError(w, http.StatusConflict, "fingerprint_pending", err.Error())
	case errors.Is(err, service.ErrIdentityNotFound):
		writeError(w, http.StatusNotFound, "identity_not_found", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

func validationError(err error) (code, msg string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		switch f.Field() {
		case "UserID":
			return "invalid_user_id", "user_id is " + describeTag(f.Tag())
		case "FingerprintID":
			return "invalid_fingerprint_id", "fingerprint_id is " + describeTag(f.Tag())
		}
	}
	return "invalid_request", err.Error()
}

func describeTag(tag string) string {
	switch strings.ToLower(tag) {
	case "required":
		return "required"
	case "max":
		return "too long"
	}
	return "invalid"
}
