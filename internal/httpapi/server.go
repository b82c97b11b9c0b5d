package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const (
	bodyNoUID    = "ERROR: No UID provided"
	bodyInternal = "ERROR: Internal server error"
)

type Dependencies struct {
	Logger        *zap.Logger
	Addr          string
	Engine        *service.Engine
	StatusService *service.StatusService

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	CORSOrigins []string
	// RateLimit is requests per minute per client IP on /nfc; 0 disables.
	RateLimit int
}

type Server struct {
	httpServer    *http.Server
	logger        *zap.Logger
	router        chi.Router
	engine        *service.Engine
	statusService *service.StatusService
}

func NewServer(d Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		logger:        d.Logger,
		router:        r,
		engine:        d.Engine,
		statusService: d.StatusService,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if d.RateLimit > 0 {
			r.Use(httprate.LimitByIP(d.RateLimit, time.Minute))
		}
		r.Post("/nfc", s.handleScan)
	})

	r.Get("/", s.handleDashboard)
	r.Get("/template", s.handleTemplate)

	r.Route("/api", func(r chi.Router) {
		r.Use(corsMiddleware(d.CORSOrigins))
		r.Get("/users", s.handleListUsers)
		r.Delete("/users/{id}", s.handleDeleteUser)
		r.Get("/logs", s.handleLogs)
		r.Get("/status", s.handleStatus)
		r.Post("/registration", s.handleToggleRegistration)
		r.Get("/master_key", s.handleMasterKey)
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
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

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	protobuf := isProtobuf(r)
	var uid string
	if protobuf {
		var msg wrapperspb.StringValue
		if err := readProto(r, &msg); err != nil {
			writeText(w, http.StatusBadRequest, bodyNoUID)
			return
		}
		uid = scanTagFromProto(&msg)
	} else {
		uid = r.PostFormValue("uid")
	}

	if err := service.ValidateTag(uid); err != nil {
		writeText(w, http.StatusBadRequest, bodyNoUID)
		return
	}

	out, err := s.engine.ProcessScan(r.Context(), uid)
	switch {
	case errors.Is(err, service.ErrJournal):
		s.logger.Error("scan journal failed", zap.String("tag", uid), zap.Error(err))
	case err != nil:
		s.logger.Error("scan failed", zap.String("tag", uid), zap.Error(err))
		writeText(w, http.StatusInternalServerError, bodyInternal)
		return
	}

	s.logger.Info("scan processed",
		zap.String("tag", uid),
		zap.String("response", out.Response),
		zap.String("summary", out.Summary),
		zap.String("source", "http"))

	if protobuf {
		writeProto(w, http.StatusOK, scanResponseToProto(out))
		return
	}
	writeText(w, http.StatusOK, out.Response)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.statusService.Users(r.Context())
	if err != nil {
		s.logger.Error("list users failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	if users == nil {
		users = []types.RegisteredUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	err = s.statusService.DeleteUser(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		s.logger.Error("delete user failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	s.logger.Info("user deleted", zap.Int64("id", id))
	writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "User deleted"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	// Unparseable limits fall back to the default.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.statusService.RecentEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("read logs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read logs")
		return
	}
	if events == nil {
		events = []types.AccessEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.statusService.Status(r.Context())
	if err != nil {
		s.logger.Error("read status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type registrationResponse struct {
	Status           string `json:"status"`
	RegistrationMode bool   `json:"registration_mode"`
	Message          string `json:"message"`
}

func (s *Server) handleToggleRegistration(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ToggleRegistration(r.Context())
	if err != nil {
		// Only the journal can fail here; the mode has already flipped.
		s.logger.Error("registration toggle journal failed", zap.Error(err))
	}

	mode := service.ModeInactive
	if out.RegistrationMode {
		mode = service.ModeActive
	}
	s.logger.Info("registration mode toggled", zap.String("mode", mode), zap.String("source", "http"))
	writeJSON(w, http.StatusOK, registrationResponse{
		Status:           "success",
		RegistrationMode: out.RegistrationMode,
		Message:          "Registration mode " + mode,
	})
}

func (s *Server) handleMasterKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"master_key": s.engine.MasterKey()})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{}

	if st, err := s.statusService.Status(r.Context()); err == nil {
		data.Status = &st
	} else {
		s.logger.Warn("dashboard status unavailable", zap.Error(err))
	}
	if logs, err := s.statusService.RecentEvents(r.Context(), dashboardLogCount); err == nil {
		data.Logs = logs
	} else {
		s.logger.Warn("dashboard logs unavailable", zap.Error(err))
	}

	s.renderDashboard(w, data)
}

func (s *Server) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	s.renderDashboard(w, dashboardData{})
}

func (s *Server) renderDashboard(w http.ResponseWriter, data dashboardData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("dashboard render failed", zap.Error(err))
	}
}
