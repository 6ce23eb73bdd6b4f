package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"secdash/internal/alerts"
	"secdash/internal/config"
	"secdash/internal/guard"
	"secdash/internal/model"
	"secdash/internal/query"
	"secdash/internal/session"
	"secdash/internal/traffic"
)

const maxPageSize = 100

type Server struct {
	cfg           *config.Manager
	sessions      *session.Manager
	alerts        *alerts.Store
	traffic       *traffic.Store
	alertSchema   *query.Schema[model.Alert]
	trafficSchema *query.Schema[model.TrafficRecord]
	logger        *slog.Logger
	version       string
}

func Start(ctx context.Context, cfg *config.Manager, sessions *session.Manager, alertStore *alerts.Store, trafficStore *traffic.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:           cfg,
		sessions:      sessions,
		alerts:        alertStore,
		traffic:       trafficStore,
		alertSchema:   query.AlertSchema(),
		trafficSchema: query.TrafficSchema(),
		logger:        logger,
		version:       version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/auth/login", server.handleLogin)
	mux.HandleFunc("/auth/register", server.handleRegister)
	mux.HandleFunc("/auth/logout", server.handleLogout)
	mux.HandleFunc("/auth/session", server.handleSession)
	mux.HandleFunc("/alerts", server.guarded(server.handleAlerts))
	mux.HandleFunc("/alerts/", server.guarded(server.handleAlert))
	mux.HandleFunc("/alerts/statistics", server.guarded(server.handleAlertStatistics))
	mux.HandleFunc("/dashboard/threat-timeline", server.guarded(server.handleThreatTimeline))
	mux.HandleFunc("/traffic", server.guarded(server.handleTraffic))
	mux.HandleFunc("/traffic/statistics", server.guarded(server.handleTrafficStatistics))

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// guarded re-evaluates the route guard on every request so an expired or
// missing session never reaches a data handler.
func (s *Server) guarded(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := s.sessions.Revalidate()
		decision := guard.Decide(current, r.URL.Path, s.cfg.Get().API.LoginPath)
		switch decision.Outcome {
		case guard.OutcomeAdmit:
			next(w, r)
		case guard.OutcomePending:
			writeJSON(w, http.StatusServiceUnavailable, decision)
		default:
			writeJSON(w, http.StatusUnauthorized, decision)
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339Nano),
		"version":     s.version,
		"config_path": s.cfg.Path(),
		"session":     s.sessions.Revalidate().Status,
		"feed": map[string]any{
			"kafka":     cfg.Feed.Kafka.Enabled,
			"synthetic": cfg.Feed.Synthetic.Enabled,
		},
		"storage": map[string]any{
			"enabled": cfg.Storage.Enabled,
			"driver":  cfg.Storage.Driver,
		},
		"working_set": map[string]any{
			"alerts":  s.alerts.Len(),
			"traffic": s.traffic.Len(),
		},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err := s.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, session.ErrBusy):
			writeError(w, http.StatusConflict, "another sign-in is already in progress")
		case errors.Is(err, session.ErrInvalidState):
			writeError(w, http.StatusConflict, "already signed in")
		default:
			writeError(w, http.StatusUnauthorized, s.sessions.Snapshot().LastError)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err := s.sessions.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeError(w, http.StatusBadGateway, s.sessions.Snapshot().LastError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.sessions.Logout()
	writeJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.Revalidate())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	spec := specFromQuery(r, "severity", "source", "isResolved", "startDate", "endDate", "sortBy", "sortOrder")
	pageIndex, pageSize, err := pagingFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, aggregates, err := query.Run(s.alerts.List(), s.alertSchema, spec, pageIndex, pageSize)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":     page.Items,
		"pagination": pagination(page),
		"aggregates": aggregates,
	})
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/alerts/")
	if id, ok := strings.CutSuffix(rest, "/resolve"); ok {
		s.handleResolve(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	alert, ok := s.alerts.Get(rest)
	if !ok {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	resolvedBy := "unknown"
	if user := s.sessions.Snapshot().User; user != nil {
		resolvedBy = user.Username
	}
	alert, err := s.alerts.Resolve(r.Context(), id, resolvedBy, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, alerts.ErrNotFound):
			writeError(w, http.StatusNotFound, "Alert not found")
		case errors.Is(err, alerts.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, "Alert already resolved")
		default:
			writeError(w, http.StatusInternalServerError, "failed to resolve alert")
		}
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleAlertStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	spec := specFromQuery(r, "severity", "source", "isResolved", "startDate", "endDate")
	aggregates, total, err := query.Aggregate(s.alerts.List(), s.alertSchema, spec)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_alerts": total,
		"aggregates":   aggregates,
	})
}

const (
	defaultTimelineDays = 7
	maxTimelineDays     = 30
)

// handleThreatTimeline returns per-day alert counts broken down by severity
// for the last N days, including days with no alerts, oldest first.
func (s *Server) handleThreatTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	days := defaultTimelineDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	if days > maxTimelineDays {
		days = maxTimelineDays
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
	aggregates, _, err := query.Aggregate(s.alerts.List(), s.alertSchema, query.Spec{
		"startDate": start.Format("2006-01-02"),
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	daily := aggregates.Buckets["daily"]

	timeline := make([]map[string]any, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		counts := daily[date]
		high := counts[string(model.SeverityHigh)]
		medium := counts[string(model.SeverityMedium)]
		low := counts[string(model.SeverityLow)]
		timeline = append(timeline, map[string]any{
			"date":   date,
			"high":   high,
			"medium": medium,
			"low":    low,
			"total":  high + medium + low,
		})
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	spec := specFromQuery(r, "sourceIp", "destinationIp", "protocol", "isAnomalous", "startDate", "endDate", "sortBy", "sortOrder")
	pageIndex, pageSize, err := pagingFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, aggregates, err := query.Run(s.traffic.List(), s.trafficSchema, spec, pageIndex, pageSize)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"traffic":    page.Items,
		"pagination": pagination(page),
		"aggregates": aggregates,
	})
}

func (s *Server) handleTrafficStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	spec := specFromQuery(r, "sourceIp", "destinationIp", "protocol", "isAnomalous", "startDate", "endDate")
	aggregates, total, err := query.Aggregate(s.traffic.List(), s.trafficSchema, spec)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_records": total,
		"aggregates":    aggregates,
	})
}

func specFromQuery(r *http.Request, fields ...string) query.Spec {
	spec := query.Spec{}
	for _, field := range fields {
		if v := r.URL.Query().Get(field); v != "" {
			spec[field] = v
		}
	}
	return spec
}

func pagingFromQuery(r *http.Request) (int, int, error) {
	pageIndex := 0
	pageSize := 20
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("page must be an integer")
		}
		pageIndex = n
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("page_size must be an integer")
		}
		pageSize = n
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageIndex, pageSize, nil
}

func pagination[T any](page query.Page[T]) map[string]any {
	pages := 0
	if page.PageSize > 0 {
		pages = (page.TotalMatching + page.PageSize - 1) / page.PageSize
	}
	return map[string]any{
		"total":     page.TotalMatching,
		"pages":     pages,
		"page":      page.PageIndex,
		"page_size": page.PageSize,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "query failed")
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
