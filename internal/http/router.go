package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/service/auth"
	"github.com/skybtp/crewboard/internal/service/events"
	"github.com/skybtp/crewboard/internal/service/team"
	"github.com/skybtp/crewboard/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	team      team.Service
	events    events.Service
	upgrader  websocket.Upgrader
	validate  *validator.Validate
	limiter   RateLimiter
	heartbeat time.Duration
	dbHealth  func(context.Context) error

	trustedProxies []netip.Prefix

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	rosterMutations    *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitInvite    = 30
	rateLimitRead      = 120
	rateLimitWrite     = 60
	rateLimitStream    = 30
	healthCheckTimeout = 2 * time.Second
	defaultHeartbeat   = 25 * time.Second
	sseEventName       = "roster"
)

// Roster mutation operation labels.
const (
	opCreateLeader = "create_leader"
	opAssign       = "assign"
	opReassign     = "reassign"
	opUnassign     = "unassign"
	opDeleteLeader = "delete_leader"
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, teamSvc team.Service, eventSvc events.Service, limiter RateLimiter, heartbeat time.Duration, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		auth:   authSvc,
		team:   teamSvc,
		events: eventSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		limiter:   limiter,
		heartbeat: heartbeat,
		dbHealth:  dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.heartbeat <= 0 {
		r.heartbeat = defaultHeartbeat
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/signup", r.audit("auth_signup", r.withRateLimit("auth_signup", rateLimitSignup, rateWindowDefault, r.rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("auth_login", r.withRateLimit("auth_login", rateLimitLogin, rateWindowDefault, r.rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/invite", r.audit("auth_invite", r.handlerAdminRate("auth_invite", rateLimitInvite, rateWindowDefault, r.handleInvite)))
	r.mux.HandleFunc("/users", r.audit("users", r.handlerAdminRate("users", rateLimitRead, rateWindowDefault, r.handleUsers)))
	r.mux.HandleFunc("/team-leaders-stats", r.audit("team_leaders_stats", r.handlerAdminRate("team_leaders_stats", rateLimitRead, rateWindowDefault, r.handleTeamLeaderStats)))
	r.mux.HandleFunc("/team-leaders", r.audit("team_leaders", r.handlerAdminRate("team_leaders", rateLimitWrite, rateWindowDefault, r.handleCreateTeamLeader)))
	r.mux.HandleFunc("/team-leaders/assign", r.audit("team_leaders_assign", r.handlerAdminRate("team_leaders_assign", rateLimitWrite, rateWindowDefault, r.handleAssign)))
	r.mux.HandleFunc("/team-leaders/reassign", r.audit("team_leaders_reassign", r.handlerAdminRate("team_leaders_reassign", rateLimitWrite, rateWindowDefault, r.handleReassign)))
	r.mux.HandleFunc("/team-leaders/", r.audit("team_leaders_item", r.handlerAdminRate("team_leaders_item", rateLimitWrite, rateWindowDefault, r.handleTeamLeaderSubroutes)))
	r.mux.HandleFunc("/ws/teams", r.audit("ws_teams", r.handlerAuthRate("ws_teams", rateLimitStream, rateWindowRealtime, r.handleTeamsWS)))
	r.mux.HandleFunc("/events/teams", r.audit("events_teams", r.handlerAuthRate("events_teams", rateLimitStream, rateWindowRealtime, r.handleTeamEvents)))
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CompanyID string    `json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
}

type memberStats struct {
	ActiveMembers int `json:"active_members"`
	TotalMembers  int `json:"total_members"`
}

type teamLeaderResponse struct {
	ID                 string         `json:"id"`
	UserID             *string        `json:"user_id,omitempty"`
	FirstName          string         `json:"first_name"`
	LastName           string         `json:"last_name"`
	Color              string         `json:"color"`
	Capacity           int            `json:"capacity"`
	Collaborators      []userResponse `json:"collaborators"`
	CollaboratorsCount int            `json:"collaborators_count"`
	Stats              memberStats    `json:"stats"`
	CreatedAt          time.Time      `json:"created_at"`
}

type assignmentResponse struct {
	TeamLeaderID   string    `json:"team_leader_id"`
	CollaboratorID string    `json:"collaborator_id"`
	Notes          string    `json:"notes"`
	AssignedAt     time.Time `json:"assigned_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		CreatedAt: u.CreatedAt,
	}
}

func toTeamLeaderResponse(st domain.TeamLeaderStats) teamLeaderResponse {
	members := make([]userResponse, 0, len(st.Collaborators))
	for _, u := range st.Collaborators {
		members = append(members, toUserResponse(u))
	}
	return teamLeaderResponse{
		ID:                 st.ID,
		UserID:             st.UserID,
		FirstName:          st.FirstName,
		LastName:           st.LastName,
		Color:              st.Color,
		Capacity:           st.Capacity,
		Collaborators:      members,
		CollaboratorsCount: st.Count(),
		Stats:              memberStats{ActiveMembers: st.Count(), TotalMembers: st.Count()},
		CreatedAt:          st.CreatedAt,
	}
}

func toAssignmentResponse(a *domain.Assignment) assignmentResponse {
	return assignmentResponse{
		TeamLeaderID:   a.TeamLeaderID,
		CollaboratorID: a.CollaboratorID,
		Notes:          a.Notes,
		AssignedAt:     a.AssignedAt,
	}
}

func toTokenResponse(tokens auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required"`
		FirstName   string `json:"first_name" validate:"max=100"`
		LastName    string `json:"last_name" validate:"max=100"`
		CompanyName string `json:"company_name" validate:"max=200"`
	}
	if err := decodeJSON(req, r.validate, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), auth.SignupInput{
		Email:       payload.Email,
		Password:    payload.Password,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		CompanyName: payload.CompanyName,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   toUserResponse(*user),
		"tokens": toTokenResponse(tokens),
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(req, r.validate, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   toUserResponse(*user),
		"tokens": toTokenResponse(tokens),
	})
}

func (r *Router) handleInvite(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email     string `json:"email" validate:"required,email"`
		Password  string `json:"password" validate:"required"`
		FirstName string `json:"first_name" validate:"max=100"`
		LastName  string `json:"last_name" validate:"max=100"`
		Phone     string `json:"phone" validate:"max=40"`
		Role      string `json:"role" validate:"omitempty,oneof=ADMIN BUREAU TECHNICIEN"`
	}
	if err := decodeJSON(req, r.validate, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	info, _ := authInfoFromContext(req.Context())
	user, err := r.auth.Invite(req.Context(), info.CompanyID, auth.InviteInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Role:      payload.Role,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	users, err := r.team.ListUsers(req.Context(), info.CompanyID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleTeamLeaderStats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	stats, err := r.team.ListStats(req.Context(), info.CompanyID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	out := make([]teamLeaderResponse, 0, len(stats))
	for _, st := range stats {
		out = append(out, toTeamLeaderResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleCreateTeamLeader(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		FirstName string `json:"first_name" validate:"max=100"`
		LastName  string `json:"last_name" validate:"max=100"`
		Color     string `json:"color" validate:"omitempty,hexcolor"`
		UserID    string `json:"user_id"`
		Capacity  int    `json:"capacity" validate:"gte=0,lte=100"`
	}
	if err := decodeJSON(req, r.validate, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	info, _ := authInfoFromContext(req.Context())
	leader, err := r.team.CreateLeader(req.Context(), info.CompanyID, team.CreateLeaderInput{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Color:     payload.Color,
		UserID:    payload.UserID,
		Capacity:  payload.Capacity,
	})
	if err != nil {
		r.failMutation(w, req, opCreateLeader, err)
		return
	}
	r.recordRosterMutation(opCreateLeader, "ok")
	writeJSON(w, http.StatusCreated, toTeamLeaderResponse(domain.TeamLeaderStats{TeamLeader: *leader}))
}

func (r *Router) handleAssign(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		TeamLeaderID   string `json:"team_leader_id" validate:"required"`
		CollaboratorID string `json:"collaborator_id" validate:"required"`
		Notes          string `json:"notes" validate:"max=1000"`
	}
	if err := decodeJSON(req, r.validate, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	info, _ := authInfoFromContext(req.Context())
	assignment, err := r.team.Assign(req.Context(), info.CompanyID, payload.TeamLeaderID, payload.CollaboratorID, payload.Notes)
	if err != nil {
		r.failMutation(w, req, opAssign, err)
		return
	}
	r.recordRosterMutation(opAssign, "ok")
	writeJSON(w, http.StatusCreated, toAssignmentResponse(assignment))
}

func (r *Router) handleReassign(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		CollaboratorID   string `json:"collaborator_id" validate:"required"`
		FromTeamLeaderID string `json:"from_team_leader_id" validate:"required"`
		ToTeamLeaderID   string `json:"to_team_leader_id" validate:"required,nefield=FromTeamLeaderID"`
	}
	if err := decodeJSON(req, r.validate, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	info, _ := authInfoFromContext(req.Context())
	assignment, err := r.team.Reassign(req.Context(), info.CompanyID, payload.CollaboratorID, payload.FromTeamLeaderID, payload.ToTeamLeaderID)
	if err != nil {
		r.failMutation(w, req, opReassign, err)
		return
	}
	r.recordRosterMutation(opReassign, "ok")
	writeJSON(w, http.StatusOK, toAssignmentResponse(assignment))
}

func (r *Router) handleTeamLeaderSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/team-leaders/"), "/")
	parts := strings.Split(trimmed, "/")
	if trimmed == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.handleDeleteTeamLeader(w, req, parts[0])
	case len(parts) == 3 && parts[1] == "collaborators" && parts[2] != "":
		r.handleRemoveCollaborator(w, req, parts[0], parts[2])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleDeleteTeamLeader(w http.ResponseWriter, req *http.Request, leaderID string) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	released, err := r.team.DeleteLeader(req.Context(), info.CompanyID, leaderID)
	if err != nil {
		r.failMutation(w, req, opDeleteLeader, err)
		return
	}
	r.recordRosterMutation(opDeleteLeader, "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                    "deleted",
		"team_leader_id":            leaderID,
		"released_collaborator_ids": released,
	})
}

func (r *Router) handleRemoveCollaborator(w http.ResponseWriter, req *http.Request, leaderID, collaboratorID string) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	if err := r.team.RemoveCollaborator(req.Context(), info.CompanyID, leaderID, collaboratorID); err != nil {
		r.failMutation(w, req, opUnassign, err)
		return
	}
	r.recordRosterMutation(opUnassign, "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (r *Router) handleTeamsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for teams websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, codeInternal, "authorization context missing")
		return
	}
	if info.CompanyID == "" {
		writeError(w, http.StatusForbidden, codeForbidden, "account is not attached to a company")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	hub := r.events.Hub()
	client := ws.NewClient(conn, r.logger)
	hub.Register(info.CompanyID, client)
	done := make(chan struct{})
	go func() {
		defer func() {
			close(done)
			hub.Unregister(info.CompanyID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					client.Close()
					return
				}
			}
		}
	}()
}

func (r *Router) handleTeamEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok || info.CompanyID == "" {
		writeError(w, http.StatusForbidden, codeForbidden, "account is not attached to a company")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	hub := r.events.Hub()
	client := ws.NewSSEClient(w, flusher, sseEventName, r.logger)
	hub.Register(info.CompanyID, client)
	defer func() {
		client.Close()
		hub.Unregister(info.CompanyID, client)
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case payload := <-client.Pending():
			if err := client.Write(payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
	}
	writeError(w, status, code, msg)
}

func (r *Router) failMutation(w http.ResponseWriter, req *http.Request, operation string, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("roster mutation failed", "operation", operation, "path", req.URL.Path, "error", err)
	} else {
		r.logger.Info("roster mutation rejected", "operation", operation, "code", code)
	}
	r.recordRosterMutation(operation, code)
	writeError(w, status, code, msg)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := r.clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = strings.ToLower(info.Role)
			fields = append(fields, "user_id", info.UserID)
			if info.CompanyID != "" {
				fields = append(fields, "company_id", info.CompanyID)
			}
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethod, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}
