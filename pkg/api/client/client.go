package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error codes emitted by the crewboard API in the "code" field.
const (
	CodeInvalidInput    = "invalid_input"
	CodeRosterFull      = "roster_full"
	CodeAlreadyAssigned = "already_assigned"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeRateLimited     = "rate_limited"
)

// Client provides typed access to the crewboard API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8001"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Code == CodeNotFound)
}

// IsAlreadyAssigned reports whether the API refused an assign because the
// collaborator sits on another roster.
func IsAlreadyAssigned(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeAlreadyAssigned
}

// IsRosterFull reports whether the API rejected a change because the target
// roster is at capacity. Servers without error codes are recognised by their
// 400 "Maximum N collaborators" message.
func IsRosterFull(err error) bool {
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != "" {
		return apiErr.Code == CodeRosterFull
	}
	return apiErr.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "maximum")
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		code, msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Code: code, Message: msg}
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) (string, string) {
	if body == nil {
		return "", ""
	}
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "", ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	msg := payload.Error
	if msg == "" {
		msg = payload.Detail
	}
	return strings.TrimSpace(payload.Code), strings.TrimSpace(msg)
}

// AuthResponse captures the token payload emitted by the API.
type AuthResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// User reflects API user payloads. Collaborators are users.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CompanyID string    `json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// MemberStats mirrors the stats block of a team leader.
type MemberStats struct {
	ActiveMembers int `json:"active_members"`
	TotalMembers  int `json:"total_members"`
}

// TeamLeader is a leader together with its roster.
type TeamLeader struct {
	ID                 string      `json:"id"`
	UserID             *string     `json:"user_id,omitempty"`
	FirstName          string      `json:"first_name"`
	LastName           string      `json:"last_name"`
	Color              string      `json:"color"`
	Capacity           int         `json:"capacity"`
	Collaborators      []User      `json:"collaborators"`
	CollaboratorsCount int         `json:"collaborators_count"`
	Stats              MemberStats `json:"stats"`
	CreatedAt          time.Time   `json:"created_at"`
}

// Assignment is the acknowledged membership record.
type Assignment struct {
	TeamLeaderID   string    `json:"team_leader_id"`
	CollaboratorID string    `json:"collaborator_id"`
	Notes          string    `json:"notes"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// SignupInput carries self-registration fields.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// InviteInput carries the fields of an account added by an administrator.
type InviteInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
}

// CreateTeamLeaderInput defines a new team leader.
type CreateTeamLeaderInput struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Color     string `json:"color,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Capacity  int    `json:"capacity,omitempty"`
}

// AssignInput places a collaborator on a roster.
type AssignInput struct {
	TeamLeaderID   string `json:"team_leader_id"`
	CollaboratorID string `json:"collaborator_id"`
	Notes          string `json:"notes"`
}

// ReassignInput moves a collaborator between rosters.
type ReassignInput struct {
	CollaboratorID   string `json:"collaborator_id"`
	FromTeamLeaderID string `json:"from_team_leader_id"`
	ToTeamLeaderID   string `json:"to_team_leader_id"`
}

// DeleteTeamLeaderResponse lists the collaborators released by a deletion.
type DeleteTeamLeaderResponse struct {
	TeamLeaderID string   `json:"team_leader_id"`
	Released     []string `json:"released_collaborator_ids"`
}

// Event is a committed roster change streamed by the API.
type Event struct {
	Type             string    `json:"type"`
	CompanyID        string    `json:"company_id"`
	TeamLeaderID     string    `json:"team_leader_id"`
	FromTeamLeaderID string    `json:"from_team_leader_id,omitempty"`
	CollaboratorIDs  []string  `json:"collaborator_ids"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Signup registers an administrator account.
func (c *Client) Signup(ctx context.Context, input SignupInput) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", input, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Invite adds an account to the caller's company.
func (c *Client) Invite(ctx context.Context, token string, input InviteInput) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/auth/invite", input, token, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListTeamLeaderStats returns leaders with their rosters.
func (c *Client) ListTeamLeaderStats(ctx context.Context, token string) ([]TeamLeader, error) {
	var leaders []TeamLeader
	if err := c.do(ctx, http.MethodGet, "/team-leaders-stats", nil, token, &leaders); err != nil {
		return nil, err
	}
	return leaders, nil
}

// ListUsers returns every account of the caller's company.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, token, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateTeamLeader registers a team leader.
func (c *Client) CreateTeamLeader(ctx context.Context, token string, input CreateTeamLeaderInput) (TeamLeader, error) {
	var leader TeamLeader
	if err := c.do(ctx, http.MethodPost, "/team-leaders", input, token, &leader); err != nil {
		return TeamLeader{}, err
	}
	return leader, nil
}

// Assign places a collaborator on a roster.
func (c *Client) Assign(ctx context.Context, token string, input AssignInput) (Assignment, error) {
	var assignment Assignment
	if err := c.do(ctx, http.MethodPost, "/team-leaders/assign", input, token, &assignment); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

// Reassign moves a collaborator between rosters in one request.
func (c *Client) Reassign(ctx context.Context, token string, input ReassignInput) (Assignment, error) {
	var assignment Assignment
	if err := c.do(ctx, http.MethodPost, "/team-leaders/reassign", input, token, &assignment); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

// RemoveCollaborator drops a collaborator from a roster.
func (c *Client) RemoveCollaborator(ctx context.Context, token, teamLeaderID, collaboratorID string) error {
	path := fmt.Sprintf("/team-leaders/%s/collaborators/%s", url.PathEscape(teamLeaderID), url.PathEscape(collaboratorID))
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// DeleteTeamLeader removes a leader; its roster returns to the pool.
func (c *Client) DeleteTeamLeader(ctx context.Context, token, teamLeaderID string) (DeleteTeamLeaderResponse, error) {
	var resp DeleteTeamLeaderResponse
	path := "/team-leaders/" + url.PathEscape(teamLeaderID)
	if err := c.do(ctx, http.MethodDelete, path, nil, token, &resp); err != nil {
		return DeleteTeamLeaderResponse{}, err
	}
	return resp, nil
}

// StreamEvents follows the server-sent roster events of the caller's company
// until ctx ends, the stream closes or fn returns an error.
func (c *Client) StreamEvents(ctx context.Context, token string, fn func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/teams", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	// the stream outlives the request timeout of the regular client
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		code, msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Code: code, Message: msg}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return ctx.Err()
}
