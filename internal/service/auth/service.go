package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skybtp/crewboard/internal/domain"
	"github.com/skybtp/crewboard/internal/repository"
	"github.com/skybtp/crewboard/pkg/config"
	"github.com/skybtp/crewboard/pkg/crypto"
	jwtpkg "github.com/skybtp/crewboard/pkg/jwt"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput marks malformed signup or invite payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailTaken indicates the email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoCompany indicates the caller is not attached to a company.
	ErrNoCompany = errors.New("account is not attached to a company")
)

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// SignupInput describes a self-registration. A company name creates a new
// company owned by the account.
type SignupInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
}

// InviteInput describes an account added by an administrator.
type InviteInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// Signup registers a new administrator account.
func (s Service) Signup(ctx context.Context, input SignupInput) (*domain.User, TokenPair, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, TokenPair{}, err
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if strings.TrimSpace(input.CompanyName) != "" {
		user.CompanyID = uuid.NewString()
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, TokenPair{}, ErrEmailTaken
		}
		return nil, TokenPair{}, err
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "company_id", user.CompanyID)
	return user, tokens, nil
}

// Invite creates an account inside the administrator's company. The role
// defaults to TECHNICIEN.
func (s Service) Invite(ctx context.Context, companyID string, input InviteInput) (*domain.User, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, ErrNoCompany
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	role := strings.ToUpper(strings.TrimSpace(input.Role))
	if role == "" {
		role = domain.RoleTechnician
	}
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		CompanyID:    companyID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.logger.Info("user invited", "user_id", user.ID, "company_id", companyID, "role", role)
	return user, nil
}

// Login authenticates a user and returns tokens.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Authorize validates a bearer token and returns the associated user and
// claims. Role and company come from the stored account, not the token.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) issueTokens(user *domain.User) (TokenPair, error) {
	subject := jwtpkg.Subject{UserID: user.ID, CompanyID: user.CompanyID, Role: user.Role}
	access, err := jwtpkg.GenerateToken(subject, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(subject, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}
