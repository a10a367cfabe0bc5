package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/jwt"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/secret"

	"github.com/google/uuid"
)

// Auth errors
var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
)

const maxCodeLength = 8

// AuthService signs employees in against the record store and issues service tokens
type AuthService struct {
	store    RecordStore
	sessions *SessionService
	cfg      *config.Config
	log      *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(store RecordStore, sessions *SessionService, cfg *config.Config, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthService{
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

// LoginInput represents login input
type LoginInput struct {
	Code     string `json:"code" example:"12345678"`
	Password string `json:"password" example:"secret"`
}

// RegisterInput represents registration input
type RegisterInput struct {
	Code     string `json:"code" example:"12345678"`
	Name     string `json:"name" example:"Juan Dela Cruz"`
	Password string `json:"password" example:"secret"`
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Profile      domain.Profile `json:"profile"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// Validate checks the sign-in form
func (in *LoginInput) Validate() error {
	verr := &domain.ValidationError{}
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		verr.Add("code", "Employee number is required!")
	} else if msg := checkCode(in.Code); msg != "" {
		verr.Add("code", msg)
	}
	if in.Password == "" {
		verr.Add("password", "Password is required!")
	}
	return verr.OrNil()
}

// Validate checks the registration form
func (in *RegisterInput) Validate() error {
	verr := &domain.ValidationError{}
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		verr.Add("name", "Employee Name is required!")
	}
	if in.Code == "" {
		verr.Add("code", "Employee Number is required!")
	} else if msg := checkCode(in.Code); msg != "" {
		verr.Add("code", msg)
	}
	if in.Password == "" {
		verr.Add("password", "Password is required!")
	}
	return verr.OrNil()
}

func checkCode(code string) string {
	for _, r := range code {
		if r < '0' || r > '9' {
			return "Employee number must contain digits only"
		}
	}
	if len(code) > maxCodeLength {
		return fmt.Sprintf("Employee number must be at most %d digits", maxCodeLength)
	}
	return ""
}

// Login authenticates against the record store and opens a session
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	// 1. Validate form
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// 2. Authenticate upstream
	result, err := s.store.Login(ctx, input.Code, input.Password)
	if err != nil {
		s.log.Warn("login failed", "code", input.Code, "error", err)
		return nil, err
	}

	profile := result.Profile
	if profile.Code == "" {
		profile.Code = input.Code
	}

	// 3. Issue tokens bound to a new session
	sessionID := uuid.New().String()
	tokens, err := s.generateTokens(sessionID, profile)
	if err != nil {
		return nil, err
	}

	// 4. Store session with the sealed upstream token
	session, err := s.sessions.Save(ctx, sessionID, result.Token, profile, secret.HashToken(tokens.RefreshToken))
	if err != nil {
		return nil, err
	}

	s.log.Info("employee signed in", "code", profile.Code)

	return &AuthResponse{
		Profile:      profile,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// Register forwards a registration to the record store and returns its confirmation
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (json.RawMessage, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	confirmation, err := s.store.Register(ctx, input.Code, input.Name, input.Password)
	if err != nil {
		s.log.Warn("registration failed", "code", input.Code, "error", err)
		return nil, err
	}

	s.log.Info("employee registered", "code", input.Code)
	return confirmation, nil
}

// Refresh rotates the refresh token of a live session and issues a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	// 1. Validate refresh token JWT
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.cfg.JWT.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	// 2. Load session
	session, err := s.sessions.Load(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}

	// 3. Generate new tokens
	tokens, err := s.generateTokens(session.ID, session.Profile)
	if err != nil {
		return nil, err
	}

	// 4. Rotate (a reused refresh token revokes the session)
	if err := s.sessions.Rotate(ctx, session.ID, secret.HashToken(refreshToken), secret.HashToken(tokens.RefreshToken)); err != nil {
		return nil, err
	}

	s.log.Info("token refreshed", "code", session.Profile.Code)

	return &AuthResponse{
		Profile:      session.Profile,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// Logout ends one session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// LogoutAll ends every session of an employee
func (s *AuthService) LogoutAll(ctx context.Context, code string) (int64, error) {
	return s.sessions.ClearAll(ctx, code)
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateTokens generates access and refresh tokens for a session
func (s *AuthService) generateTokens(sessionID string, profile domain.Profile) (*TokenPair, error) {
	accessToken, err := jwt.GenerateAccessToken(
		sessionID,
		profile.Code,
		profile.Name,
		s.cfg.JWT.Secret,
		s.cfg.JWT.AccessTokenMins,
	)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(
		sessionID,
		uuid.New().String(),
		s.cfg.JWT.RefreshSecret,
		s.cfg.JWT.RefreshTokenDays,
	)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
