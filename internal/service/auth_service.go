package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/educlass-api/internal/invite"
	"github.com/noah-isme/educlass-api/internal/models"
)

// AuthResult is what a successful authentication hands to the navigator.
type AuthResult struct {
	Identity models.Identity
	Token    string
}

// AuthService resolves a role selection into an identity.
type AuthService interface {
	Authenticate(ctx context.Context, role models.Role) (AuthResult, error)
}

type authService struct {
	secret  []byte
	ttl     time.Duration
	latency time.Duration
	newID   func() string
	now     func() time.Time
	logger  zerolog.Logger
	tracer  trace.Tracer
}

var demoProfiles = map[models.Role]struct {
	name  string
	email string
}{
	models.RoleTeacher: {name: "Sarah Johnson", email: "sarah@school.edu"},
	models.RoleStudent: {name: "Alex Smith", email: "alex@student.edu"},
}

// NewAuthService builds the simulated authenticator. Every call waits latency
// and then succeeds with the demo profile of the requested role.
func NewAuthService(secret string, tokenTTL, latency time.Duration, logger zerolog.Logger) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		secret:  []byte(secret),
		ttl:     tokenTTL,
		latency: latency,
		newID:   invite.NewID,
		now:     time.Now,
		logger:  logger.With().Str("component", "auth_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/educlass-api/internal/service/auth"),
	}
}

func (s *authService) Authenticate(ctx context.Context, role models.Role) (AuthResult, error) {
	profile, ok := demoProfiles[role]
	if !ok {
		return AuthResult{}, models.ErrInvalidRole
	}

	ctx, span := s.tracer.Start(ctx, "auth.authenticate", trace.WithAttributes(attribute.String("auth.role", string(role))))
	defer span.End()

	if err := wait(ctx, s.latency); err != nil {
		span.RecordError(err)
		return AuthResult{}, err
	}

	identity := models.Identity{
		ID:    s.newID(),
		Name:  profile.name,
		Email: profile.email,
		Role:  role,
	}

	token, err := s.issueToken(identity)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.Info().
		Str("identity_id", identity.ID).
		Str("role", string(role)).
		Str("email", maskEmail(identity.Email)).
		Msg("identity authenticated")

	return AuthResult{Identity: identity, Token: token}, nil
}

func (s *authService) issueToken(identity models.Identity) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   identity.ID,
		"role":  string(identity.Role),
		"name":  identity.Name,
		"email": identity.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// wait blocks for d, or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// maskEmail keeps the first and last letter of the local part for log lines.
func maskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + domain
}
