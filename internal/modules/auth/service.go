package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"stockfolio/internal/domain"
)

// Claims are the token claims carried by every authenticated request.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service implements signup, signin and token verification.
type Service struct {
	repo      *Repository
	jwtSecret []byte
	tokenTTL  time.Duration
	log       zerolog.Logger
}

// NewService creates a new auth service
func NewService(repo *Repository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log.With().Str("service", "auth").Logger(),
	}
}

// Signup validates the input, hashes the password and creates the account.
func (s *Service) Signup(input SignupInput) (User, error) {
	if err := input.Validate(); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Role:         RoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(u); err != nil {
		return User{}, err
	}

	return u, nil
}

// Signin verifies credentials and returns a signed bearer token.
func (s *Service) Signin(email, password string) (string, User, error) {
	u, err := s.repo.GetByEmail(email)
	if err != nil {
		return "", User{}, err
	}
	if u == nil {
		return "", User{}, domain.NotFoundf("user %s", email)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	token, err := s.issueToken(*u)
	if err != nil {
		return "", User{}, err
	}

	return token, *u, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(userID, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return domain.Validationf("password must be at least 6 characters")
	}

	u, err := s.repo.GetByID(userID)
	if err != nil {
		return err
	}
	if u == nil {
		return domain.NotFoundf("user %s", userID)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpdatePassword(userID, string(hash))
}

// ParseToken verifies a bearer token and returns its claims.
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}

	return claims, nil
}

func (s *Service) issueToken(u User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
