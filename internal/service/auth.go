package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountGone        = errors.New("account no longer exists")
)

// AdminClaims is the token payload for operator sessions. Subject carries
// the account ID.
type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	accounts  *repository.AdminUserRepository
	jwtSecret []byte // from env (JWT_SECRET)
	jwtExpiry time.Duration
}

func NewAuthService(accounts *repository.AdminUserRepository, secret string, expiryHours int) *AuthService {
	return &AuthService{
		accounts:  accounts,
		jwtSecret: []byte(secret),
		jwtExpiry: time.Duration(expiryHours) * time.Hour,
	}
}

// Register creates an operator account. Role defaults to admin; a viewer
// account can read stats and logs but not mutate keys.
func (s *AuthService) Register(ctx context.Context, email, password, name, role, payoutWallet string) error {
	if role == "" {
		role = models.RoleAdmin
	}
	if role != models.RoleAdmin && role != models.RoleViewer {
		return fmt.Errorf("unknown role %q", role)
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.accounts.Create(ctx, &models.AdminUser{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		PayoutWallet: payoutWallet,
	})
}

// Login authenticates an operator and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Email: account.Email,
		Role:  account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and verifies a session token.
func (s *AuthService) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// CurrentUser resolves token claims to the live account, so a deleted
// account's outstanding tokens stop working. The returned role is the
// stored one, not the claim, in case it changed since login.
func (s *AuthService) CurrentUser(ctx context.Context, claims *AdminClaims) (*models.AdminUser, error) {
	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountGone
	}

	return account, nil
}

// UpdatePayoutWallet records the operator's receiving address.
func (s *AuthService) UpdatePayoutWallet(ctx context.Context, id, wallet string) error {
	return s.accounts.UpdatePayoutWallet(ctx, id, wallet)
}
