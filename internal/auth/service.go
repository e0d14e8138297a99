package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gps-chat/internal/config"
	"gps-chat/internal/database"
	"gps-chat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the hash strength used for existing accounts.
const bcryptCost = 12

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotApproved        = errors.New("account not yet approved by an administrator")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

type Service struct {
	store database.UserRepository
	cfg   *config.Config
}

func NewService(store database.UserRepository, cfg *config.Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
	}
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := validateCredentials(req.Username, req.Password); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsApproved {
		return nil, ErrNotApproved
	}

	identity := models.Identity{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}
	token, err := s.generateToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Token: token,
		User:  identity,
	}, nil
}

func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validateCredentials(req.Username, req.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.store.CreateUser(ctx, req.Username, string(hash))
}

// VerifyToken resolves a raw token into a verified identity. Any failure is
// reported as ErrUnauthenticated so the connection gate can refuse uniformly.
func (s *Service) VerifyToken(tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrUnauthenticated
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return models.Identity{}, ErrUnauthenticated
	}

	userIDFloat, ok := (*claims)["user_id"].(float64)
	if !ok {
		return models.Identity{}, ErrUnauthenticated
	}
	username, ok := (*claims)["username"].(string)
	if !ok || username == "" {
		return models.Identity{}, ErrUnauthenticated
	}
	isAdmin, _ := (*claims)["is_admin"].(bool)

	return models.Identity{
		UserID:   int(userIDFloat),
		Username: username,
		IsAdmin:  isAdmin,
	}, nil
}

func (s *Service) generateToken(identity models.Identity) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  identity.UserID,
		"username": identity.Username,
		"is_admin": identity.IsAdmin,
		"exp":      time.Now().Add(s.cfg.JWT.ExpiresIn).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWT.Secret)
}

func validateCredentials(username, password string) error {
	if len(username) < 3 || len(username) > 50 {
		return fmt.Errorf("username must be 3-50 characters long")
	}
	if len(password) < 6 || len(password) > 100 {
		return fmt.Errorf("password must be 6-100 characters long")
	}
	return nil
}
