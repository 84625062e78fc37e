package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Service handles account creation and authentication. Signup creates
// both the credential row and the ledger profile so every account
// starts with a wallet.
type Service struct {
	db        *Database
	ledger    *ledger.Service
	jwtSecret []byte
}

// NewService creates a new authentication service with the given JWT secret
func NewService(gormDB *gorm.DB, ledgerService *ledger.Service, jwtSecret string) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		ledger:    ledgerService,
		jwtSecret: []byte(jwtSecret),
	}
}

// Signup registers a new account and creates its profile with the
// starting balance. The display name must be unique after
// normalization; the email must be unused.
func (s *Service) Signup(req *SignupRequest) (*TokenResponse, error) {
	logger := log.With().
		Str("email", req.Email).
		Str("display_name", req.DisplayName).
		Str("service", "auth").
		Logger()

	existing, err := s.db.GetUserByEmail(strings.ToLower(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	available, err := s.ledger.IsDisplayNameAvailable(req.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to check display name: %w", err)
	}
	if !available {
		return nil, ledger.ErrDisplayNameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		UserID:       uuid.New().String(),
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
	}
	if err := s.db.CreateUser(user); err != nil {
		logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if _, err := s.ledger.CreateProfile(user.UserID, req.DisplayName); err != nil {
		// Remove the credential row so a failed signup leaves no
		// orphaned account behind.
		if delErr := s.db.DeleteUser(user.UserID); delErr != nil {
			logger.Error().Err(delErr).Msg("failed to clean up user after profile failure")
		}
		if errors.Is(err, ledger.ErrDisplayNameTaken) {
			return nil, err
		}
		logger.Error().Err(err).Msg("failed to create profile")
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	logger.Info().Str("user_id", user.UserID).Msg("account created")
	return s.generateToken(user.UserID)
}

// Login verifies the credentials and returns a fresh JWT.
func (s *Service) Login(req *LoginRequest) (*TokenResponse, error) {
	user, err := s.db.GetUserByEmail(strings.ToLower(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateToken(user.UserID)
}

// generateToken issues a signed JWT carrying the user ID with 24-hour expiration
func (s *Service) generateToken(userID string) (*TokenResponse, error) {
	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		UserID:     userID,
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// IsDisplayNameAvailable reports whether the name can still be claimed.
func (s *Service) IsDisplayNameAvailable(name string) (bool, error) {
	return s.ledger.IsDisplayNameAvailable(name)
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SignupHandler handles POST requests to create an account
func (h *GinHandlers) SignupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Signup(&req)
		switch {
		case errors.Is(err, ErrEmailTaken), errors.Is(err, ledger.ErrDisplayNameTaken):
			response.Conflict(c, err.Error())
		default:
			response.Handle(c, token, err)
		}
	}
}

// LoginHandler handles POST requests to authenticate and issue a JWT
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Login(&req)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// CheckDisplayNameHandler handles GET requests from the signup form's
// debounced availability check
func (h *GinHandlers) CheckDisplayNameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			response.BadRequest(c, "name query parameter is required")
			return
		}

		available, err := h.service.IsDisplayNameAvailable(name)
		if err != nil {
			response.InternalError(c, "Failed to check display name")
			return
		}

		response.Success(c, gin.H{"name": name, "available": available})
	}
}
