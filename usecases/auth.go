package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"cacao-server/confs"
	"cacao-server/entities"
	"cacao-server/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Generate(userID, email string) (token string, expiresAt time.Time, err error)
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *entities.User `json:"user"`
}

type AuthUseCase struct {
	store  repositories.Store
	tokens TokenIssuer
	log    *zap.Logger
}

func NewAuthUseCase(store repositories.Store, tokens TokenIssuer, log *zap.Logger) *AuthUseCase {
	return &AuthUseCase{store: store, tokens: tokens, log: log}
}

func (uc *AuthUseCase) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := uc.createUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return uc.session(user)
}

func (uc *AuthUseCase) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := uc.store.Users().GetByEmail(ctx, in.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, wrap(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, Unauthorized("invalid email or password")
	}
	return uc.session(user)
}

func (uc *AuthUseCase) User(ctx context.Context, id string) (*entities.User, error) {
	user, err := uc.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "user")
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap account unless a user with its email
// already exists.
func (uc *AuthUseCase) EnsureAdmin(ctx context.Context, cfg confs.AdminConfig) error {
	if !cfg.Enabled() {
		return nil
	}
	_, err := uc.store.Users().GetByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	name := cfg.Name
	if name == "" {
		name = "admin"
	}
	if _, err := uc.createUser(ctx, RegisterInput{Name: name, Email: strings.ToLower(cfg.Email), Password: cfg.Password}); err != nil {
		return err
	}
	uc.log.Info("bootstrap admin created", zap.String("email", cfg.Email))
	return nil
}

func (uc *AuthUseCase) createUser(ctx context.Context, in RegisterInput) (*entities.User, error) {
	_, err := uc.store.Users().GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, InvalidField("email", "email is already registered")
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, wrap(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Internal(err)
	}
	user := &entities.User{Name: in.Name, Email: in.Email, PasswordHash: string(hash)}
	if err := uc.store.Users().Create(ctx, user); err != nil {
		return nil, wrap(err)
	}
	return user, nil
}

func (uc *AuthUseCase) session(user *entities.User) (*Session, error) {
	token, expiresAt, err := uc.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, Internal(err)
	}
	return &Session{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt, User: user}, nil
}
