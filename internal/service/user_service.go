package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"approval-ledger/internal/middleware"
	"approval-ledger/internal/model"
	"approval-ledger/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required,min=6"`
	Role        string `json:"role" binding:"required"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      UserResponse `json:"user"`
}

// DTO for returning User without exposing the password hash
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// UserService covers sign-in, account creation and the password change page
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ChangePassword(ctx context.Context, id string, req ChangePasswordRequest) error
	EnsureAdmin(ctx context.Context, req CreateUserRequest) (bool, error)
}

type userService struct {
	repo     repository.UserRepository
	audit    repository.AuditRepository
	tokenTTL time.Duration
}

// NewUserService returns a new instance of UserService. audit may be nil.
func NewUserService(repo repository.UserRepository, audit repository.AuditRepository, tokenTTL time.Duration) UserService {
	return &userService{repo: repo, audit: audit, tokenTTL: tokenTTL}
}

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.Name(),
		Role:        user.Role,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: must be one of %s", ErrInvalidRole, strings.Join(model.AllRoles, ", "))
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUserExists
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:    req.Username,
		Email:       strings.ToLower(req.Email),
		DisplayName: req.DisplayName,
		Password:    string(hashedPassword),
		Role:        req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := middleware.IssueToken(middleware.Identity{
		UserID: user.ID.String(),
		Role:   user.Role,
		Name:   user.Name(),
	}, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.tokenTTL.Seconds()),
		User:      *mapToResponse(user),
	}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return mapToResponse(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, id string, req ChangePasswordRequest) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID.String(), string(hashed)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if s.audit != nil {
		details, _ := json.Marshal(map[string]interface{}{"username": user.Username})
		userID := user.ID
		entry := &model.AuditLog{
			UserID:     &userID,
			Action:     model.ActionChangePassword,
			EntityID:   user.ID.String(),
			EntityName: user.Username,
			Details:    string(details),
		}
		if err := s.audit.Log(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
	}
	return nil
}

// EnsureAdmin creates the seed admin when no admin account exists yet.
func (s *userService) EnsureAdmin(ctx context.Context, req CreateUserRequest) (bool, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return false, nil
	}
	count, err := s.repo.CountByRole(ctx, model.RoleAdmin)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	req.Role = model.RoleAdmin
	if _, err := s.CreateUser(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}
