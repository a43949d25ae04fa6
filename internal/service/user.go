package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clickfit/clickfit/internal/model"
	"github.com/clickfit/clickfit/internal/repository"
	"github.com/clickfit/clickfit/internal/validation"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type CreateUserInput struct {
	Email    string
	Password string
	Type     string // defaults to "user"
	Active   *bool  // defaults to true
}

type UserService struct {
	userRepository repository.UserRepository
	hashCost       int
}

func NewUserService(userRepository repository.UserRepository) *UserService {
	return &UserService{
		userRepository: userRepository,
		hashCost:       bcrypt.DefaultCost,
	}
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	email := validation.NormalizeEmail(in.Email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	err = validation.ValidatePassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	userType := in.Type
	if userType == "" {
		userType = model.UserTypeUser
	}
	err = validation.ValidateUserType(userType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Type:         userType,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user created", "user_id", user.ID, "type", user.Type)
	return user, nil
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.userRepository.List(ctx)
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.userRepository.Count(ctx)
}

// Authenticate returns the active user whose bcrypt hash matches password
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepository.ByEmail(ctx, validation.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil || !user.Active {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
