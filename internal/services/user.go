package services

import (
	"context"
	"errors"
	"strings"

	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
	cost int
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost}
}

// Registration is the sign-up form. Field rules are enforced by the handler.
type Registration struct {
	Username string
	Password string
	Name     string
	Email    string
}

// Register creates an account with a bcrypt hashed password.
func (s *UserService) Register(ctx context.Context, reg Registration) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     strings.TrimSpace(reg.Username),
		Name:         strings.TrimSpace(reg.Name),
		Email:        strings.TrimSpace(reg.Email),
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}
