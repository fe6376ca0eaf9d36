// Package accounts implements registration, login and self-service user
// management on top of the user store.
//
// Authorization rules:
//   - Anyone can register, log in and read users
//   - Only the user themself can change their password or delete the account
package accounts

import (
	"context"
	"errors"

	userstore "github.com/dalemusser/taskspace/internal/app/store/users"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskspace/internal/app/system/inputval"
	"github.com/dalemusser/taskspace/internal/app/system/normalize"
	"github.com/dalemusser/taskspace/internal/app/system/paging"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserStore is the part of the user store the service needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	List(ctx context.Context, skip, limit int64) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// Hasher computes and checks password digests.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	Burn(password string)
}

// Service holds the account operations.
type Service struct {
	users  UserStore
	hasher Hasher
	log    *zap.Logger
}

// New returns a Service.
func New(users UserStore, hasher Hasher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, hasher: hasher, log: logger}
}

// RegisterInput is the body of a registration or create-user request.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,emailaddr" label:"Email"`
	Name     string `json:"name" validate:"required,max=100" label:"Name"`
	Password string `json:"password" validate:"required,min=8,max=72" label:"Password"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordInput is the body of a user update. Email must repeat the
// stored address; it cannot be changed.
type ChangePasswordInput struct {
	Email    string `json:"email" validate:"required" label:"Email"`
	Password string `json:"password" validate:"required,min=8,max=72" label:"Password"`
}

var errInvalidCredentials = apperr.New(apperr.Unauthorized, "Invalid credentials")

// Register creates a new account. The caller issues the session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	return s.create(ctx, in, "Email already in use")
}

// CreateUser creates an account without signing anyone in.
func (s *Service) CreateUser(ctx context.Context, in RegisterInput) (models.User, error) {
	return s.create(ctx, in, "Email already exists")
}

func (s *Service) create(ctx context.Context, in RegisterInput, conflictMsg string) (models.User, error) {
	in.Email = normalize.Email(in.Email)
	in.Name = normalize.Name(htmlsanitize.PlainText(in.Name))
	if res := inputval.Validate(in); res.HasErrors() {
		return models.User{}, apperr.New(apperr.InvalidRequest, res.First())
	}

	// Checked up front to skip the hash; the unique index still decides races.
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return models.User{}, apperr.New(apperr.Conflict, conflictMsg)
	} else if !errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, apperr.Wrap(apperr.Internal, "Failed to create user", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Internal, "Failed to create user", err)
	}

	u, err := s.users.Create(ctx, models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: digest,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return models.User{}, apperr.New(apperr.Conflict, conflictMsg)
		}
		return models.User{}, apperr.Wrap(apperr.Internal, "Failed to create user", err)
	}

	s.log.Info("user created", zap.String("user_id", u.ID.Hex()))
	return u, nil
}

// Login checks credentials. An unknown email and a wrong password produce the
// same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (models.User, error) {
	email := normalize.Email(in.Email)
	if email == "" || in.Password == "" {
		return models.User{}, errInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			s.hasher.Burn(in.Password)
			return models.User{}, errInvalidCredentials
		}
		return models.User{}, apperr.Wrap(apperr.Internal, "Failed to log in", err)
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		return models.User{}, errInvalidCredentials
	}
	return u, nil
}

// Get loads one user by id.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	oid, err := normalize.ObjectID(id)
	if err != nil {
		return models.User{}, apperr.New(apperr.InvalidRequest, "Invalid user id")
	}
	u, err := s.users.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return models.User{}, apperr.New(apperr.NotFound, "User not found")
		}
		return models.User{}, apperr.Wrap(apperr.Internal, "Failed to load user", err)
	}
	return u, nil
}

// List returns one page of users and the total count.
func (s *Service) List(ctx context.Context, p paging.Page) ([]models.User, int64, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "Failed to list users", err)
	}
	users, err := s.users.List(ctx, p.Skip(), p.Limit64())
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "Failed to list users", err)
	}
	return users, total, nil
}

// ChangePassword replaces the password of targetID. Only the user themself
// may do this.
func (s *Service) ChangePassword(ctx context.Context, requesterID, targetID string, in ChangePasswordInput) error {
	if normalize.ID(requesterID) != normalize.ID(targetID) {
		return apperr.New(apperr.Unauthorized, "Unauthorized")
	}
	if res := inputval.Validate(in); res.HasErrors() {
		return apperr.New(apperr.InvalidRequest, res.First())
	}

	u, err := s.Get(ctx, targetID)
	if err != nil {
		return err
	}
	if normalize.Email(in.Email) != u.Email {
		return apperr.New(apperr.InvalidRequest, "Email cannot be changed")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Failed to update user", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, digest); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return apperr.New(apperr.NotFound, "User not found")
		}
		return apperr.Wrap(apperr.Internal, "Failed to update user", err)
	}
	return nil
}

// Delete removes the account of targetID. Only the user themself may do
// this. Workspace rosters that still list the user are left for the
// membership reconciler to report.
func (s *Service) Delete(ctx context.Context, requesterID, targetID string) error {
	if normalize.ID(requesterID) != normalize.ID(targetID) {
		return apperr.New(apperr.Unauthorized, "Unauthorized")
	}
	oid, err := normalize.ObjectID(targetID)
	if err != nil {
		return apperr.New(apperr.InvalidRequest, "Invalid user id")
	}
	n, err := s.users.Delete(ctx, oid)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Failed to delete user", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "User not found")
	}
	s.log.Info("user deleted", zap.String("user_id", oid.Hex()))
	return nil
}
