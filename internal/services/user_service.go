package services

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// UserService handles registration. Creating the user and seeding the two
// default tags happen in one transaction, so no user ever exists without a
// catch-all tag per kind.
type UserService struct {
	repo       *storage.SQLiteRepository
	bcryptCost int
}

func NewUserService(repo *storage.SQLiteRepository, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		repo:       repo,
		bcryptCost: bcryptCost,
	}
}

type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// Register creates a user with hashed credentials and seeds both default
// tags. Seeding is idempotent, so a retried registration never produces
// duplicate defaults.
func (s *UserService) Register(ctx context.Context, p RegisterParams) (core.User, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)

	if p.Username == "" || p.Email == "" || p.Password == "" {
		return core.User{}, core.E(core.KindInvalidArgument, "username, email and password are required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return core.User{}, core.Ef(core.KindInvalidArgument, "invalid email %q", p.Email)
	}
	if len(p.Password) < 8 {
		return core.User{}, core.E(core.KindInvalidArgument, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
	if err != nil {
		return core.User{}, core.Wrap(core.KindInternal, "hash password", err)
	}

	var created core.User
	err = s.repo.Tx(ctx, func(q *storage.Queries) error {
		taken, err := q.UsernameTaken(ctx, p.Username)
		if err != nil {
			return err
		}
		if taken {
			return core.Ef(core.KindConflict, "username %q already registered", p.Username)
		}

		taken, err = q.EmailTaken(ctx, p.Email)
		if err != nil {
			return err
		}
		if taken {
			return core.Ef(core.KindConflict, "email %q already registered", p.Email)
		}

		created, err = q.CreateUser(ctx, storage.CreateUserParams{
			Username:     p.Username,
			Email:        p.Email,
			PasswordHash: string(hash),
		})
		if err != nil {
			return err
		}

		return s.seedDefaultTags(ctx, q, created.ID)
	})
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", created.ID, "username", created.Username)
	return created, nil
}

// SeedDefaultTags makes sure a user has both protected catch-all tags.
// Exposed for repair flows; Register already runs it.
func (s *UserService) SeedDefaultTags(ctx context.Context, userID int64) error {
	return s.repo.Tx(ctx, func(q *storage.Queries) error {
		exists, err := q.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return core.Ef(core.KindNotFound, "user %d not found", userID)
		}
		return s.seedDefaultTags(ctx, q, userID)
	})
}

func (s *UserService) seedDefaultTags(ctx context.Context, q *storage.Queries, userID int64) error {
	if err := q.SeedDefaultTag(ctx, userID, core.DefaultIncomeTag, core.Income); err != nil {
		return err
	}
	return q.SeedDefaultTag(ctx, userID, core.DefaultExpenseTag, core.Expense)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.repo.Queries().GetUser(ctx, id)
}
