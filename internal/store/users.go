package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/gabrielekerete60/bms/internal/domain"
)

// UserDirectory exposes the login accounts of a Store to the auth layer.
type UserDirectory struct {
	store Store
}

func NewUserDirectory(s Store) *UserDirectory {
	return &UserDirectory{store: s}
}

func (d *UserDirectory) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return ErrInvalidInput
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	return d.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Directory().GetUser(ctx, username)
		switch {
		case err == nil:
			return ErrAlreadyExists
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return tx.Directory().SaveUser(ctx, user)
	})
}

func (d *UserDirectory) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var users []domain.UserAccount
	err := d.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		users, err = tx.Directory().ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (d *UserDirectory) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return ErrInvalidInput
	}
	return d.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		user, err := tx.Directory().GetUser(ctx, username)
		if err != nil {
			return err
		}
		user.Password = password
		return tx.Directory().SaveUser(ctx, *user)
	})
}
