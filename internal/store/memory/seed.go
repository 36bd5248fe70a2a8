package memory

import (
	"context"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/logger"
	"github.com/gabrielekerete60/bms/internal/store"
)

// NewCatalog returns a store holding the demo bakery: staff, products,
// ingredients, recipes, customers and a supplier. No login accounts.
func NewCatalog(opts ...Option) *Store {
	s := New(opts...)
	if err := s.RunInTx(context.Background(), store.SeedCatalog); err != nil {
		panic("memory: seed catalog: " + err.Error())
	}
	return s
}

// NewSeeded is NewCatalog plus login accounts for dev/demo mode.
// Passwords come from SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD; the dev
// defaults are used with a warning when unset.
func NewSeeded(opts ...Option) *Store {
	s := NewCatalog(opts...)
	if err := s.RunInTx(context.Background(), seedUsers); err != nil {
		panic("memory: seed users: " + err.Error())
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func seedUsers(ctx context.Context, tx store.Tx) error {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.Default().WithComponent("store.memory").Warn("using default dev credentials, set SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		staffID  string
		role     string
	}{
		{"manager", managerPwd, "staff-manager", domain.RoleManager},
		{"storekeeper", staffPwd, "staff-storekeeper", domain.RoleStorekeeper},
		{"baker", staffPwd, "staff-baker", domain.RoleBaker},
		{"driver", staffPwd, "staff-driver", domain.RoleDelivery},
		{"showroom", staffPwd, "staff-showroom", domain.RoleShowroom},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := tx.Directory().SaveUser(ctx, domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			StaffID:   u.staffID,
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
