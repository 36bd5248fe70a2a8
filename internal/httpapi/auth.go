package httpapi

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

const tokenIssuer = "bms"

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
}

// UserStore is the persistence behind login accounts. store.UserDirectory implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type credential struct {
	password string
	staffID  string
	role     string
	active   bool
	created  time.Time
}

type staffClaims struct {
	jwtlib.RegisteredClaims
	Role    string `json:"role"`
	StaffID string `json:"staff_id"`
}

func NewAuthManager(ctx context.Context, secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
	manager.bootstrapUsers(ctx)
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, apperror.NewUnauthorized("Invalid username or password.")
	}
	if !cred.active {
		return domain.LoginResponse{}, apperror.NewForbidden("This account is inactive.")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, apperror.NewInternal(err)
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		StaffID:     cred.staffID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &staffClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, apperror.NewUnauthorized("Invalid or expired token.")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, apperror.NewUnauthorized("Invalid token subject.")
	}
	return domain.Actor{Username: sub, StaffID: claims.StaffID, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username string, cred credential, expiresAt time.Time) (string, error) {
	claims := staffClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:    cred.role,
		StaffID: cred.staffID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateUser adds a login account bound to an existing staff member.
func (a *AuthManager) CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.UserSummary, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.UserSummary{}, apperror.NewValidation("Username must be at least 4 characters.")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.UserSummary{}, apperror.NewValidation("Username must not contain spaces.")
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return domain.UserSummary{}, apperror.NewValidation("Password must be at least 6 characters.")
	}
	if strings.TrimSpace(req.StaffID) == "" {
		return domain.UserSummary{}, apperror.NewValidation("Please choose the staff member for this account.")
	}
	if !slices.Contains(domain.Roles, req.Role) {
		return domain.UserSummary{}, apperror.NewValidation("Unknown role.").WithDetail("role", req.Role)
	}

	a.mu.RLock()
	_, exists := a.users[username]
	a.mu.RUnlock()
	if exists {
		return domain.UserSummary{}, apperror.NewInvalidState("Username already exists.")
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserSummary{}, apperror.NewInternal(err)
	}
	now := time.Now().UTC()
	if a.userStore != nil {
		err := a.userStore.CreateUser(ctx, domain.UserAccount{
			Username:  username,
			Password:  passwordHash,
			StaffID:   req.StaffID,
			Role:      req.Role,
			Active:    true,
			CreatedAt: now,
		})
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.UserSummary{}, apperror.NewInvalidState("Username already exists.")
		case err != nil:
			return domain.UserSummary{}, err
		}
	}

	cred := credential{
		password: passwordHash,
		staffID:  req.StaffID,
		role:     req.Role,
		active:   true,
		created:  now,
	}
	a.mu.Lock()
	a.users[username] = cred
	a.mu.Unlock()

	return cred.summary(username), nil
}

// BootstrapAdmin creates req as the first login account of an empty user
// store. It reports whether the account was created.
func (a *AuthManager) BootstrapAdmin(ctx context.Context, req domain.CreateUserRequest) (bool, error) {
	if len(a.ListUsers(ctx)) > 0 {
		return false, nil
	}
	if _, err := a.CreateUser(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AuthManager) ListUsers(ctx context.Context) []domain.UserSummary {
	a.bootstrapUsers(ctx)
	a.mu.RLock()
	result := make([]domain.UserSummary, 0, len(a.users))
	for username, cred := range a.users {
		result = append(result, cred.summary(username))
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

func (c credential) summary(username string) domain.UserSummary {
	return domain.UserSummary{
		Username:  username,
		StaffID:   c.staffID,
		Role:      c.role,
		Active:    c.active,
		CreatedAt: c.created,
	}
}

// bootstrapUsers refreshes the credential cache from the user store and
// upgrades any plain-text passwords it finds to bcrypt hashes.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				_ = a.userStore.UpdateUserPassword(ctx, username, hashed)
			}
		}
		a.users[username] = credential{
			password: password,
			staffID:  user.StaffID,
			role:     user.Role,
			active:   user.Active,
			created:  user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
