package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
)

// userRefreshTimeout bounds the user store read done on every login.
const userRefreshTimeout = 3 * time.Second

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type credential struct {
	password string
	role     string
	active   bool
	created  time.Time
}

type staffClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=staff admin"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) (*AuthManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth secret must be at least 32 characters")
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
	ctx, cancel := context.WithTimeout(context.Background(), userRefreshTimeout)
	defer cancel()
	manager.bootstrapUsers(ctx)
	return manager, nil
}

// Login refreshes the credential cache so accounts added by another instance
// can sign in, then issues a signed token.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	refreshCtx, cancel := context.WithTimeout(ctx, userRefreshTimeout)
	a.bootstrapUsers(refreshCtx)
	cancel()

	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !cred.active {
		return domain.LoginResponse{}, errInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
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
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

const tokenIssuer = "booking-backoffice"

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := staffClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateUser(ctx context.Context, req UserCreateRequest) (StaffUser, error) {
	a.bootstrapUsers(ctx)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return StaffUser{}, domain.Invalid("username", "must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return StaffUser{}, domain.Invalid("username", "must not contain spaces")
	}
	if len(req.Password) < 8 {
		return StaffUser{}, domain.Invalid("password", "must be at least 8 characters")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleStaff
	}
	if role != domain.RoleStaff && role != domain.RoleAdmin {
		return StaffUser{}, domain.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}

	a.mu.RLock()
	_, exists := a.users[username]
	a.mu.RUnlock()
	if exists {
		return StaffUser{}, fmt.Errorf("%w: username %s already exists", errUserExists, username)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return StaffUser{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	if a.userStore != nil {
		if err := a.userStore.CreateUser(ctx, domain.UserAccount{
			Username:  username,
			Password:  passwordHash,
			Role:      role,
			Active:    true,
			CreatedAt: now,
		}); err != nil {
			return StaffUser{}, err
		}
	}

	a.mu.Lock()
	a.users[username] = credential{password: passwordHash, role: role, active: true, created: now}
	a.mu.Unlock()

	return StaffUser{Username: username, Role: role, Active: true, CreatedAt: now}, nil
}

var errUserExists = errors.New("user exists")

func (a *AuthManager) ListUsers(ctx context.Context) []StaffUser {
	a.bootstrapUsers(ctx)
	a.mu.RLock()
	result := make([]StaffUser, 0, len(a.users))
	for username, user := range a.users {
		result = append(result, StaffUser{
			Username:  username,
			Role:      user.role,
			Active:    user.active,
			CreatedAt: user.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// bootstrapUsers loads user accounts from the user store into the in-memory
// credential cache. Legacy plain-text passwords are upgraded to bcrypt hashes
// in the store.
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
