package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

const testSecret = "test-secret-key-for-booking-backoffice"

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func newStubWithAdmin() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := newStubWithAdmin()

	manager, err := NewAuthManager(testSecret, time.Hour, store)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}
	_, err = manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateUserStoresPasswordHash(t *testing.T) {
	store := newStubWithAdmin()

	manager, err := NewAuthManager(testSecret, time.Hour, store)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}
	user, err := manager.CreateUser(context.Background(), UserCreateRequest{
		Username: "Reservations",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if user.Username != "reservations" {
		t.Fatalf("expected lowercased username, got %s", user.Username)
	}
	if user.Role != domain.RoleStaff {
		t.Fatalf("expected default staff role, got %s", user.Role)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "reservations" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected user to be saved")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(context.Background(), domain.LoginRequest{
		Username: "RESERVATIONS",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with new user failed: %v", err)
	}
}

func TestCreateUserRejectsDuplicateAndWeakInput(t *testing.T) {
	manager, err := NewAuthManager(testSecret, time.Hour, newStubWithAdmin())
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}

	_, err = manager.CreateUser(context.Background(), UserCreateRequest{Username: "admin", Password: "pass1234"})
	if !errors.Is(err, errUserExists) {
		t.Fatalf("expected errUserExists, got %v", err)
	}

	var verr domain.ValidationError
	_, err = manager.CreateUser(context.Background(), UserCreateRequest{Username: "new user", Password: "pass1234"})
	if !errors.As(err, &verr) || verr.Field != "username" {
		t.Fatalf("expected username validation error, got %v", err)
	}
	_, err = manager.CreateUser(context.Background(), UserCreateRequest{Username: "newuser", Password: "short"})
	if !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("expected password validation error, got %v", err)
	}
	_, err = manager.CreateUser(context.Background(), UserCreateRequest{Username: "newuser", Password: "pass1234", Role: "owner"})
	if !errors.As(err, &verr) || verr.Field != "role" {
		t.Fatalf("expected role validation error, got %v", err)
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	hash, err := hashPassword("ops12345")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &userStoreStub{users: map[string]domain.UserAccount{
		"ops": {Username: "ops", Password: hash, Role: domain.RoleStaff, Active: false},
	}}
	manager, err := NewAuthManager(testSecret, time.Hour, store)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "ops", Password: "ops12345"})
	if !errors.Is(err, errInactiveAccount) {
		t.Fatalf("expected errInactiveAccount, got %v", err)
	}
}

func TestNewAuthManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewAuthManager("short-secret", time.Hour, nil); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	store := newStubWithAdmin()
	issuer, err := NewAuthManager(testSecret, time.Hour, store)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}
	resp, err := issuer.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	actor, err := issuer.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse own token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other, err := NewAuthManager(strings.Repeat("x", 40), time.Hour, nil)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
