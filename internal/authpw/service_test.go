package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"planhub/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User // keyed by email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]store.User{}}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	if _, exists := f.users[user.Email]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	for email, user := range f.users {
		if user.ID == userID {
			user.PasswordHash = passwordHash
			f.users[email] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestSignUpThenSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@x.com", Password: "Secure123A", FullName: "A"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated user id")
	}
	if user.PasswordHash == "Secure123A" {
		t.Fatalf("password must not be stored in the clear")
	}

	signedIn, err := svc.SignIn(ctx, SignInRequest{Email: "a@x.com", Password: "Secure123A"})
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("expected same user id after login, got %s vs %s", signedIn.ID, user.ID)
	}
}

func TestSignUpRejectsInvalidEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "not-an-email", Password: "Secure123A", FullName: "A"}); err == nil {
		t.Fatalf("expected invalid email to be rejected")
	}
}

func TestSignUpRejectsWeakPasswords(t *testing.T) {
	svc := NewService(newFakeUserStore())
	for _, password := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "a@x.com", Password: password, FullName: "A"}); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("password %q: expected ErrWeakPassword, got %v", password, err)
		}
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@x.com", Password: "Secure123A", FullName: "A"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@x.com", Password: "Wrong123A"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInRejectsBlockedUser(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("Secure123A"), bcrypt.MinCost)
	fs.users["blocked@x.com"] = store.User{ID: "usr_b", Email: "blocked@x.com", PasswordHash: string(hash), Blocked: true}

	svc := NewService(fs)
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "blocked@x.com", Password: "Secure123A"}); !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("expected ErrUserBlocked, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()
	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@x.com", Password: "Secure123A", FullName: "A"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "Wrong123A", "Another123A"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected wrong old password to be rejected, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "Secure123A", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak new password to be rejected, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "Secure123A", "Another123A"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@x.com", Password: "Another123A"}); err != nil {
		t.Fatalf("expected login with new password to succeed: %v", err)
	}
}

func TestPasswordMeetsPolicy(t *testing.T) {
	if !PasswordMeetsPolicy("Secure123A") {
		t.Errorf("expected Secure123A to pass")
	}
	if PasswordMeetsPolicy("") || PasswordMeetsPolicy("Ab1") {
		t.Errorf("short passwords must fail")
	}
}
