package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"citizen-card-cli/model"
)

func TestValidatePassword(t *testing.T) {
	valid := []string{"Secr3t!pass", "Abcdef1@"}
	invalid := []string{"Sh0rt!", "alllowercase1!", "ALLUPPER1!", "NoDigits!!", "NoSpecial11", ""}
	for _, p := range valid {
		if err := ValidatePassword(p); err != nil {
			t.Fatalf("expected %q to be valid, got %v", p, err)
		}
	}
	for _, p := range invalid {
		if err := ValidatePassword(p); err == nil {
			t.Fatalf("expected %q to be rejected", p)
		}
	}
}

func TestValidators(t *testing.T) {
	if err := ValidateEmail("user@example.com"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := ValidateEmail("user@example"); err == nil {
		t.Fatal("expected invalid email")
	}
	if err := ValidatePhone("0912345678"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := ValidatePhone("1912345678"); err == nil {
		t.Fatal("expected invalid phone")
	}
	if err := ValidateCardNumber("1234567812345678"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := ValidateCardNumber("1234"); err == nil {
		t.Fatal("expected invalid card number")
	}
}

func TestRegister_ValidatesBeforeNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	auth := NewAuthService(newTestClient(server))
	ctx := context.Background()

	if _, err := auth.Register(ctx, model.Registration{Email: "a@b.co"}); !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("expected ErrCredentialsRequired, got %v", err)
	}
	if _, err := auth.Register(ctx, model.Registration{Email: "nope", Password: "Secr3t!pass"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := auth.Register(ctx, model.Registration{Email: "a@b.co", Password: "weak"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestLogin_401DoesNotTriggerTeardown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer server.Close()

	fired := false
	auth := NewAuthService(newTestClient(server, WithUnauthorizedHandler(func(string) { fired = true })))

	_, err := auth.Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "x"})
	if err == nil || err.Error() != "invalid credentials" {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Fatal("expected login 401 not to fire the unauthorized handler")
	}
}

func TestLogin_RequiresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":1,"email":"a@b.co"}}`))
	}))
	defer server.Close()

	auth := NewAuthService(newTestClient(server))
	if _, err := auth.Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "x"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
