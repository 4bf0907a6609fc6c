package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"polling-client/internal/api"
	"polling-client/internal/platform/secretbox"
	"polling-client/internal/store"
)

type fixture struct {
	creds    *store.CredentialStore
	profiles *store.SessionStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	key, err := secretbox.NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	profiles, err := store.NewSessionStore(db, nil)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	return fixture{
		creds:    store.NewCredentialStore(db, key, nil),
		profiles: profiles,
	}
}

func authServer(t *testing.T, status int, body string, calls *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newController(t *testing.T, f fixture, srv *httptest.Server) *Controller {
	t.Helper()
	client := api.New(srv.URL, f.creds, time.Second, nil)
	c := NewController(client, f.creds, f.profiles, nil)
	t.Cleanup(c.Close)
	return c
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusOK,
		`{"token":"T","user":{"id":"1","email":"a@b.com","name":"A"}}`, nil)
	c := newController(t, f, srv)

	c.Login(context.Background(), "a@b.com", "x")

	if got := c.Current(); got.Status != StatusAuthenticated {
		t.Fatalf("expected authenticated, got %v (%s)", got.Status, got.Message)
	}
	if got := f.creds.Load(); got != "T" {
		t.Fatalf("expected credential T, got %q", got)
	}
	want := store.Profile{UserID: "1", Email: "a@b.com", DisplayName: "A"}
	if got := f.profiles.Current(); got != want {
		t.Fatalf("expected profile %+v, got %+v", want, got)
	}
}

func TestLoginEmptyTokenNeverAuthenticates(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusOK,
		`{"token":"","user":{"id":"1","email":"a@b.com","name":"A"}}`, nil)
	c := newController(t, f, srv)

	c.Login(context.Background(), "a@b.com", "x")

	got := c.Current()
	if got.Status != StatusError || got.Message != msgNoToken {
		t.Fatalf("a 2xx without a token must fail, got %+v", got)
	}
	if f.creds.Load() != "" {
		t.Fatal("expected empty credential sentinel after a tokenless login")
	}
	if f.profiles.Current() != (store.Profile{}) {
		t.Fatalf("profile must not be written for a tokenless login, got %+v", f.profiles.Current())
	}
}

func TestLoginRejectsBlankFieldsLocally(t *testing.T) {
	f := newFixture(t)
	calls := 0
	srv := authServer(t, http.StatusOK, `{}`, &calls)
	c := newController(t, f, srv)

	c.Login(context.Background(), "", "x")

	if calls != 0 {
		t.Fatalf("expected no network call, got %d", calls)
	}
	got := c.Current()
	if got.Status != StatusError || got.Message != msgMissingLoginFields {
		t.Fatalf("expected local validation error, got %+v", got)
	}
	if f.creds.Load() != "" {
		t.Fatal("expected no credential after local rejection")
	}
}

func TestLoginFailureMapsStatus(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusUnauthorized, `{"error":"invalid_credentials"}`, nil)
	c := newController(t, f, srv)

	c.Login(context.Background(), "a@b.com", "wrong")

	got := c.Current()
	if got.Status != StatusError {
		t.Fatalf("expected error state, got %v", got.Status)
	}
	if got.Message != "invalid credentials" {
		t.Fatalf("unexpected message: %q", got.Message)
	}
	if f.creds.Load() != "" {
		t.Fatal("session must remain unauthenticated after a failed login")
	}
}

func TestRegisterNeverAuthenticates(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusCreated,
		`{"token":"T","user":{"id":"1","email":"a@b.com","name":"A"}}`, nil)
	c := newController(t, f, srv)

	c.Register(context.Background(), "a@b.com", "A", "x")

	got := c.Current()
	if got.Status != StatusUnauthenticated {
		t.Fatalf("register must not authenticate, got %v", got.Status)
	}
	if got.Message != msgAccountCreated {
		t.Fatalf("unexpected message: %q", got.Message)
	}
	if f.creds.Load() != "" {
		t.Fatal("register must not store the returned token")
	}
}

func TestRegisterDuplicateEmailMessage(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusBadRequest,
		`{"error":"email_taken","message":"email already registered"}`, nil)
	c := newController(t, f, srv)

	c.Register(context.Background(), "a@b.com", "A", "x")

	got := c.Current()
	if got.Status != StatusError || got.Message != "email already registered" {
		t.Fatalf("expected mapped duplicate-email error, got %+v", got)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusOK,
		`{"token":"T","user":{"id":"1","email":"a@b.com","name":"A"}}`, nil)
	c := newController(t, f, srv)

	c.Login(context.Background(), "a@b.com", "x")
	c.Logout(context.Background())

	if got := c.Current(); got.Status != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", got.Status)
	}
	if f.creds.Load() != "" {
		t.Fatal("expected empty credential sentinel after logout")
	}
	if got := f.profiles.Current(); got != (store.Profile{}) {
		t.Fatalf("expected absent profile fields, got %+v", got)
	}

	// Idempotent from any prior state.
	c.Logout(context.Background())
	if got := c.Current(); got.Status != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated after repeated logout, got %v", got.Status)
	}
}

func TestInitialStateFromPersistedCredential(t *testing.T) {
	f := newFixture(t)
	if err := f.creds.Save("persisted"); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	srv := authServer(t, http.StatusOK, `{}`, nil)

	c := newController(t, f, srv)
	if got := c.Current(); got.Status != StatusAuthenticated {
		t.Fatalf("expected session resume, got %v", got.Status)
	}
}

func TestExternalLogoutReachesObservers(t *testing.T) {
	f := newFixture(t)
	if err := f.creds.Save("tok"); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	srv := authServer(t, http.StatusOK, `{}`, nil)
	c := newController(t, f, srv)

	ch, cancel := c.Observe()
	defer cancel()
	if got := <-ch; got.Status != StatusAuthenticated {
		t.Fatalf("expected authenticated, got %v", got.Status)
	}

	// Credential cleared from elsewhere in the process.
	if err := f.creds.Clear(); err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got.Status == StatusUnauthenticated {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for unauthenticated state")
		}
	}
}

func TestLoginTransportErrorIsGeneric(t *testing.T) {
	f := newFixture(t)
	srv := authServer(t, http.StatusOK, `{}`, nil)
	srv.Close() // connection refused from here on
	client := api.New(srv.URL, f.creds, time.Second, nil)
	c := NewController(client, f.creds, f.profiles, nil)
	t.Cleanup(c.Close)

	c.Login(context.Background(), "a@b.com", "x")

	got := c.Current()
	if got.Status != StatusError || got.Message != "no connection to server" {
		t.Fatalf("expected generic transport error, got %+v", got)
	}
}
