package stubserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"polling-client/internal/api"
	"polling-client/internal/auth"
	"polling-client/internal/metrics"
	"polling-client/internal/platform/secretbox"
	pollctl "polling-client/internal/poll"
	"polling-client/internal/store"
)

// harness wires the full client stack against an in-process stub backend,
// the same composition the CLI performs at startup.
type harness struct {
	baseURL  string
	client   *api.Client
	creds    *store.CredentialStore
	profiles *store.SessionStore
	auth     *auth.Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	stub := New(Options{JWTSecret: "test-secret"})
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	key, err := secretbox.NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	creds := store.NewCredentialStore(db, key, nil)
	profiles, err := store.NewSessionStore(db, nil)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}

	client := api.New(srv.URL, creds, 2*time.Second, nil)
	controller := auth.NewController(client, creds, profiles, nil)
	t.Cleanup(controller.Close)

	return &harness{baseURL: srv.URL, client: client, creds: creds, profiles: profiles, auth: controller}
}

func (h *harness) loginAs(t *testing.T, email, name, password string) {
	t.Helper()
	ctx := context.Background()

	h.auth.Register(ctx, email, name, password)
	if got := h.auth.Current(); got.Status != auth.StatusUnauthenticated {
		t.Fatalf("register must leave the session unauthenticated, got %v (%s)", got.Status, got.Message)
	}

	h.auth.Login(ctx, email, password)
	if got := h.auth.Current(); got.Status != auth.StatusAuthenticated {
		t.Fatalf("login failed: %v (%s)", got.Status, got.Message)
	}
}

func TestRegisterLoginLogoutAgainstStub(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.auth.Register(ctx, "a@b.com", "A", "x")
	if got := h.auth.Current().Message; got != "account created, please log in" {
		t.Fatalf("unexpected register message: %q", got)
	}
	if h.creds.Load() != "" {
		t.Fatal("register must not persist a credential")
	}

	// Duplicate registration maps to the specific message.
	h.auth.Register(ctx, "a@b.com", "A", "x")
	if got := h.auth.Current(); got.Status != auth.StatusError || got.Message != "email already registered" {
		t.Fatalf("unexpected duplicate register state: %+v", got)
	}

	h.auth.Login(ctx, "a@b.com", "x")
	if got := h.auth.Current(); got.Status != auth.StatusAuthenticated {
		t.Fatalf("login failed: %+v", got)
	}
	if h.creds.Load() == "" {
		t.Fatal("expected a persisted credential after login")
	}
	if got := h.profiles.Current(); got.Email != "a@b.com" || got.DisplayName != "A" || got.UserID == "" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	// The issued token is a readable JWT carrying the session expiry.
	me, err := h.client.Profile(ctx)
	if err != nil {
		t.Fatalf("profile fetch failed: %v", err)
	}
	if me.Email != "a@b.com" || !me.Active {
		t.Fatalf("unexpected profile response: %+v", me)
	}

	h.auth.Logout(ctx)
	if h.creds.Load() != "" {
		t.Fatal("expected empty credential after logout")
	}
	if got := h.profiles.Current(); got != (store.Profile{}) {
		t.Fatalf("expected cleared profile, got %+v", got)
	}
	if _, err := h.client.ListPolls(ctx); err == nil {
		t.Fatal("expected list to be rejected without a credential")
	}
}

func TestWrongPasswordAgainstStub(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.auth.Register(ctx, "a@b.com", "A", "x")
	h.auth.Login(ctx, "a@b.com", "wrong")

	got := h.auth.Current()
	if got.Status != auth.StatusError || got.Message != "invalid credentials" {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestCreateVoteReloadAgainstStub(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, "a@b.com", "A", "x")

	creator := pollctl.NewCreator(h.client, nil)
	creator.SetTitle("Lunch")
	creator.SetOption(0, "Pizza")
	creator.SetOption(1, "Sushi")
	creator.Submit(ctx)

	created := creator.Current()
	if !created.Success || created.Created == nil {
		t.Fatalf("create failed: %+v", created)
	}
	pollID := created.Created.ID
	optionID := created.Created.Options[1].ID

	list := pollctl.NewListController(h.client, nil)
	list.Load(ctx)
	if got := list.Current(); len(got.Polls) != 1 || got.Polls[0].Voted {
		t.Fatalf("unexpected initial list: %+v", got)
	}

	list.Vote(ctx, pollID, optionID)

	got := list.Current()
	if got.Error != "" {
		t.Fatalf("vote failed: %q", got.Error)
	}
	p := got.Polls[0]
	if !p.Voted || p.SelectedOptionID != optionID {
		t.Fatalf("expected reloaded poll voted with %s, got %+v", optionID, p)
	}
	if p.Options[1].VotesCount != 1 || p.Options[0].VotesCount != 0 {
		t.Fatalf("expected server-computed counts, got %+v", p.Options)
	}

	// The duplicate-vote contract: the server is not idempotent, the
	// client surfaces the mapped 409 and keeps its list untouched.
	before := got.Polls
	list.Vote(ctx, pollID, optionID)
	got = list.Current()
	if got.Error != "you already voted in this poll" {
		t.Fatalf("unexpected duplicate vote error: %q", got.Error)
	}
	if got.Polls[0].Options[1].VotesCount != before[0].Options[1].VotesCount {
		t.Fatal("failed vote must not change local counts")
	}
}

func TestLockedPollEditAgainstStub(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, "a@b.com", "A", "x")

	created, err := h.client.CreatePoll(ctx, "Lunch", []string{"Pizza", "Sushi"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := h.client.CastVote(ctx, created.ID, created.Options[0].ID); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	editor := pollctl.NewEditor(h.client, created.ID, nil)
	editor.Load(ctx)
	if editor.Current().CanEditOptions {
		t.Fatal("voted poll must lock options")
	}

	// Closed-state-only edit goes through with the options field omitted.
	editor.ToggleOpen()
	editor.Submit(ctx)
	got := editor.Current()
	if !got.Saved || got.Error != "" {
		t.Fatalf("open/closed edit must succeed, got %+v", got)
	}

	fetched, err := h.client.GetPoll(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetched.IsOpen {
		t.Fatal("expected the poll to be closed")
	}
	if len(fetched.Options) != 2 || fetched.Options[0].VotesCount != 1 {
		t.Fatalf("options must be untouched, got %+v", fetched.Options)
	}

	// Pushing option changes anyway is the server's call to reject.
	if _, err := h.client.UpdatePoll(ctx, created.ID, "Lunch", false, []string{"A", "B"}); err == nil {
		t.Fatal("expected 409 for option changes on a voted poll")
	} else if err.Error() != "poll options are locked once voted" {
		t.Fatalf("unexpected mapped error: %v", err)
	}

	// A title change with the options field omitted is rejected too.
	if _, err := h.client.UpdatePoll(ctx, created.ID, "Dinner", false, nil); err == nil {
		t.Fatal("expected 409 for a title change on a voted poll")
	} else if err.Error() != "poll options are locked once voted" {
		t.Fatalf("unexpected mapped error: %v", err)
	}
}

func TestDeletePollAgainstStub(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, "a@b.com", "A", "x")

	created, err := h.client.CreatePoll(ctx, "Lunch", []string{"Pizza", "Sushi"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list := pollctl.NewListController(h.client, nil)
	list.Load(ctx)
	list.Delete(ctx, created.ID)

	got := list.Current()
	if got.Error != "" || len(got.Polls) != 0 {
		t.Fatalf("expected empty reloaded list, got %+v", got)
	}
}

func TestMetricsEndpointServesOutboundCounters(t *testing.T) {
	metrics.Register()

	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, "a@b.com", "A", "x")

	if _, err := h.client.ListPolls(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	resp, err := http.Get(h.baseURL + "/metrics")
	if err != nil {
		t.Fatalf("metrics fetch failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	if !strings.Contains(string(body), "pollclient_outbound_requests_total") {
		t.Fatal("expected the outbound request counter to be scrapeable")
	}
}

func TestVoteRateLimit(t *testing.T) {
	stub := New(Options{JWTSecret: "test-secret", VotesPerMin: 1})
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	key, _ := secretbox.NewKey()
	creds := store.NewCredentialStore(db, key, nil)
	client := api.New(srv.URL, creds, 2*time.Second, nil)

	ctx := context.Background()
	resp, err := client.Register(ctx, "a@b.com", "A", "x")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	// The stub hands a token back on register; store it directly to act
	// as a raw API consumer here.
	if err := creds.Save(resp.Token); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	p1, err := client.CreatePoll(ctx, "One", []string{"A", "B"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	p2, err := client.CreatePoll(ctx, "Two", []string{"A", "B"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := client.CastVote(ctx, p1.ID, p1.Options[0].ID); err != nil {
		t.Fatalf("first vote must pass: %v", err)
	}
	err = client.CastVote(ctx, p2.ID, p2.Options[0].ID)
	if err == nil {
		t.Fatal("expected the second rapid vote to be rate limited")
	}
	if err.Error() != "server error (429)" {
		t.Fatalf("unexpected mapped error: %v", err)
	}
}
