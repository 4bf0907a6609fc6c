package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/pflag"

	"polling-client/internal/api"
	"polling-client/internal/auth"
	"polling-client/internal/config"
	"polling-client/internal/metrics"
	"polling-client/internal/platform/jwtx"
	"polling-client/internal/poll"
	"polling-client/internal/store"
)

const usage = `usage: pollcli <command> [flags]

commands:
  register  --email --name --password   create an account (then log in)
  login     --email --password          establish a session
  logout                                clear the session
  whoami                                show the stored session
  list                                  list polls
  vote      <poll-id> <option-id>       cast a vote
  create    --title --option ...        create a poll
  edit      --id [--title] [--option ...] [--open=<bool>]
  delete    <poll-id>                   delete a poll
`

// app is the composed object graph; every controller receives its
// collaborators here, at the single startup site.
type app struct {
	client   *api.Client
	creds    *store.CredentialStore
	profiles *store.SessionStore
	auth     *auth.Controller
	log      *slog.Logger
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	key, err := store.Key(cfg.SecretKey, cfg.DataDir)
	if err != nil {
		log.Fatalf("key error: %v", err)
	}
	db, err := store.Open(filepath.Join(cfg.DataDir, "client.db"))
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer db.Close()

	creds := store.NewCredentialStore(db, key, logger)
	profiles, err := store.NewSessionStore(db, logger)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}

	metrics.Register()

	client := api.New(cfg.BaseURL, creds, cfg.HTTPTimeout, logger)
	authCtrl := auth.NewController(client, creds, profiles, logger)
	defer authCtrl.Close()

	a := &app{client: client, creds: creds, profiles: profiles, auth: authCtrl, log: logger}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	runErr := a.run(ctx, os.Args[1], os.Args[2:])

	if cfg.DebugMetrics {
		if err := metrics.Dump(os.Stderr); err != nil {
			logger.Warn("metrics dump failed", "error", err)
		}
	}

	if runErr != nil {
		log.Fatalf("error: %v", runErr)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.auth.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "list":
		return a.list(ctx)
	case "vote":
		return a.vote(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("register", pflag.ExitOnError)
	email := flags.String("email", "", "account email")
	name := flags.String("name", "", "display name")
	password := flags.String("password", "", "account password")
	if err := flags.Parse(args); err != nil {
		return err
	}

	a.auth.Register(ctx, *email, *name, *password)

	state := a.auth.Current()
	if state.Status == auth.StatusError {
		return fmt.Errorf("%s", state.Message)
	}
	fmt.Println(state.Message)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	if err := flags.Parse(args); err != nil {
		return err
	}

	a.auth.Login(ctx, *email, *password)

	state := a.auth.Current()
	if state.Status != auth.StatusAuthenticated {
		return fmt.Errorf("%s", state.Message)
	}
	fmt.Printf("logged in as %s\n", a.profiles.Current().DisplayName)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	token := a.creds.Load()
	if token == "" {
		fmt.Println("not logged in")
		return nil
	}

	profile := a.profiles.Current()
	fmt.Printf("user:  %s <%s> (id %s)\n", profile.DisplayName, profile.Email, profile.UserID)

	// Expiry is display-only, decoded without the server's key.
	if claims, err := jwtx.Inspect(token); err == nil && claims.ExpiresAt != nil {
		fmt.Printf("token: expires %s\n", claims.ExpiresAt.Format("2006-01-02 15:04:05"))
	}

	me, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("server: %s <%s> active=%v\n", me.Name, me.Email, me.Active)
	return nil
}

func (a *app) list(ctx context.Context) error {
	list := poll.NewListController(a.client, a.log)
	list.Load(ctx)

	state := list.Current()
	if state.Error != "" {
		return fmt.Errorf("%s", state.Error)
	}
	if len(state.Polls) == 0 {
		fmt.Println("no polls")
		return nil
	}
	for _, p := range state.Polls {
		printPoll(p)
	}
	return nil
}

func (a *app) vote(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: pollcli vote <poll-id> <option-id>")
	}

	list := poll.NewListController(a.client, a.log)
	list.Vote(ctx, args[0], args[1])

	state := list.Current()
	if state.Error != "" {
		return fmt.Errorf("%s", state.Error)
	}
	for _, p := range state.Polls {
		if p.ID == args[0] {
			printPoll(p)
		}
	}
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("create", pflag.ExitOnError)
	title := flags.String("title", "", "poll title")
	options := flags.StringArray("option", nil, "poll option (repeatable)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	creator := poll.NewCreator(a.client, a.log)
	creator.SetTitle(*title)
	for i, text := range *options {
		if i >= 2 {
			creator.AddOption()
		}
		creator.SetOption(i, text)
	}
	creator.Submit(ctx)

	state := creator.Current()
	if state.Error != "" {
		return fmt.Errorf("%s", state.Error)
	}
	if state.Created != nil {
		fmt.Printf("created poll %s\n", state.Created.ID)
		printPoll(*state.Created)
	} else {
		fmt.Println("created")
	}
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("edit", pflag.ExitOnError)
	id := flags.String("id", "", "poll id")
	title := flags.String("title", "", "new title")
	options := flags.StringArray("option", nil, "replacement option (repeatable)")
	open := flags.Bool("open", true, "open or close the poll")
	if err := flags.Parse(args); err != nil {
		return err
	}

	editor := poll.NewEditor(a.client, *id, a.log)
	editor.Load(ctx)
	if state := editor.Current(); state.Error != "" {
		return fmt.Errorf("%s", state.Error)
	}

	if flags.Changed("title") {
		editor.SetTitle(*title)
	}
	if flags.Changed("option") {
		current := editor.Current()
		for len(current.Options) > len(*options) {
			editor.RemoveOption(len(current.Options) - 1)
			current = editor.Current()
		}
		for i, text := range *options {
			if i >= len(current.Options) {
				editor.AddOption()
				current = editor.Current()
			}
			editor.SetOption(i, text)
		}
	}
	if flags.Changed("open") && editor.Current().IsOpen != *open {
		editor.ToggleOpen()
	}

	editor.Submit(ctx)

	state := editor.Current()
	if state.Error != "" {
		return fmt.Errorf("%s", state.Error)
	}
	fmt.Println("saved")
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: pollcli delete <poll-id>")
	}

	list := poll.NewListController(a.client, a.log)
	list.Delete(ctx, args[0])

	state := list.Current()
	if state.Error != "" {
		return fmt.Errorf("%s", state.Error)
	}
	fmt.Println("deleted")
	return nil
}

func printPoll(p api.Poll) {
	status := "open"
	if !p.IsOpen {
		status = "closed"
	}
	fmt.Printf("%s  %s  [%s]\n", p.ID, p.Title, status)
	for _, opt := range p.Options {
		marker := " "
		if p.Voted && p.SelectedOptionID == opt.ID {
			marker = "*"
		}
		fmt.Printf("  %s %s  %s (%d)\n", marker, opt.ID, opt.Text, opt.VotesCount)
	}
}
