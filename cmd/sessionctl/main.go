// Command sessionctl drives the session client from a terminal. Every
// subcommand bootstraps the persisted session first, so "login" followed by
// "whoami" in a later process reports the same user.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/identity"
	"github.com/tlobni/session-core/internal/core/ports"
	"github.com/tlobni/session-core/internal/core/service"
	"github.com/tlobni/session-core/internal/infrastructure/db/memory"
	"github.com/tlobni/session-core/internal/infrastructure/db/redis"
	"github.com/tlobni/session-core/internal/infrastructure/storage/securefile"
	"github.com/tlobni/session-core/internal/infrastructure/transport/apiclient"
	"github.com/tlobni/session-core/internal/pkg/config"
	"github.com/tlobni/session-core/pkg/logger"
)

const usage = `Usage: sessionctl <command> [flags]

Commands:
  whoami           print the signed-in user
  login            sign in with --email and --password
  register         create an account and sign in
  logout           sign out and forget the stored session
  forgot-password  request a password reset link for --email
  reset-password   set a new password with --token and --password

Settings are read from the environment (API_URL, SESSION_BACKEND,
SESSION_PATH, SESSION_SECRET, REDIS_ADDR, LOG_LEVEL).
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, nil)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command func(ctx context.Context, ctl *service.AuthController, args []string, out io.Writer) error

var commands = map[string]command{
	"whoami":          whoami,
	"login":           login,
	"register":        register,
	"logout":          logout,
	"forgot-password": forgotPassword,
	"reset-password":  resetPassword,
}

// run executes one subcommand. Settings are read through env; nil means the
// process environment.
func run(ctx context.Context, args []string, out io.Writer, env envconfig.Lookuper) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}

	cfg, err := config.LoadClient(ctx, env)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "sessionctl",
		Env:     cfg.Env,
	})

	ctl, closeStore, err := newController(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	state, err := ctl.Bootstrap(ctx)
	if err != nil {
		log.Warn().Err(err).Str("state", state.String()).Msg("bootstrap")
	}
	return cmd(ctx, ctl, args[1:], out)
}

func newController(ctx context.Context, cfg *config.Client, log zerolog.Logger) (*service.AuthController, func(), error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	tr, err := apiclient.New(apiclient.Config{
		BaseURL:       cfg.API.URL,
		Timeout:       cfg.API.Timeout,
		SessionCookie: cfg.API.SessionCookie,
	}, apiclient.WithLogger(logger.Component("transport")))
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	cache := identity.New(identity.WithStaleAfter(cfg.CacheStaleAfter))
	return service.NewAuthController(tr, store, cache, log), closeStore, nil
}

func openStore(ctx context.Context, cfg *config.Client) (ports.SessionStore, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendRedis:
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, nil, err
		}
		return redis.NewSessionStore(client, cfg.Session.DeviceID, cfg.Session.TTL), func() { _ = client.Close() }, nil
	case config.BackendMemory:
		return memory.NewSessionStore(), func() {}, nil
	default:
		store, err := securefile.New(cfg.Session.Path, cfg.Session.Secret)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *pflag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("%s: unexpected argument %q", fs.Name(), rest[0])
	}
	for _, name := range required {
		if v, _ := fs.GetString(name); v == "" {
			return fmt.Errorf("%s: --%s is required", fs.Name(), name)
		}
	}
	return nil
}

func whoami(_ context.Context, ctl *service.AuthController, args []string, out io.Writer) error {
	if err := parse(newFlagSet("whoami"), args); err != nil {
		return err
	}
	state := ctl.State()
	if !state.IsAuthenticated() {
		fmt.Fprintln(out, state.String())
		return nil
	}
	return printUser(out, state.User)
}

func login(ctx context.Context, ctl *service.AuthController, args []string, out io.Writer) error {
	var in ports.LoginInput
	fs := newFlagSet("login")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "account password")
	if err := parse(fs, args, "email", "password"); err != nil {
		return err
	}

	user, err := ctl.Login(ctx, in)
	if err != nil {
		return err
	}
	return printUser(out, user)
}

func register(ctx context.Context, ctl *service.AuthController, args []string, out io.Writer) error {
	var (
		in   ports.RegisterInput
		role string
	)
	fs := newFlagSet("register")
	fs.StringVar(&in.Username, "username", "", "unique username")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "account password")
	fs.StringVar(&in.FullName, "full-name", "", "display name")
	fs.StringVar(&role, "role", string(domain.RoleClient), "client, expert or business")
	if err := parse(fs, args); err != nil {
		return err
	}
	in.Role = domain.Role(role)

	user, err := ctl.Register(ctx, in)
	if err != nil {
		return err
	}
	return printUser(out, user)
}

func logout(ctx context.Context, ctl *service.AuthController, args []string, out io.Writer) error {
	if err := parse(newFlagSet("logout"), args); err != nil {
		return err
	}
	if err := ctl.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logged out")
	return nil
}

func forgotPassword(ctx context.Context, ctl *service.AuthController, args []string, out io.Writer) error {
	var email string
	fs := newFlagSet("forgot-password")
	fs.StringVar(&email, "email", "", "account email")
	if err := parse(fs, args, "email"); err != nil {
		return err
	}
	if err := ctl.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(out, "If that email is registered, a reset link has been sent")
	return nil
}

func resetPassword(ctx context.Context, ctl *service.AuthController, args []string, out io.Writer) error {
	var token, password string
	fs := newFlagSet("reset-password")
	fs.StringVar(&token, "token", "", "reset token from the link")
	fs.StringVar(&password, "password", "", "new password")
	if err := parse(fs, args, "token", "password"); err != nil {
		return err
	}
	if err := ctl.ResetPassword(ctx, token, password); err != nil {
		return err
	}
	fmt.Fprintln(out, "Password updated")
	return nil
}

func printUser(out io.Writer, user *domain.User) error {
	if user == nil {
		return errors.New("no user")
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(user)
}
