package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"planner/internal/auth"
	"planner/internal/config"
	"planner/internal/ics"
	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/refresh"
	"planner/internal/service"
	"planner/internal/store"
	"planner/internal/web"
)

const version = "0.1.0"

// flagConfig holds the global CLI flags shared by every subcommand.
type flagConfig struct {
	configPath string
	listen     string
}

// app is everything a subcommand needs once config is loaded.
type app struct {
	cfg    *config.Config
	store  store.Store
	events *service.EventService
	users  *service.UserService
	auth   *service.AuthService
}

func main() {
	flags, args := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.Init(os.Stderr, appLog.ParseLevel(conf.LogLevel), conf.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if err := checkStore(cmd, conf); err != nil {
		appLog.Error("startup failed", err)
		os.Exit(1)
	}
	a, err := newApp(ctx, conf)
	if err != nil {
		appLog.Error("startup failed", err)
		os.Exit(1)
	}
	defer a.store.Close()

	switch cmd {
	case "serve":
		err = a.serve(ctx)
	case "adduser":
		err = a.addUser(ctx, args)
	case "export":
		err = a.export(ctx, args)
	case "import":
		err = a.importFile(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q (want serve, adduser, export or import)", cmd)
	}
	if err != nil {
		appLog.Error(cmd+" failed", err)
		os.Exit(1)
	}
}

func parseFlags() (flagConfig, []string) {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/planner/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [serve|adduser|export|import] [command flags]\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	return cfg, flag.Args()
}

// checkStore refuses one-shot commands that would otherwise write into an
// in-memory store and lose everything on exit.
func checkStore(cmd string, conf *config.Config) error {
	if conf.Database.DSN != "" {
		return nil
	}
	switch cmd {
	case "adduser", "export", "import":
		return fmt.Errorf("%s needs a database: set database.dsn or %s", cmd, config.EnvDatabaseDSN)
	}
	return nil
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	var st store.Store
	if conf.Database.DSN == "" {
		appLog.Warn("no database configured, using in-memory store")
		st = store.NewMemory()
	} else {
		pool, err := store.NewPool(ctx, conf.Database.DSN, conf.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		st = pg
	}

	secret := conf.Auth.TokenSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		appLog.Warn("auth.token_secret not set, sessions will not survive a restart",
			"env", config.EnvTokenSecret)
	}
	tokens, err := auth.NewTokens(secret, conf.Auth.TokenTTL, conf.Auth.Issuer)
	if err != nil {
		st.Close()
		return nil, err
	}

	users := service.NewUserService(st)
	return &app{
		cfg:    conf,
		store:  st,
		events: service.NewEventService(st, conf.HorizonMonths, conf.Location()),
		users:  users,
		auth:   service.NewAuthService(st, users, tokens),
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	appLog.Info("planner starting",
		"version", version,
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"horizon_months", a.cfg.HorizonMonths,
		"refresh", a.cfg.RefreshCron,
	)

	sched, err := refresh.New(a.events, a.cfg.RefreshCron, a.cfg.Location())
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		// The schedule retries; serve whatever is loaded meanwhile.
		appLog.Warn("initial load failed", "err", err)
	}

	srv := web.NewServer(a.cfg, web.Deps{
		Events:  a.events,
		Users:   a.users,
		Auth:    a.auth,
		Fetcher: ics.NewFetcher(nil),
	})
	httpServer := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", a.cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			sched.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown", err)
	}
	sched.Stop()
	appLog.Info("planner exiting")
	return nil
}

// addUser registers an account from the terminal. The password is read
// without echo when stdin is a terminal.
func (a *app) addUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	email := fs.String("email", "", "Account email")
	name := fs.String("name", "", "Display name")
	color := fs.String("color", "", "User color (defaults to the next palette color)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return errors.New("adduser: -email and -name are required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if *color == "" {
		if *color, err = a.users.NextColor(ctx); err != nil {
			return err
		}
	}

	u, err := a.auth.Register(ctx, *email, password, *name, *color)
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s)\n", u.ID, u.Email)
	return nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

// export writes one user's events, including those shared with them, as
// an iCalendar file.
func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	userID := fs.String("user", "", "User id whose events are exported")
	out := fs.String("out", "-", "Output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("export: -user is required")
	}

	events, err := a.events.ListByFilter(ctx, model.EventFilter{
		UserIDs:       []string{*userID},
		IncludeShared: true,
	})
	if err != nil {
		return err
	}
	body := ics.Export(events, ics.ExportOptions{Name: "planner", Now: time.Now(), Location: a.cfg.Location()})

	if *out == "-" {
		_, err = os.Stdout.WriteString(body)
		return err
	}
	if err := os.WriteFile(*out, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	appLog.Info("calendar exported", "user", *userID, "events", len(events), "path", *out)
	return nil
}

// importFile creates events owned by -user from a local .ics file.
func (a *app) importFile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	userID := fs.String("user", "", "User id that will own the imported events")
	path := fs.String("file", "", "Path to an .ics file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" || *path == "" {
		return errors.New("import: -user and -file are required")
	}
	if _, err := a.users.Get(ctx, *userID); err != nil {
		return fmt.Errorf("import: user %s: %w", *userID, err)
	}

	body, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read %s: %w", *path, err)
	}
	res, err := ics.Import(auth.WithUserID(ctx, *userID), a.events, body, a.cfg.Location())
	if err != nil {
		return err
	}
	fmt.Printf("imported %d events, %d failed\n", len(res.Imported), res.Failed)
	return nil
}
