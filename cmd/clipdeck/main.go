package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"clipdeck/internal/apiclient"
	"clipdeck/internal/app"
	"clipdeck/internal/catalog"
	"clipdeck/internal/cli"
	"clipdeck/internal/config"
	"clipdeck/internal/control"
	"clipdeck/internal/downloader"
	"clipdeck/internal/downloads"
	"clipdeck/internal/gate"
	"clipdeck/internal/mpv"
	"clipdeck/internal/ui"
	"clipdeck/pkg/models"
)

const Version = "0.1.0"

func main() {
	cliApp := cli.NewCLI(Version)

	if len(os.Args) < 2 {
		cliApp.PrintHelp(os.Stderr)
		os.Exit(1)
	}

	cmd, err := cliApp.ParseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		cliApp.PrintHelp(os.Stderr)
		os.Exit(1)
	}

	if cmd.Type == cli.CommandHelp {
		cliApp.PrintHelp(os.Stdout)
		os.Exit(0)
	}

	if cmd.Type == cli.CommandVersion {
		cliApp.PrintVersion(os.Stdout)
		os.Exit(0)
	}

	os.Exit(executeCommand(cmd))
}

// env holds what every command needs: effective config, logger, and a
// client carrying the remembered session
type env struct {
	cfg         *models.Config
	logger      *slog.Logger
	client      *apiclient.Client
	sessionPath string
}

func setup() (*env, error) {
	if err := config.LoadEnvFiles(".env.local", ".env"); err != nil {
		return nil, err
	}

	cfgMgr, err := config.NewManager(config.GetDefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	cfg, err := cfgMgr.Effective()
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	client, err := apiclient.New(cfg.ServerURL, logger)
	if err != nil {
		return nil, err
	}

	sessionPath := config.GetDefaultSessionPath()
	session, err := config.LoadSession(sessionPath)
	if err != nil {
		logger.Warn("ignoring unreadable session file", "path", sessionPath, "error", err)
	}
	client.SetSessionToken(session.TokenFor(client.BaseURL()))

	return &env{
		cfg:         cfg,
		logger:      logger,
		client:      client,
		sessionPath: sessionPath,
	}, nil
}

func executeCommand(cmd *cli.Command) int {
	e, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd.Type {
	case cli.CommandPlay, cli.CommandServe:
		return runPlay(ctx, e, cmd)
	case cli.CommandList:
		return runList(ctx, e)
	case cli.CommandDownload:
		return runDownload(ctx, e, cmd.Name)
	case cli.CommandLogin:
		return runLogin(ctx, e, gate.Credentials{Username: cmd.Username, Password: cmd.Password})
	case cli.CommandLogout:
		return runLogout(ctx, e)
	case cli.CommandPasswd:
		return runPasswd(ctx, e, gate.PasswordChange{
			Password:       cmd.Password,
			NewPassword:    cmd.NewPassword,
			RepeatPassword: cmd.RepeatPassword,
		})
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd.String())
		return 1
	}
}

// requireLogin sends an unauthenticated user to the login command
func requireLogin(ctx context.Context, e *env) bool {
	if gate.Resolve(gate.RouteRoot, e.client.CheckAuth(ctx)) == gate.RouteLogin {
		fmt.Fprintf(os.Stderr, "Not logged in to %s\n", e.client.BaseURL())
		fmt.Fprintln(os.Stderr, "Run 'clipdeck login -user <name> -password <password>' first")
		return false
	}
	return true
}

func openStore(e *env) (*downloads.Store, error) {
	store, err := downloads.NewStore(config.DownloadPath(e.cfg), e.cfg.DownloadMaxSizeGB)
	if err != nil {
		return nil, fmt.Errorf("error opening downloads folder: %w", err)
	}
	return store, nil
}

func runPlay(ctx context.Context, e *env, cmd *cli.Command) int {
	if !requireLogin(ctx, e) {
		return 1
	}

	store, err := openStore(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var headers []string
	if cookie := e.client.CookieHeader(); cookie != "" {
		headers = append(headers, "Cookie: "+cookie)
	}

	mpvPlayer, err := mpv.Start(ctx, mpv.Options{
		Path:    e.cfg.MpvPath,
		Title:   "clipdeck",
		Headers: headers,
		Resolve: e.client.ResolveURL,
		Logger:  e.logger,
	})
	if err != nil {
		if errors.Is(err, mpv.ErrNotAvailable) {
			fmt.Fprintf(os.Stderr, "Error: %q not found, install mpv or set %s\n", e.cfg.MpvPath, config.EnvMpvPath)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error starting mpv: %v\n", err)
		return 1
	}
	defer mpvPlayer.Close()

	dl := downloader.NewDownloader(e.client, store, e.logger)
	console := ui.NewConsole(os.Stdout)
	session := app.New(app.Options{
		Handle:       mpvPlayer,
		Lister:       e.client,
		Downloader:   dl,
		Notifier:     ui.NewNotifier(console),
		Logger:       e.logger,
		SizeDecimals: e.cfg.SizeDecimals,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go session.Run(ctx)

	if cmd.Control || e.cfg.ControlEnabled {
		port := e.cfg.ControlPort
		if cmd.Port != 0 {
			port = cmd.Port
		}
		server := control.NewServer(port, session, dl, e.logger)
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting control API: %v\n", err)
			return 1
		}
		defer server.Stop()
		console.Printf("Control API on http://%s\n", server.GetActualAddr())
	}

	go announceCatalog(ctx, session, console)

	replDone := make(chan struct{})
	if cmd.Type == cli.CommandPlay {
		go func() {
			defer close(replDone)
			ui.New(session, os.Stdin, console).Run(ctx)
		}()
	} else {
		console.Printf("Press Ctrl+C to stop\n")
	}

	select {
	case <-ctx.Done():
	case <-replDone:
	case <-mpvPlayer.Exited():
		e.logger.Info("mpv exited")
	case <-session.Done():
	}

	cancel()
	<-session.Done()
	return 0
}

// announceCatalog prints the grid once the first load settles
func announceCatalog(ctx context.Context, session *app.App, console *ui.Console) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Changes():
		}

		snap, err := session.Snapshot()
		if err != nil {
			return
		}
		if snap.Loaded || snap.LoadError != "" {
			console.With(func(w io.Writer) {
				fmt.Fprintln(w)
				ui.RenderGrid(w, snap)
			})
			console.Printf("> ")
			return
		}
	}
}

func runList(ctx context.Context, e *env) int {
	if !requireLogin(ctx, e) {
		return 1
	}

	cat := catalog.New()
	if err := cat.Load(ctx, e.client); err != nil {
		fmt.Fprintf(os.Stderr, "Error listing media: %v\n", err)
		return 1
	}

	ui.RenderGrid(os.Stdout, app.CatalogSnapshot(cat.Assets(), e.cfg.SizeDecimals))
	return 0
}

func runDownload(ctx context.Context, e *env, name string) int {
	if !requireLogin(ctx, e) {
		return 1
	}

	store, err := openStore(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	dl := downloader.NewDownloader(e.client, store, e.logger)
	req := dl.Download(ctx, models.VideoPath(name), name)
	if req.Error != nil {
		fmt.Fprintf(os.Stderr, "%s\n", app.DownloadWarning)
		e.logger.Error("download failed", "file", name, "error", req.Error)
		return 1
	}

	path, err := store.Path(req.Entry.FileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Saved %s\n", path)
	return 0
}

func runLogin(ctx context.Context, e *env, creds gate.Credentials) int {
	if err := e.client.Login(ctx, creds); err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		return 1
	}

	err := config.SaveSession(e.sessionPath, config.Session{
		ServerURL: e.client.BaseURL(),
		Token:     e.client.SessionToken(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Logged in to %s as %s\n", e.client.BaseURL(), creds.Username)
	return 0
}

func runLogout(ctx context.Context, e *env) int {
	if err := e.client.Logout(ctx); err != nil {
		e.logger.Warn("server logout failed", "error", err)
	}

	if err := config.ClearSession(e.sessionPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("Logged out")
	return 0
}

func runPasswd(ctx context.Context, e *env, req gate.PasswordChange) int {
	if !requireLogin(ctx, e) {
		return 1
	}

	if err := e.client.ChangePassword(ctx, req); err != nil {
		fmt.Fprintf(os.Stderr, "Password change failed: %v\n", err)
		return 1
	}

	fmt.Println("Password changed")
	return 0
}
