package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"essay_reader/auth"
	"essay_reader/config"
	"essay_reader/essay"
	"essay_reader/favorite"
	"essay_reader/genclient"
	"essay_reader/generator"
	"essay_reader/logging"
	"essay_reader/metrics"
	"essay_reader/persistence"
	"essay_reader/persistence/postgres"
	"essay_reader/persistence/remote"
	"essay_reader/persistence/sqlite"
	"essay_reader/reader"
	"essay_reader/render"
	"essay_reader/server"
)

var verbose bool

func main() {
	configPath := flag.String("config", "", "path to config.json or config.toml")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	endpoint := flag.String("endpoint", "http://localhost:8080/api/generate-essay", "generation endpoint")
	subject := flag.String("subject", "", "essay subject")
	level := flag.String("level", string(essay.LevelUniversity), "reading level")
	asHTML := flag.Bool("html", false, "print the essay as HTML")
	save := flag.Bool("save", false, "save the generated essay (requires --token)")
	list := flag.Bool("list", false, "list saved essays (requires --token)")
	token := flag.String("token", os.Getenv("ESSAY_READER_TOKEN"), "access token for saved essays")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logLevel := cfg.Log.Level
	if verbose {
		logLevel = "debug"
	}
	logger, err := logging.New(logging.Options{Level: logLevel, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Web server mode
	if *serve {
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if err := runServer(cfg, listen, logger); err != nil {
			logger.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
		return
	}

	if *subject == "" && !*list {
		fmt.Fprintln(os.Stderr, "--subject is required (or use --serve / --list)")
		os.Exit(1)
	}
	opts := cliOptions{
		endpoint: *endpoint,
		subject:  *subject,
		level:    essay.ReadingLevel(*level),
		asHTML:   *asHTML,
		save:     *save,
		list:     *list,
		token:    *token,
		timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}
	if err := runCLI(cfg, opts, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildWriter(cfg config.Config, logger zerolog.Logger) (*generator.Writer, error) {
	llm, err := generator.BuildLLM(generator.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Options: generator.Options{
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}
	if _, ok := llm.(generator.Unconfigured); ok {
		logger.Warn().Str("provider", cfg.LLM.Provider).Msg("no provider key set; generation requests will fail with a configuration error")
	}
	return generator.NewWriter(llm, logging.Component(logger, "generator"))
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (persistence.Gateway, error) {
	storeLogger := logging.Component(logger, "store")
	switch cfg.Storage.Driver {
	case "postgres":
		g, err := postgres.Open(cfg.Storage.DSN, postgres.WithLogger(storeLogger))
		if err != nil {
			return nil, err
		}
		if err := g.Migrate(ctx); err != nil {
			_ = g.Close()
			return nil, err
		}
		return g, nil
	default:
		g, err := sqlite.Open(cfg.Storage.Path, sqlite.WithLogger(storeLogger))
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func runServer(cfg config.Config, listen string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := buildWriter(cfg, logger)
	if err != nil {
		return err
	}
	opts := []server.Option{
		server.WithCatalog(cfg.Catalog),
		server.WithMetrics(metrics.New()),
		server.WithLogger(logging.Component(logger, "server")),
		server.WithGenerateTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second),
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("no jwt secret set; saved essays API disabled")
	} else {
		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithStore(store), server.WithVerifier(verifier))
	}
	srv, err := server.New(writer, opts...)
	if err != nil {
		return err
	}
	if listen == "" {
		listen = ":8080"
	}

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info().Str("addr", listen).Str("storage", cfg.Storage.Driver).Msg("starting web server")

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

type cliOptions struct {
	endpoint string
	subject  string
	level    essay.ReadingLevel
	asHTML   bool
	save     bool
	list     bool
	token    string
	timeout  time.Duration
}

func runCLI(cfg config.Config, opts cliOptions, logger zerolog.Logger) error {
	ctx := context.Background()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	client, err := genclient.New(opts.endpoint,
		genclient.WithCatalog(cfg.Catalog),
		genclient.WithLogger(logging.Component(logger, "genclient")),
	)
	if err != nil {
		return err
	}
	base, err := serverBase(opts.endpoint)
	if err != nil {
		return err
	}
	gateway, err := remote.New(base, opts.token, remote.WithLogger(logging.Component(logger, "remote")))
	if err != nil {
		return err
	}
	var identity auth.Identity = auth.Anonymous
	if opts.token != "" {
		if identity, err = auth.SubjectOf(opts.token); err != nil {
			return err
		}
	}
	r := reader.New(client, gateway, identity, logger)

	if opts.list {
		records, err := r.Saved(ctx)
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Printf("%s  %s  %-12s  %s\n", rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Subject, render.Excerpt(rec.Content, 60))
		}
		if opts.subject == "" {
			return nil
		}
	}

	logger.Info().Str("subject", opts.subject).Str("reading_level", string(opts.level)).Msg("[cli] generating essay")
	e, err := r.Generate(ctx, opts.subject, opts.level)
	if err != nil && e.Content == "" {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("could not check saved status")
	}

	out := e.Content
	if opts.asHTML {
		if out, err = render.HTML(e.Content); err != nil {
			return err
		}
	}
	fmt.Println(out)

	if !opts.save {
		return nil
	}
	if r.FavoriteState() == favorite.Saved {
		logger.Info().Msg("[cli] essay already saved")
		return nil
	}
	if _, err := r.ToggleFavorite(ctx); err != nil {
		return err
	}
	cur, _ := r.Current()
	logger.Info().Str("id", cur.ID).Msg("[cli] essay saved")
	return nil
}

// serverBase strips the path from the generation endpoint.
func serverBase(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}
