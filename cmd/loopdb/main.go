// loopdb opens a SQLite database behind an event loop, republishes its row
// changes on MQTT and records statement metrics in InfluxDB.
//
// Run without --exec or --vacuum it serves until interrupted, including the
// HTTP API when api.enabled is set. With either flag it performs that one
// operation, prints the result and exits. --issue-token prints a signed API
// token and exits without opening the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/loopdb/internal/api"
	"github.com/nerrad567/loopdb/internal/auth"
	"github.com/nerrad567/loopdb/internal/changefeed"
	"github.com/nerrad567/loopdb/internal/eventloop"
	"github.com/nerrad567/loopdb/internal/infrastructure/config"
	"github.com/nerrad567/loopdb/internal/infrastructure/database"
	"github.com/nerrad567/loopdb/internal/infrastructure/influxdb"
	"github.com/nerrad567/loopdb/internal/infrastructure/logging"
	"github.com/nerrad567/loopdb/internal/infrastructure/mqtt"
	"github.com/nerrad567/loopdb/internal/params"
	"github.com/nerrad567/loopdb/internal/translate"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is read when present; otherwise built-in defaults apply.
	defaultConfigPath = "configs/loopdb.yaml"

	// shutdownTimeout bounds the work posted to the loop while stopping.
	shutdownTimeout = 10 * time.Second
)

// options holds the parsed command line.
type options struct {
	configPath string
	exec       string
	mode       string
	positional []string
	named      []string
	vacuum     bool
	issueToken string
	role       string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads args into options. help is true when usage was printed.
func parseFlags(args []string, stderr io.Writer) (opts options, help bool, err error) {
	flagSet := pflag.NewFlagSet("loopdb", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (env LOOPDB_CONFIG)")
	flagSet.StringVarP(&opts.exec, "exec", "e", "", "SQL statement to execute once and exit")
	flagSet.StringVarP(&opts.mode, "mode", "m", "all", "result mode for --exec: run, one, all or each")
	flagSet.StringArrayVarP(&opts.positional, "param", "p", nil, "positional parameter for ? placeholders (repeatable)")
	flagSet.StringArrayVarP(&opts.named, "named", "n", nil, "named parameter name=value for :name placeholders (repeatable)")
	flagSet.BoolVar(&opts.vacuum, "vacuum", false, "rebuild the database file and exit")
	flagSet.StringVar(&opts.issueToken, "issue-token", "", "print an API token for this subject and exit")
	flagSet.StringVar(&opts.role, "role", string(auth.RoleReader), "role for --issue-token: reader, writer or admin")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, true, nil
		}
		return opts, false, err
	}
	if flagSet.NArg() > 0 {
		return opts, false, fmt.Errorf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}
	return opts, false, nil
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, help, err := parseFlags(args, os.Stderr)
	if err != nil || help {
		return err
	}

	container, err := buildParams(opts.positional, opts.named)
	if err != nil {
		return err
	}
	mode, err := parseMode(opts.mode)
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.issueToken != "" {
		token, err := auth.GenerateAccessToken(opts.issueToken, auth.Role(opts.role),
			cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}
		fmt.Fprintln(stdout, token)
		return nil
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting loopdb",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	if cfg.Database.SharedCache {
		if err := database.EnableSharedCache(true); err != nil {
			return fmt.Errorf("enabling shared cache: %w", err)
		}
		log.Info("shared cache enabled")
	}

	// The loop is the owning context of the connection: Open runs on it
	// and change listeners are delivered there.
	loop := eventloop.New(cfg.EventLoop)
	loop.SetLogger(log)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	conn, err := openConnection(ctx, loop, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database opened", "path", conn.Path(), "id", conn.ID())

	if dir := cfg.Database.MigrationsDir; dir != "" {
		if err := conn.Migrate(ctx, os.DirFS(dir), "."); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete", "dir", dir)
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		conn.SetObserver(influxClient.Observer(conn.ID()))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		feed := changefeed.New(mqttClient, mqttClient.Topics(), cfg.MQTT.BufferSize)
		feed.SetLogger(log)
		detach := feed.Attach(conn)
		if err := feed.Start(ctx); err != nil {
			detach()
			return fmt.Errorf("starting change feed: %w", err)
		}
		// Runs before the MQTT client closes so buffered changes get out.
		defer func() {
			detach()
			feed.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	if err := healthCheck(ctx, conn, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if opts.vacuum {
		if err := conn.Vacuum(ctx); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		log.Info("vacuum complete")
	}

	if opts.exec != "" {
		if err := execute(ctx, loop, conn, mode, opts.exec, container, stdout); err != nil {
			return err
		}
	}

	if opts.vacuum || opts.exec != "" {
		return flush(loop)
	}

	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Conn:     conn,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		if cfg.Security.JWT.Secret == "" {
			log.Warn("API running without a JWT secret; every caller is admin")
		}
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return flush(loop)
}

// openConnection opens the database on the loop goroutine.
func openConnection(ctx context.Context, loop *eventloop.Loop, cfg *config.Config, log *logging.Logger) (*database.Connection, error) {
	var (
		conn    *database.Connection
		openErr error
	)
	doErr := loop.Do(ctx, func() {
		conn, openErr = database.Open(eventloop.WithDispatcher(ctx, loop), database.Config{
			Path:              cfg.Database.Path,
			WALMode:           cfg.Database.WALMode,
			BusyTimeout:       cfg.Database.BusyTimeout,
			CreateDirs:        cfg.Database.CreateDirs,
			CollationLanguage: cfg.Database.CollationLanguage,
			Translator:        translate.FromConfig(cfg.Translation),
			Logger:            log,
		})
	})
	if doErr != nil {
		return nil, fmt.Errorf("opening database: %w", doErr)
	}
	if openErr != nil {
		return nil, fmt.Errorf("opening database: %w", openErr)
	}
	return conn, nil
}

// execute runs query once in mode and writes the result to w.
func execute(ctx context.Context, loop *eventloop.Loop, conn *database.Connection,
	mode database.Mode, query string, p params.Container, w io.Writer) error {
	switch mode {
	case database.ModeRun:
		if err := conn.Run(ctx, query, p); err != nil {
			return fmt.Errorf("executing statement: %w", err)
		}
		id, err := conn.LastInsertRowID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "last_insert_rowid=%d\n", id)
	case database.ModeOne:
		row, err := conn.One(ctx, query, p)
		if err != nil {
			return fmt.Errorf("executing statement: %w", err)
		}
		if row != "" {
			fmt.Fprintln(w, row)
		}
	case database.ModeAll:
		rows, err := conn.All(ctx, query, p)
		if err != nil {
			return fmt.Errorf("executing statement: %w", err)
		}
		fmt.Fprintln(w, rows)
	case database.ModeEach:
		err := conn.Each(ctx, query, p, func(row string) {
			fmt.Fprintln(w, row)
		})
		if err != nil {
			return fmt.Errorf("executing statement: %w", err)
		}
		// Rows are delivered on the loop; wait for them.
		if err := loop.Do(ctx, func() {}); err != nil {
			return fmt.Errorf("delivering rows: %w", err)
		}
	}
	return nil
}

// flush waits for work already queued on the loop, such as pending change
// notifications.
func flush(loop *eventloop.Loop) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := loop.Do(ctx, func() {}); err != nil {
		return fmt.Errorf("flushing event loop: %w", err)
	}
	return nil
}

func parseMode(s string) (database.Mode, error) {
	switch strings.ToLower(s) {
	case "run":
		return database.ModeRun, nil
	case "one":
		return database.ModeOne, nil
	case "all", "":
		return database.ModeAll, nil
	case "each":
		return database.ModeEach, nil
	default:
		return 0, fmt.Errorf("unknown mode %q: want run, one, all or each", s)
	}
}

// buildParams turns --param and --named values into a container. The two
// kinds cannot be mixed.
func buildParams(positional, named []string) (params.Container, error) {
	switch {
	case len(positional) > 0 && len(named) > 0:
		return params.Container{}, errors.New("--param and --named cannot be combined")
	case len(positional) > 0:
		values := make([]any, len(positional))
		for i, raw := range positional {
			values[i] = parseValue(raw)
		}
		return params.Positional(values...), nil
	case len(named) > 0:
		values := make(map[string]any, len(named))
		for _, pair := range named {
			name, raw, ok := strings.Cut(pair, "=")
			name = strings.TrimPrefix(name, ":")
			if !ok || name == "" {
				return params.Container{}, fmt.Errorf("invalid --named %q: want name=value", pair)
			}
			values[name] = parseValue(raw)
		}
		return params.Named(values), nil
	default:
		return params.None(), nil
	}
}

// parseValue gives command-line values a SQL type: integers and floats
// bind as numbers, the word null binds NULL, anything else is text.
func parseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// loadConfig resolves the config path (flag, then LOOPDB_CONFIG, then the
// default location) and loads it. A missing default file falls back to
// built-in defaults; an explicitly named file must exist.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := getConfigPath(flagPath)
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "(defaults)", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("LOOPDB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func healthCheck(ctx context.Context, conn *database.Connection, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := conn.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
