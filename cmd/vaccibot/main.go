package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vaccibot/vaccibot/internal/actions"
	"github.com/vaccibot/vaccibot/internal/directory"
	"github.com/vaccibot/vaccibot/internal/flow"
	"github.com/vaccibot/vaccibot/internal/geoloc"
	"github.com/vaccibot/vaccibot/internal/links"
	"github.com/vaccibot/vaccibot/internal/messaging"
	"github.com/vaccibot/vaccibot/internal/models"
	"github.com/vaccibot/vaccibot/internal/store"
	"github.com/vaccibot/vaccibot/internal/util"
)

// Default configuration constants
const (
	// DefaultDataSource is the default pharmacy dataset location
	DefaultDataSource = "data/pharmacies.csv"
	// DefaultParticipant identifies the single console user
	DefaultParticipant = "console"
)

func main() {
	// Load environment configuration
	config := loadEnvironmentConfig()

	// Initialize structured logger
	initializeLogger(config.Debug)

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Vaccibot with configured modules")
	slog.Debug("Final configuration",
		"data_source", *flags.dataSource,
		"dsn_set", *flags.dbDSN != "",
		"static_position", *flags.lat != 0 || *flags.lon != 0,
		"open_links", *flags.openLinks)
	if err := run(ctx, flags); err != nil {
		slog.Error("Vaccibot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Vaccibot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DataSource string
	DbDSN      string
	Lat        float64
	Lon        float64
	HasPos     bool
	OpenLinks  bool
	Debug      bool
}

// Flags holds command line flag values
type Flags struct {
	dataSource *string
	dbDSN      *string
	lat        *float64
	lon        *float64
	hasPos     bool
	openLinks  *bool
}

// initializeLogger sets up structured logging at the configured level
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DataSource: os.Getenv("VACCIBOT_DATA_SOURCE"),
		DbDSN:      os.Getenv("VACCIBOT_DB_DSN"),
		OpenLinks:  util.ParseBoolEnv("VACCIBOT_OPEN_LINKS", false),
		Debug:      util.ParseBoolEnv("VACCIBOT_DEBUG", false),
	}

	lat, latOK := util.ParseFloatEnv("VACCIBOT_GEOLOC_LAT")
	lon, lonOK := util.ParseFloatEnv("VACCIBOT_GEOLOC_LON")
	if latOK && lonOK {
		config.Lat, config.Lon, config.HasPos = lat, lon, true
	}

	if config.DataSource == "" {
		config.DataSource = DefaultDataSource
		slog.Debug("No VACCIBOT_DATA_SOURCE set, using default", "data_source", config.DataSource)
	}

	slog.Debug("environment variables loaded",
		"VACCIBOT_DATA_SOURCE", config.DataSource,
		"VACCIBOT_DB_DSN_SET", config.DbDSN != "",
		"VACCIBOT_GEOLOC_SET", config.HasPos,
		"VACCIBOT_OPEN_LINKS", config.OpenLinks,
		"VACCIBOT_DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dataSource: flag.String("data", config.DataSource, "pharmacy dataset path or URL (overrides $VACCIBOT_DATA_SOURCE)"),
		dbDSN:      flag.String("db-dsn", config.DbDSN, "session store DSN, empty for in-memory (overrides $VACCIBOT_DB_DSN)"),
		lat:        flag.Float64("lat", config.Lat, "static device latitude (overrides $VACCIBOT_GEOLOC_LAT)"),
		lon:        flag.Float64("lon", config.Lon, "static device longitude (overrides $VACCIBOT_GEOLOC_LON)"),
		openLinks:  flag.Bool("open-links", config.OpenLinks, "open outbound links in the browser (overrides $VACCIBOT_OPEN_LINKS)"),
	}

	flag.Parse()

	flags.hasPos = config.HasPos
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "lat" || f.Name == "lon" {
			flags.hasPos = true
		}
	})

	slog.Debug("flags parsed",
		"data", *flags.dataSource,
		"dbDSN_set", *flags.dbDSN != "",
		"hasPos", flags.hasPos,
		"openLinks", *flags.openLinks)

	return flags
}

// buildGeolocProvider returns a static provider when a device position is
// configured, and a denying one otherwise.
func buildGeolocProvider(flags Flags) geoloc.Provider {
	if flags.hasPos {
		slog.Debug("Using static geolocation provider", "lat", *flags.lat, "lon", *flags.lon)
		return geoloc.StaticProvider{Pos: models.Position{Latitude: *flags.lat, Longitude: *flags.lon}}
	}
	slog.Debug("No device position configured, geolocation will be denied")
	return geoloc.DeniedProvider{}
}

// buildOpener returns the browser opener when link opening is enabled.
func buildOpener(flags Flags) links.Opener {
	if *flags.openLinks {
		return links.BrowserOpener{}
	}
	return links.LogOpener{}
}

func run(ctx context.Context, flags Flags) error {
	st, err := store.NewFromDSN(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("closing store failed", "error", err)
		}
	}()

	stateManager := flow.NewStoreBasedStateManager(st)
	dir := directory.New(*flags.dataSource)
	svc := messaging.NewConsoleService(os.Stdin, os.Stdout, DefaultParticipant)
	orch := actions.NewOrchestrator(stateManager, svc, dir, geoloc.NewRequester(buildGeolocProvider(flags)),
		actions.WithOpener(buildOpener(flags)))
	intake := flow.NewIntakeFlow(flow.Dependencies{
		StateManager: stateManager,
		Messaging:    svc,
		Orchestrator: orch,
	})

	// Warm the dataset before the first question; a failure is not fatal,
	// the proposal step degrades to its fallback message.
	if _, err := dir.Load(ctx); err != nil {
		slog.Warn("pharmacy dataset unavailable", "source", *flags.dataSource, "error", err)
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			slog.Warn("stopping console service failed", "error", err)
		}
	}()

	if err := intake.Start(ctx, DefaultParticipant); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received")
			return nil
		case resp, ok := <-svc.Responses():
			if !ok {
				slog.Info("Input closed, shutting down")
				return nil
			}
			if err := intake.ProcessResponse(ctx, resp.From, resp.Body); err != nil {
				slog.Error("processing response failed", "participantID", resp.From, "error", err)
			}
		}
	}
}
