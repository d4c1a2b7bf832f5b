package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/ngsw-go/ngsw"
	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/httphost"
	"github.com/ngsw-go/ngsw/netfetch"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	configFlag         string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "ngswd.toml", "Path to daemon config file")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

// fileConfig is the TOML shape of ngswd.toml.
type fileConfig struct {
	Addr             string `toml:"addr"`
	Origin           string `toml:"origin"`
	Backend          string `toml:"backend"` // "memory", "sqlite", "redis", or "afero"
	SQLiteFile       string `toml:"sqlite_file"`
	RedisAddr        string `toml:"redis_addr"`
	AferoRoot        string `toml:"afero_root"`
	DispatchTimeoutS int    `toml:"dispatch_timeout_seconds"`
	PollSchedule     string `toml:"poll_schedule"`
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logLevel := zerolog.InfoLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	if logFilenameFlag != "" {
		f, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot open log file")
		}
		logOutputs = append(logOutputs, f)
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).With().Str("version", version).Logger()

	var cfg fileConfig
	if _, err := toml.DecodeFile(configFlag, &cfg); err != nil {
		log.Fatal().Err(err).Str("file", configFlag).Msg("cannot read config")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Origin == "" {
		log.Fatal().Msg("config: origin is required")
	}

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build cache store")
	}

	fetcher := netfetch.NewHTTPFetcher(nil)

	controller := ngsw.New(ngsw.Config{
		Store:           store,
		Fetcher:         originFetcher{base: fetcher, origin: cfg.Origin},
		Logger:          &log.Logger,
		DispatchTimeout: time.Duration(cfg.DispatchTimeoutS) * time.Second,
	})

	if cfg.PollSchedule != "" {
		poller, err := ngsw.NewPoller(controller, cfg.PollSchedule)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot start poller")
		}
		poller.Start()
		defer poller.Stop()
	}

	server := httphost.New(controller, originFetcher{base: fetcher, origin: cfg.Origin}, log.Logger)
	log.Info().Str("addr", cfg.Addr).Str("origin", cfg.Origin).Msg("ngswd listening")
	if err := http.ListenAndServe(cfg.Addr, server); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func buildStore(cfg fileConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemStore(), nil
	case "sqlite":
		return cache.NewSQLiteStore(cfg.SQLiteFile)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisStore(client), nil
	case "afero":
		return cache.NewAferoStore(afero.NewOsFs(), cfg.AferoRoot), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// originFetcher resolves every request's URL against origin before
// delegating to base, so manifest and content URLs in the manifest
// (which are host-relative, per spec) resolve to the configured
// upstream rather than requiring an absolute URL in the manifest text.
type originFetcher struct {
	base   netfetch.Fetcher
	origin string
}

func (o originFetcher) Request(ctx context.Context, req *http.Request) (*http.Response, error) {
	return o.base.Request(ctx, o.resolve(req))
}

func (o originFetcher) Refresh(ctx context.Context, req *http.Request) (*http.Response, error) {
	return o.base.Refresh(ctx, o.resolve(req))
}

func (o originFetcher) resolve(req *http.Request) *http.Request {
	u, err := url.Parse(o.origin)
	if err != nil {
		return req
	}
	clone := req.Clone(req.Context())
	clone.RequestURI = ""
	clone.URL.Scheme = u.Scheme
	clone.URL.Host = u.Host
	clone.Host = u.Host
	return clone
}
