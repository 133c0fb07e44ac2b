package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/piratepartyau/donate/pkg/config"
	"github.com/piratepartyau/donate/pkg/db"
	"github.com/piratepartyau/donate/pkg/donation"
	"github.com/piratepartyau/donate/pkg/nonce"
	"github.com/piratepartyau/donate/pkg/payment"
	"github.com/piratepartyau/donate/pkg/server"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" default:"config.toml" env:"DONATE_CONFIG_PATH"`
	Debug      bool   `long:"debug"`
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	// Parse args
	opts := Opts{}
	_, err := flags.Parse(&opts)
	if err != nil {
		log.WithError(err).Fatal("failed to parse command line arguments")
	}

	// Load TOML file
	log.Debugf("loading configuration %q", opts.ConfigPath)
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration file")
	}

	if opts.Debug || cfg.Log.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if cfg.Log.Filename != "" {
		f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.WithError(err).Fatal("failed to open log file")
		}

		defer f.Close()
		log.SetOutput(f)
	}

	log.WithFields(log.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
		"mode":    cfg.Server.Mode,
	}).Info("running donate")

	storage, err := openStorage(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}

	nonces := nonce.NewStore(storage, cfg.Tokens.Lifetime.Duration)

	// Purge nonces abandoned before the last restart
	if count, err := nonces.SweepExpired(ctx); err != nil {
		log.WithError(err).Error("startup sweep failed")
	} else if count > 0 {
		log.Infof("swept %d expired nonce(s) left over from previous run", count)
	}

	charger := payment.NewClient(cfg.Payment)
	donations := donation.NewService(nonces, charger, storage, cfg.Payment)

	handlers := server.MakeHandlers(donations, nonces, server.Opts{
		APIEndpoint:    cfg.Payment.Endpoint,
		PublishableKey: cfg.Payment.PublishableKey,
		Mode:           cfg.Server.Mode,
		TemplatesGlob:  cfg.Server.TemplatesGlob,
		StaticDir:      cfg.Server.StaticDir,
	})

	// Run periodic nonce sweep
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(nil)))

	if _, err := c.AddFunc(cfg.Tokens.SweepSchedule, func() {
		if _, err := nonces.SweepExpired(ctx); err != nil {
			log.WithError(err).Error("nonce sweep failed")
		}
	}); err != nil {
		log.WithError(err).Fatalf("can't schedule nonce sweep: %s", cfg.Tokens.SweepSchedule)
	}

	c.Start()

	group.Go(func() error {
		defer func() {
			log.Info("shutting down cron")
			c.Stop()
		}()

		<-ctx.Done()
		return ctx.Err()
	})

	// Run web server
	srv := server.New(cfg.Server, handlers)

	group.Go(func() error {
		log.Infof("running listener at %s", srv.Addr)
		return srv.ListenAndServe()
	})

	group.Go(func() error {
		// Shutdown web server
		defer func() {
			log.Info("shutting down web server")
			if err := srv.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("server shutdown failed")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-stop:
				cancel()
				return nil
			}
		}
	})

	if err := group.Wait(); err != nil && (err != context.Canceled && err != http.ErrServerClosed) {
		log.WithError(err).Error("wait error")
	}

	if err := storage.Close(); err != nil {
		log.WithError(err).Error("failed to close storage")
	}

	log.Info("gracefully stopped")
}

func openStorage(cfg *config.Config) (db.Storage, error) {
	switch cfg.Storage.Type {
	case "redis":
		return db.NewRedis(cfg.Storage.RedisURL)
	default:
		return db.NewBadger(&cfg.Storage)
	}
}
