package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Izzienjeri/shoply-sub000/api"
	"github.com/Izzienjeri/shoply-sub000/api/background"
	"github.com/Izzienjeri/shoply-sub000/cache"
	"github.com/Izzienjeri/shoply-sub000/config"
	"github.com/Izzienjeri/shoply-sub000/core/auth"
	"github.com/Izzienjeri/shoply-sub000/core/checkout"
	"github.com/Izzienjeri/shoply-sub000/core/order"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/Izzienjeri/shoply-sub000/pushchan"
	"github.com/ardanlabs/conf/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	const prefix = "SHOPLY"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Log.File != "" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}))
	}

	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate the database: %w", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Auth.DiscoveryTimeout)
	defer cancel()
	verifier, err := auth.Discover(ctx, cfg.Auth.Issuer, cfg.Auth.ClientID)
	if err != nil {
		return fmt.Errorf("failed to discover the identity provider: %w", err)
	}

	gateway := daraja.New(daraja.Config{
		BaseURL:         cfg.Daraja.BaseURL,
		ConsumerKey:     cfg.Daraja.ConsumerKey,
		ConsumerSecret:  cfg.Daraja.ConsumerSecret,
		Shortcode:       cfg.Daraja.Shortcode,
		Passkey:         cfg.Daraja.Passkey,
		TransactionType: cfg.Daraja.TransactionType,
		CallbackURL:     cfg.Daraja.CallbackURL,
		Timeout:         cfg.Daraja.Timeout,
	}, logger)

	ledger := payment.NewStore(db)
	bus := pushchan.New(rdb, logger)
	views := cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
	announcer := &checkout.Announcer{Publisher: bus, Views: views, Log: logger}

	bg := background.New(logger)

	svc := checkout.NewService(checkout.ServiceConfig{
		Catalog: checkout.DBCatalog{DB: db},
		Initiator: &checkout.Initiator{
			Gateway: gateway,
			Ledger:  ledger,
			Log:     logger,
		},
		Ledger:       ledger,
		Subscriber:   bus,
		Notifier:     &checkout.Dispatcher{Publisher: bus, Views: views, Log: logger},
		Background:   bg,
		Log:          logger,
		PollAttempts: cfg.Checkout.PollAttempts,
		PollInterval: cfg.Checkout.PollInterval,
		RateBurst:    cfg.Checkout.RateBurst,
		RateInterval: cfg.Checkout.RateInterval,
		RateExpiry:   cfg.Checkout.RateExpiry,
	})

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if cfg.Sweeper.Enabled {
		sw := &payment.Sweeper{
			Ledger:    ledger,
			Gateway:   gateway,
			Publisher: announcer,
			Log:       logger.WithField("component", "sweeper"),
			Interval:  cfg.Sweeper.Interval,
			MinAge:    cfg.Sweeper.MinAge,
			Deadline:  cfg.Sweeper.Deadline,
			Batch:     cfg.Sweeper.Batch,
		}
		bg.Go(func() { sw.Run(sweepCtx) })
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:   cfg.Cors.Origin,
		Log:          logger,
		DB:           db,
		Views:        views,
		Verifier:     verifier,
		Checkout:     svc,
		Ledger:       ledger,
		Materializer: order.NewMaterializer(db),
		Publisher:    announcer,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		svc.Shutdown()
		stopSweeper()

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
