package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"reg-mail-forwarder-go/internal/config"
	"reg-mail-forwarder-go/internal/db"
	"reg-mail-forwarder-go/internal/delivery"
	"reg-mail-forwarder-go/internal/handler"
	"reg-mail-forwarder-go/internal/ledger"
	"reg-mail-forwarder-go/internal/mailbox"
	"reg-mail-forwarder-go/internal/metrics"
	"reg-mail-forwarder-go/internal/recipient"
	"reg-mail-forwarder-go/internal/router"
	"reg-mail-forwarder-go/internal/service"
	"reg-mail-forwarder-go/internal/service/scheduler"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Registration Mail Forwarder")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown log level %q, using info", cfg.Log.Level)
	}

	opener, dbConn, err := openLedger(cfg)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	dialer := &mailbox.Dialer{
		Port:               cfg.IMAP.Port,
		Timeout:            cfg.IMAP.Timeout,
		InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
	}
	sender := delivery.NewClient(cfg.SMTP.Timeout, cfg.SMTP.InsecureSkipVerify)
	sender.StartTLS = cfg.SMTP.StartTLS

	fw := service.NewForwarder(
		service.IMAPConnector{Dialer: dialer},
		recipient.NewResolver(),
		sender,
		opener,
		service.Pacing{AfterSuccess: cfg.Pacing.AfterSuccess, AfterFailure: cfg.Pacing.AfterFailure},
		m,
	)
	runner := service.NewRunner(cfg, fw)
	sched := scheduler.New(&cfg.Scheduler, runner)

	h := handler.NewHandlers(runner, sched, dbConn, prometheus.DefaultGatherer, cfg.Server.UploadDir)
	r := router.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if dbConn != nil {
		if sqlDB, err := dbConn.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// openLedger selects the ledger backend. The returned *gorm.DB is nil for the file backend.
func openLedger(cfg *config.Config) (ledger.Opener, *gorm.DB, error) {
	if cfg.Ledger.Backend != config.LedgerBackendMySQL {
		logrus.Infof("Using file ledger in %s", cfg.Ledger.Dir)
		return ledger.FileOpener{}, nil, nil
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logrus.Info("Using database ledger")
	return ledger.GormOpener{DB: dbConn}, dbConn, nil
}
