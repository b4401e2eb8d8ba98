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

	"naturelife-cert/internal/config"
	"naturelife-cert/internal/db"
	"naturelife-cert/internal/handlers"
	"naturelife-cert/internal/metrics"
	"naturelife-cert/internal/repository"
	"naturelife-cert/internal/scheduler"
	"naturelife-cert/internal/server"
)

// Run initializes and starts the web service and the inbox poller
func Run(configPath string) error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Nature Life certificate service")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := ConfigureLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	repo := repository.New(dbConn)
	if donations, err := repo.ListDonations(); err == nil {
		m.Donations.Set(float64(len(donations)))
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		p, err := NewPipeline(context.Background(), cfg, repo, m)
		if err != nil {
			return err
		}
		sched = scheduler.NewScheduler(&cfg.Scheduler, p)
	} else {
		logrus.Info("Inbox polling disabled")
	}

	h := handlers.NewHandlers(dbConn, NewGenerator(cfg), sched, m, prometheus.DefaultGatherer)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if sched != nil {
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

	if sched != nil {
		if err := sched.Stop(); err != nil {
			logrus.Errorf("Failed to stop scheduler: %v", err)
		}
		sched.Wait()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if sqlDB, err := dbConn.DB(); err == nil {
		sqlDB.Close()
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
