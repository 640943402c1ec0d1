package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dkrasnow/quizwire/internal/config"
	"github.com/dkrasnow/quizwire/internal/content"
	"github.com/dkrasnow/quizwire/internal/httpapi"
	"github.com/dkrasnow/quizwire/internal/session"
	"github.com/dkrasnow/quizwire/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	roster, err := st.LoadRoster(loadCtx)
	if err != nil {
		logger.Fatal("loading roster", zap.Error(err))
	}
	questions, err := st.LoadQuestions(loadCtx)
	if err != nil {
		logger.Fatal("loading questions", zap.Error(err))
	}
	cancel()

	cache, err := content.NewCache(roster, questions)
	if err != nil {
		logger.Fatal("building content cache", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("teams", cache.NumTeams()),
		zap.Int("questions", cache.NumQuestions()))

	coord := session.NewCoordinator(ctx, session.Options{
		Title:               cfg.QuizTitle,
		DefaultTimeLimitSec: cfg.DefaultTimeLimitSec,
		ShuffleQuestions:    cfg.ShuffleQuestions,
		ShuffleChoices:      cfg.ShuffleChoices,
		TickInterval:        cfg.TickInterval,
		Cache:               cache,
		Store:               st,
		Logger:              logger,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(coord, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		coord.Inbox() <- session.Shutdown{}
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
