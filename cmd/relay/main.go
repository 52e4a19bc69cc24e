package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/treepeck/relay/internal/auth"
	"github.com/treepeck/relay/internal/config"
	"github.com/treepeck/relay/internal/moderation"
	"github.com/treepeck/relay/internal/mq"
	"github.com/treepeck/relay/internal/store"
	"github.com/treepeck/relay/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes every component and centralizes error reporting, so that
// deferred cleanups execute before the process exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("closing BadgerDB")
		_ = db.Close()
	}()

	directory := store.NewRoomDirectory(db, log)
	archive := store.NewMessageArchive(db, log, cfg.HistoryLimit)

	var censor *moderation.Censor
	if words := cfg.Words(); len(words) > 0 {
		replacement, err := cfg.ReplacementRune()
		if err != nil {
			return err
		}
		if censor, err = moderation.NewCensor(words, replacement); err != nil {
			return fmt.Errorf("cannot build the censor: %w", err)
		}
		log.Info("content filter enabled", "words", len(words))
	}

	relay := ws.NewRelay(log, auth.NewVerifier(cfg.JWTSecret), directory, archive, censor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go relay.Run(ctx)

	// The action bridge is optional: without a broker the relay still
	// serves socket-originated moderation events.
	if cfg.RabbitURL != "" {
		dialer, err := mq.Dial(cfg.RabbitURL)
		if err != nil {
			return err
		}
		defer dialer.Release()

		ch, err := dialer.Connection.Channel()
		if err != nil {
			return fmt.Errorf("cannot open an AMQP channel: %w", err)
		}
		queue, err := mq.DeclareActionQueue(ch)
		if err != nil {
			return err
		}

		feed := make(chan []byte, 64)
		go func() {
			defer close(feed)
			if err := mq.Consume(ch, queue, feed); err != nil {
				log.Error("action bridge stopped", "err", err)
			}
		}()
		go relay.ConsumeActions(feed)

		log.Info("action bridge consuming", "queue", queue)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", relay.HandleConnection)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("relay listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
