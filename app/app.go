package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kibouhq/kibou/activitypub"
	"github.com/kibouhq/kibou/db"
	"github.com/kibouhq/kibou/util"
	"github.com/kibouhq/kibou/web"
)

// App wires the persistence layer, the federation engine, and the HTTP
// server together and owns their shared lifecycle.
type App struct {
	config *util.AppConfig

	httpServer   *http.Server
	workerCtx    context.Context
	workerCancel context.CancelFunc
	federator    *activitypub.Federator

	done chan os.Signal
}

func New(conf *util.AppConfig) (*App, error) {
	return &App{
		config: conf,
		done:   make(chan os.Signal, 1),
	}, nil
}

// Initialize opens the database, builds the federation engine's component
// graph, and prepares the HTTP server without starting anything.
func (a *App) Initialize() error {
	database := db.GetDB(a.config.Conf.Database.Path, a.config.Conf.Database.MaxOpenConns)
	wrapped := activitypub.NewDBWrapper(database)

	fetcher := activitypub.NewFetcher(activitypub.DefaultHTTPClient)
	resolver := activitypub.NewResolver(wrapped, fetcher)

	baseURL := a.config.BaseURL()
	federator := activitypub.NewFederator(wrapped, activitypub.DefaultHTTPClient, resolver, nil, baseURL)
	inbox := activitypub.NewInboxProcessor(wrapped, fetcher, federator)
	federator.SetInbox(inbox)
	a.federator = federator

	router := web.Router(wrapped, resolver, inbox, a.config)
	a.httpServer = &http.Server{
		Addr:    a.config.Conf.Endpoint.BindAddr,
		Handler: router,
	}

	return nil
}

// Start runs the delivery worker and HTTP server and blocks until a
// shutdown signal is received.
func (a *App) Start() error {
	a.workerCtx, a.workerCancel = context.WithCancel(context.Background())
	go activitypub.StartDeliveryWorker(a.workerCtx, a.federator)

	signal.Notify(a.done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting HTTP server on %s", a.config.Conf.Endpoint.BindAddr)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-a.done
	log.Println("Shutdown signal received")

	return a.Shutdown()
}

// Shutdown gracefully stops the HTTP server and delivery worker within a
// 30 second budget.
func (a *App) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error

	log.Println("Stopping HTTP server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		shutdownErr = fmt.Errorf("http shutdown: %w", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	if a.workerCancel != nil {
		a.workerCancel()
	}

	log.Println("All servers stopped")
	return shutdownErr
}
