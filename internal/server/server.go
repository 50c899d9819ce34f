package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"k8s.io/klog"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
	"github.com/bcaldwell/moneymanager/pkg/transactions"
)

const shutdownTimeout = 10 * time.Second

// CredentialStore is the part of credentials.Store the handlers use
type CredentialStore interface {
	Create(ctx context.Context, c *credentials.Credential) error
	ListForUser(ctx context.Context, userID string, env config.Environment) ([]credentials.Credential, error)
	Delete(ctx context.Context, userID, id string) error
}

type LinkTokenCreator interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
}

type Options struct {
	Config  *config.Config
	Store   CredentialStore
	Fetcher *transactions.Fetcher
	Linkers map[credentials.Provider]providers.Linker
	// LinkTokens is nil when plaid is disabled
	LinkTokens LinkTokenCreator
}

type Server struct {
	cfg        *config.Config
	store      CredentialStore
	fetcher    *transactions.Fetcher
	linkers    map[credentials.Provider]providers.Linker
	linkTokens LinkTokenCreator
	handler    http.Handler
}

func New(opts Options) *Server {
	s := &Server{
		cfg:        opts.Config,
		store:      opts.Store,
		fetcher:    opts.Fetcher,
		linkers:    opts.Linkers,
		linkTokens: opts.LinkTokens,
	}
	if s.linkers == nil {
		s.linkers = map[credentials.Provider]providers.Linker{}
	}

	s.handler = Chain(s.routes(), RequestID, Logger, Recovery)
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	authed := RequireUser(s.cfg.Auth.UserHeader)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("GET /api/transactions", authed(http.HandlerFunc(s.handleTransactions)))
	mux.Handle("POST /api/link-token", authed(http.HandlerFunc(s.handleCreateLinkToken)))
	mux.Handle("GET /api/links", authed(http.HandlerFunc(s.handleListLinks)))
	mux.Handle("POST /api/links", authed(http.HandlerFunc(s.handleCreateLink)))
	mux.Handle("DELETE /api/links/{id}", authed(http.HandlerFunc(s.handleDeleteLink)))

	return mux
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Starting server on %s (%s)\n", s.cfg.Server.Addr, s.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	klog.Infof("Shutting down server\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
