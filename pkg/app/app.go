package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chainvote/pkg/admin"
	"chainvote/pkg/api"
	"chainvote/pkg/auth"
	"chainvote/pkg/config"
	"chainvote/pkg/data"
	"chainvote/pkg/election"
	"chainvote/pkg/security"
	"chainvote/pkg/session"
	"chainvote/pkg/ui"
	"chainvote/pkg/voter"
)

// App wires the client core to a projection and owns its lifecycle
type App struct {
	logger *zap.Logger
	config *config.Config

	client   *api.Client
	store    *session.Store
	view     ui.Projection
	confirm  ui.Confirmer
	controls *ui.Controls
	flow     *auth.Flow
	poller   *election.Poller
	voter    *voter.Dispatcher

	mu          sync.Mutex
	running     bool
	handle      *election.Handle
	admin       *admin.Dispatcher
	metricsAddr string
	cleanup     []func() error
}

// New builds every component from cfg. Nothing runs until Startup.
func New(cfg *config.Config, view ui.Projection, confirm ui.Confirmer, logger *zap.Logger) (*App, error) {
	backend, err := session.NewBackend(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("creating session backend: %w", err)
	}
	store, err := session.NewStore(backend, logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	client := api.NewClient(cfg, logger)
	controls := ui.NewControls(view)

	return &App{
		logger:   logger.Named("app"),
		config:   cfg,
		client:   client,
		store:    store,
		view:     view,
		confirm:  confirm,
		controls: controls,
		flow:     auth.NewFlow(client, store, cfg, view, controls, logger),
		poller:   election.NewPoller(client, view, cfg.API.RequestTimeout, logger),
		voter:    voter.NewDispatcher(client, store, view, confirm, controls, logger),
		cleanup:  make([]func() error, 0),
	}, nil
}

// Startup starts polling and restores the surface the saved session
// points at
func (a *App) Startup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return data.ErrAlreadyRunning
	}

	a.logger.Info("Starting client", zap.String("baseURL", a.client.BaseURL()))

	if a.config.Metrics.Enabled {
		if err := a.startMetrics(); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
	}

	if a.config.Poller.Enabled {
		handle, err := a.poller.Start(a.config.Poller.Interval)
		if err != nil {
			_ = a.runCleanup()
			return fmt.Errorf("starting election poller: %w", err)
		}
		a.handle = handle
		a.cleanup = append(a.cleanup, func() error {
			handle.Stop()
			return nil
		})
	} else if _, err := a.poller.FetchOnce(ctx); err != nil {
		a.logger.Warn("Initial election state fetch failed", zap.Error(err))
	}

	a.restore(ctx)
	a.running = true
	a.logger.Info("Client started successfully")
	return nil
}

// restore shows the surface for the saved identity and re-prompts for a
// pending OTP. Called with a.mu held.
func (a *App) restore(ctx context.Context) {
	if pending, ok := a.store.GetPending(); ok {
		a.logger.Info("Resuming pending verification",
			zap.String("role", pending.Role.String()),
			zap.String("email", security.Fingerprint(pending.Email)))
		a.view.PromptChallenge(pending.Role, fmt.Sprintf("Verification pending for %s", pending.Email))
	}

	if _, ok := a.store.Get(data.RoleAdmin); ok {
		if d, err := a.adminDispatcher(); err == nil {
			a.view.Navigate(ui.SurfaceAdmin)
			_, _ = d.RefreshCandidates(ctx)
			return
		}
	}
	if _, ok := a.store.Get(data.RoleVoter); ok {
		a.view.Navigate(ui.SurfaceVoter)
		return
	}
	a.view.Navigate(ui.SurfaceEntry)
}

// Shutdown stops polling and runs the cleanup functions in reverse order
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	err := a.runCleanup()
	a.handle = nil
	a.metricsAddr = ""
	a.running = false

	a.logger.Info("Client stopped")
	return err
}

// runCleanup runs the cleanup functions in reverse order. Called with a.mu
// held.
func (a *App) runCleanup() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			a.logger.Error("Cleanup error", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.cleanup = a.cleanup[:0]
	return errors.Join(errs...)
}

// Running reports whether Startup has completed and Shutdown has not
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Poller exposes the election state poller
func (a *App) Poller() *election.Poller {
	return a.poller
}

// Store exposes the session store
func (a *App) Store() *session.Store {
	return a.store
}

// EnterAdmin opens the admin surface. Without an admin identity the user
// is sent back to the entry surface instead.
func (a *App) EnterAdmin(ctx context.Context) (*admin.Dispatcher, error) {
	a.mu.Lock()
	d, err := a.adminDispatcher()
	a.mu.Unlock()
	if err != nil {
		a.logger.Debug("Admin surface refused", zap.Error(err))
		a.view.Navigate(ui.SurfaceEntry)
		ui.NotifyError(a.view, err)
		return nil, err
	}

	a.view.Navigate(ui.SurfaceAdmin)
	_, _ = d.RefreshCandidates(ctx)
	return d, nil
}

// Admin returns the admin dispatcher for the signed-in admin
func (a *App) Admin() (*admin.Dispatcher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adminDispatcher()
}

// adminDispatcher is called with a.mu held
func (a *App) adminDispatcher() (*admin.Dispatcher, error) {
	if a.admin != nil {
		if _, ok := a.store.Get(data.RoleAdmin); ok {
			return a.admin, nil
		}
		a.admin = nil
	}

	d, err := admin.NewDispatcher(a.client, a.store, a.poller, a.view, a.confirm, a.controls, a.logger)
	if err != nil {
		return nil, err
	}
	a.admin = d
	return d, nil
}

// Logout clears the local identity of role and returns to the entry
// surface. The server keeps no session to revoke.
func (a *App) Logout(role data.Role) error {
	if err := a.store.Logout(role); err != nil {
		a.logger.Error("Failed to clear session", zap.String("role", role.String()), zap.Error(err))
		ui.NotifyError(a.view, err)
		return err
	}

	if role == data.RoleAdmin {
		a.mu.Lock()
		a.admin = nil
		a.mu.Unlock()
	}

	a.logger.Info("Signed out", zap.String("role", role.String()))
	a.view.Notify(ui.LevelInfo, "Signed out")
	a.view.Navigate(ui.SurfaceEntry)
	return nil
}
