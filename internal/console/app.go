// Package console is the terminal client: it wires the session store, the
// API client, the session guard and the view-models, and maps subcommands to
// the application's screens.
package console

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/biztrack/console/internal/config"
	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/internal/guard"
	"github.com/biztrack/console/internal/salesflow"
	"github.com/biztrack/console/internal/session"
	"github.com/biztrack/console/internal/viewmodel"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

// App is the assembled client.
type App struct {
	cfg    *config.Config
	tokens session.Store
	api    biztrack.Client
	guard  *guard.Guard
	dash   *viewmodel.Dashboard
	flow   *salesflow.Workflow
	logger *zap.Logger

	in  io.Reader
	out io.Writer
}

// New wires the application around the given collaborators. The session
// store and API client are injected so tests can substitute fakes.
func New(cfg *config.Config, tokens session.Store, api biztrack.Client, logger *zap.Logger, in io.Reader, out io.Writer) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{
		cfg:    cfg,
		tokens: tokens,
		api:    api,
		logger: logger,
		in:     in,
		out:    out,
	}

	app.guard = guard.New(tokens, logger.Named("guard"), func() {
		fmt.Fprintln(out, "Session expired. Please login again.")
	})

	app.dash = viewmodel.NewDashboard(api, viewmodel.NewCustomerList(), logger.Named("dashboard"), app.guard.Teardown)

	app.flow = salesflow.New(api, logger.Named("salesflow"),
		func(ev salesflow.CustomerCreated) {
			// Single CustomerCreated handler: the workflow already selected
			// the id and collapsed its sub-form; the cache merge completes
			// the fan-out.
			app.dash.Customers().Merge(models.Customer{ID: ev.ID, Name: ev.Name, Phone: ev.Phone})
		},
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
			defer cancel()
			if err := app.dash.Refresh(ctx); err != nil {
				logger.Warn("post-sale refresh failed", zap.Error(err))
			}
		})

	return app
}

// Run dispatches a subcommand. Unknown subcommands fall back to the
// dashboard.
func (a *App) Run(ctx context.Context, args []string) error {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		return a.cmdLogout()
	case "customers":
		return a.cmdCustomers(ctx, args)
	case "sales":
		return a.cmdSales(ctx, args)
	case "staff":
		return a.cmdStaff(ctx, args)
	case "export":
		return a.cmdExport(ctx, args)
	case "", "dashboard":
		return a.cmdDashboard(ctx, args)
	default:
		a.logger.Debug("unknown subcommand, falling back to dashboard", zap.String("command", cmd))
		return a.cmdDashboard(ctx, nil)
	}
}

// refreshTimeout bounds one guarded screen load.
func (a *App) refreshTimeout() time.Duration {
	// Three descriptors run concurrently; one transport timeout plus slack
	// covers the slowest of them.
	return a.cfg.API.Timeout + 5*time.Second
}
