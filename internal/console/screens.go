package console

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/internal/guard"
	"github.com/biztrack/console/internal/salesflow"
	"github.com/biztrack/console/internal/scheduler"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.api.Login(ctx, models.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := a.tokens.Set(resp.AccessToken); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	business := fs.String("business", "", "business name")
	name := fs.String("name", "", "owner name")
	email := fs.String("email", "", "owner email")
	password := fs.String("password", "", "owner password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.api.Register(ctx, models.RegisterRequest{
		BusinessName: *business,
		Name:         *name,
		Email:        *email,
		Password:     *password,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	if err := a.tokens.Set(resp.AccessToken); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Business registered. You are logged in.")
	return nil
}

func (a *App) cmdLogout() error {
	if err := a.tokens.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) cmdDashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	rangeFlag := fs.String("range", "", "reporting window: today, 7d or 30d")
	watch := fs.Bool("watch", false, "keep refreshing on a schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	load := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.refreshTimeout())
		defer cancel()

		if *rangeFlag != "" {
			rng, err := models.ParseRange(*rangeFlag)
			if err != nil {
				return err
			}
			return a.dash.SetRange(ctx, rng)
		}
		return a.dash.Refresh(ctx)
	}

	if err := a.guard.Require(ctx, load); err != nil {
		return err
	}
	a.renderDashboard()

	if !*watch {
		return nil
	}

	refresher := &renderingRefresher{app: a, stop: make(chan struct{})}
	sched := scheduler.New(refresher, a.cfg.Console.WatchCron, a.cfg.API.Timeout, a.logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	fmt.Fprintln(a.out, "Watching. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
	case <-refresher.stop:
		// The session was torn down mid-watch; the protected screen is gone.
	}
	return nil
}

// renderingRefresher re-renders the dashboard after every scheduled refresh.
// Once the session is torn down it closes stop so the watch loop exits
// instead of ticking against a dead credential.
type renderingRefresher struct {
	app  *App
	stop chan struct{}
	once sync.Once
}

func (r *renderingRefresher) Refresh(ctx context.Context) error {
	if !r.app.guard.Authenticated() {
		r.signalStop()
		return guard.ErrNotAuthenticated
	}
	if err := r.app.dash.Refresh(ctx); err != nil {
		if errors.Is(err, biztrack.ErrAuthFailed) {
			// The dashboard's auth-failure hook already tore the session down.
			r.signalStop()
		}
		return err
	}
	r.app.renderDashboard()
	return nil
}

func (r *renderingRefresher) signalStop() {
	r.once.Do(func() { close(r.stop) })
}

func (a *App) cmdSales(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "record" {
		return a.cmdSalesRecord(ctx)
	}

	var sales []models.Sale
	err := a.guard.Require(ctx, func(ctx context.Context) error {
		var err error
		sales, err = a.api.ListSales(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if len(sales) == 0 {
		fmt.Fprintln(a.out, "No sales recorded yet.")
		return nil
	}
	fmt.Fprintln(a.out, "ID\tAmount\tMethod\tCustomer\tDate")
	for _, s := range sales {
		customer := "-"
		if s.CustomerID != nil {
			customer = strconv.FormatInt(*s.CustomerID, 10)
		}
		date := "just now"
		if s.CreatedAt != nil {
			date = s.CreatedAt.Format("02 Jan 15:04")
		}
		fmt.Fprintf(a.out, "#%d\tKSh %.2f\t%s\t%s\t%s\n", s.ID, s.Amount, s.PaymentMethod, customer, date)
	}
	return nil
}

// cmdSalesRecord drives the record-sale workflow interactively: amount,
// payment method, customer selection with optional inline creation, submit.
func (a *App) cmdSalesRecord(ctx context.Context) error {
	return a.guard.Require(ctx, func(ctx context.Context) error {
		// Populate the customer cache before offering a selection.
		if _, ok := a.dash.Snapshot(); !ok {
			loadCtx, cancel := context.WithTimeout(ctx, a.refreshTimeout())
			err := a.dash.Refresh(loadCtx)
			cancel()
			if err != nil {
				return err
			}
		}

		a.flow.Open()
		scanner := bufio.NewScanner(a.in)

		amount, err := a.prompt(scanner, "Amount (KSh): ")
		if err != nil {
			return a.abortFlow(err)
		}
		if err := a.flow.SetAmount(amount); err != nil {
			return err
		}
		method, err := a.prompt(scanner, "Payment method [mpesa/cash/card] (mpesa): ")
		if err != nil {
			return a.abortFlow(err)
		}
		if method != "" {
			if err := a.flow.SetMethod(method); err != nil {
				return err
			}
		}

		if err := a.chooseCustomer(ctx, scanner); err != nil {
			return err
		}

		for {
			err := a.flow.SubmitSale(ctx)
			if err == nil {
				fmt.Fprintln(a.out, "Sale recorded.")
				return nil
			}
			if errors.Is(err, biztrack.ErrAuthFailed) {
				return err
			}

			// Validation and remote rejections stay inline; every entered
			// value is still in place for a retry.
			fmt.Fprintf(a.out, "Error: %s\n", a.flow.Err())
			if errors.Is(err, salesflow.ErrInvalidAmount) {
				raw, perr := a.prompt(scanner, "Amount (KSh): ")
				if perr != nil {
					return a.abortFlow(perr)
				}
				if raw == "" {
					return a.flow.Cancel()
				}
				if err := a.flow.SetAmount(raw); err != nil {
					return err
				}
				continue
			}
			answer, perr := a.prompt(scanner, "Retry? [y/N]: ")
			if perr != nil {
				return a.abortFlow(perr)
			}
			if answer != "y" {
				return a.flow.Cancel()
			}
		}
	})
}

// chooseCustomer runs the customer-selection step, including the dependent
// inline-creation sub-flow.
func (a *App) chooseCustomer(ctx context.Context, scanner *bufio.Scanner) error {
	for {
		customers := a.dash.Customers().Items()
		fmt.Fprintln(a.out, "Customer (optional):")
		fmt.Fprintln(a.out, "  [enter] walk-in sale")
		fmt.Fprintln(a.out, "  [n]     new customer")
		for _, c := range customers {
			fmt.Fprintf(a.out, "  [%d]     %s\n", c.ID, c.Name)
		}

		choice, err := a.prompt(scanner, "> ")
		if err != nil {
			return a.abortFlow(err)
		}
		switch {
		case choice == "":
			return a.flow.SelectCustomer(nil)
		case choice == "n":
			if err := a.flow.OpenCustomerForm(); err != nil {
				return err
			}
			name, err := a.prompt(scanner, "Name: ")
			if err != nil {
				return a.abortFlow(err)
			}
			if err := a.flow.SetCustomerName(name); err != nil {
				return err
			}
			phone, err := a.prompt(scanner, "Phone (optional): ")
			if err != nil {
				return a.abortFlow(err)
			}
			if err := a.flow.SetCustomerPhone(phone); err != nil {
				return err
			}

			err = a.flow.SubmitCustomer(ctx)
			if err == nil {
				// Created, merged and auto-selected in one step.
				fmt.Fprintln(a.out, "Customer added and selected.")
				return nil
			}
			if errors.Is(err, biztrack.ErrAuthFailed) {
				return err
			}
			fmt.Fprintf(a.out, "Error: %s\n", a.flow.Err())
			if closeErr := a.flow.CloseCustomerForm(); closeErr != nil {
				return closeErr
			}
		default:
			id, err := strconv.ParseInt(choice, 10, 64)
			if err != nil {
				fmt.Fprintln(a.out, "Not a valid choice.")
				continue
			}
			return a.flow.SelectCustomer(&id)
		}
	}
}

func (a *App) cmdCustomers(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "add" {
		fs := flag.NewFlagSet("customers add", flag.ContinueOnError)
		name := fs.String("name", "", "customer name")
		phone := fs.String("phone", "", "customer phone")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		var created *models.Customer
		err := a.guard.Require(ctx, func(ctx context.Context) error {
			var err error
			created, err = a.api.CreateCustomer(ctx, models.CustomerCreate{Name: *name, Phone: *phone})
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Customer #%d %s added.\n", created.ID, created.Name)
		return nil
	}

	var customers []models.Customer
	err := a.guard.Require(ctx, func(ctx context.Context) error {
		var err error
		customers, err = a.api.ListCustomers(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if len(customers) == 0 {
		fmt.Fprintln(a.out, "No customers yet.")
		return nil
	}
	for _, c := range customers {
		phone := "-"
		if c.Phone != "" {
			phone = c.Phone
		}
		fmt.Fprintf(a.out, "#%d\t%s\t%s\n", c.ID, c.Name, phone)
	}
	return nil
}

func (a *App) cmdStaff(ctx context.Context, args []string) error {
	var err error
	if len(args) > 0 && args[0] == "add" {
		err = a.staffAdd(ctx, args[1:])
	} else {
		err = a.staffList(ctx)
	}

	// A 403 here means a staff member reached an owner-only screen: redirect
	// to the dashboard without touching the session.
	if errors.Is(err, biztrack.ErrForbidden) {
		fmt.Fprintln(a.out, "Access denied. Only the owner can manage staff.")
		return a.cmdDashboard(ctx, nil)
	}
	return err
}

func (a *App) staffList(ctx context.Context) error {
	var staff []models.StaffMember
	err := a.guard.Require(ctx, func(ctx context.Context) error {
		var err error
		staff, err = a.api.ListStaff(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if len(staff) == 0 {
		fmt.Fprintln(a.out, "No staff accounts yet.")
		return nil
	}
	for _, m := range staff {
		fmt.Fprintf(a.out, "#%d\t%s\t%s\n", m.ID, m.Name, m.Email)
	}
	return nil
}

func (a *App) staffAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("staff add", flag.ContinueOnError)
	name := fs.String("name", "", "staff name")
	email := fs.String("email", "", "staff email")
	password := fs.String("password", "", "staff password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var created *models.StaffMember
	err := a.guard.Require(ctx, func(ctx context.Context) error {
		var err error
		created, err = a.api.CreateStaff(ctx, models.StaffCreate{
			Name:     *name,
			Email:    *email,
			Password: *password,
			Role:     models.RoleStaff,
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Staff account #%d %s created.\n", created.ID, created.Name)
	return nil
}

func (a *App) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	rangeFlag := fs.String("range", string(models.DefaultRange), "reporting window: today, 7d or 30d")
	outPath := fs.String("out", "", "output path (defaults to the server's filename)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rng, err := models.ParseRange(*rangeFlag)
	if err != nil {
		return err
	}

	var payload []byte
	var filename string
	err = a.guard.Require(ctx, func(ctx context.Context) error {
		var err error
		payload, filename, err = a.api.ExportCSV(ctx, rng)
		return err
	})
	if err != nil {
		return err
	}

	if *outPath != "" {
		filename = *outPath
	}
	// Pass-through download: the payload is written untouched.
	if err := os.WriteFile(filename, payload, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Fprintf(a.out, "Exported %d bytes to %s.\n", len(payload), filename)
	return nil
}

// abortFlow discards the open workflow after an input failure. The read
// error is what the user needs to see, so a cancel rejection only gets
// logged.
func (a *App) abortFlow(err error) error {
	if cancelErr := a.flow.Cancel(); cancelErr != nil {
		a.logger.Warn("failed cancelling sale workflow", zap.Error(cancelErr))
	}
	return err
}

// prompt reads one line of input. A read failure is reported as an error;
// plain end of input comes back as a blank entry, which every caller already
// treats as "skip" or "cancel".
func (a *App) prompt(scanner *bufio.Scanner, label string) (string, error) {
	fmt.Fprint(a.out, label)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return "", nil
}

func (a *App) renderDashboard() {
	snap, ok := a.dash.Snapshot()
	if !ok {
		fmt.Fprintln(a.out, "Loading...")
		return
	}

	if snap.Me != nil {
		fmt.Fprintf(a.out, "Signed in as %s (%s)\n", snap.Me.Name, snap.Me.Role)
	}
	fmt.Fprintf(a.out, "Range: %s\n", snap.Range)

	if s := snap.Summary; s != nil {
		fmt.Fprintf(a.out, "Today: KSh %.2f   Week: KSh %.2f   Month: KSh %.2f\n",
			s.TodayTotal, s.WeekTotal, s.MonthTotal)

		fmt.Fprintln(a.out, "Payments:")
		if len(s.Payments) == 0 {
			fmt.Fprintln(a.out, "  none")
		}
		for _, p := range s.Payments {
			fmt.Fprintf(a.out, "  %-8s %d sales, KSh %.2f\n", p.Method, p.Count, p.Total)
		}

		fmt.Fprintln(a.out, "Top customers:")
		if len(s.TopCustomers) == 0 {
			fmt.Fprintln(a.out, "  no customer sales yet")
		}
		for _, c := range s.TopCustomers {
			fmt.Fprintf(a.out, "  %-20s %d orders, KSh %.2f\n", c.Name, c.Orders, c.TotalSpent)
		}

		if s.BestDay != nil {
			fmt.Fprintf(a.out, "Best day: %s (KSh %.2f)\n", s.BestDay.Day, s.BestDay.Total)
		} else {
			fmt.Fprintln(a.out, "Best day: N/A")
		}
	}

	fmt.Fprintf(a.out, "Customers: %d\n", a.dash.Customers().Len())
}
