package viewmodel

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

// ErrSuperseded means a fetch generation resolved after a newer one had
// already been started; its results were discarded without committing.
var ErrSuperseded = errors.New("fetch generation superseded")

// Fetcher is the slice of the API client the dashboard needs.
type Fetcher interface {
	Me(ctx context.Context) (*models.User, error)
	Summary(ctx context.Context, rng models.Range) (*models.Summary, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// Snapshot is one committed, internally consistent dashboard state. All of
// it comes from a single fetch generation; there is no partial merge.
type Snapshot struct {
	Me      *models.User
	Summary *models.Summary
	Range   models.Range
}

// Dashboard is the range-parameterized analytics view-model. Each range
// change starts a new fetch generation; the three descriptors (me, summary,
// customers) run concurrently and commit as one joined set, and only when
// the generation is still the latest started. A superseded generation never
// commits, so rapid range flips can never surface stale data.
type Dashboard struct {
	api       Fetcher
	customers *CustomerList
	logger    *zap.Logger

	// onAuthFailure runs when any descriptor reports a rejected credential;
	// the generation is abandoned and nothing commits.
	onAuthFailure func()

	mu   sync.Mutex
	gen  uint64
	rng  models.Range
	snap *Snapshot
}

// NewDashboard constructs the view-model around the given fetcher.
func NewDashboard(api Fetcher, customers *CustomerList, logger *zap.Logger, onAuthFailure func()) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if customers == nil {
		customers = NewCustomerList()
	}
	return &Dashboard{
		api:           api,
		customers:     customers,
		logger:        logger,
		onAuthFailure: onAuthFailure,
		rng:           models.DefaultRange,
	}
}

// Customers exposes the screen-local customer cache so the sale workflow can
// merge inline-created customers into it.
func (d *Dashboard) Customers() *CustomerList {
	return d.customers
}

// Range returns the currently selected reporting window.
func (d *Dashboard) Range() models.Range {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng
}

// Snapshot returns the last committed state, if any generation has completed.
func (d *Dashboard) Snapshot() (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap == nil {
		return Snapshot{}, false
	}
	return *d.snap, true
}

// SetRange selects a new reporting window and immediately starts a fresh
// fetch generation. There is no debounce: flipping ranges quickly simply
// produces superseded generations whose results are discarded.
func (d *Dashboard) SetRange(ctx context.Context, rng models.Range) error {
	d.mu.Lock()
	d.rng = rng
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	return d.load(ctx, rng, gen)
}

// Refresh re-runs the current range as a new generation. Called on first
// render, after a committed sale, and on every watch-mode tick.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	rng := d.rng
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	return d.load(ctx, rng, gen)
}

func (d *Dashboard) load(ctx context.Context, rng models.Range, gen uint64) error {
	var (
		wg        sync.WaitGroup
		me        *models.User
		summary   *models.Summary
		customers []models.Customer
		errs      [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		me, errs[0] = d.api.Me(ctx)
	}()
	go func() {
		defer wg.Done()
		summary, errs[1] = d.api.Summary(ctx, rng)
	}()
	go func() {
		defer wg.Done()
		customers, errs[2] = d.api.ListCustomers(ctx)
	}()
	wg.Wait()

	// A rejected credential anywhere abandons the whole generation; none of
	// the other descriptors' results may commit.
	for _, err := range errs[:] {
		if errors.Is(err, biztrack.ErrAuthFailed) {
			d.logger.Warn("fetch generation hit auth failure, abandoning",
				zap.Uint64("generation", gen))
			if d.onAuthFailure != nil {
				d.onAuthFailure()
			}
			return err
		}
	}
	for _, err := range errs[:] {
		if err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen {
		d.logger.Debug("discarding stale fetch generation",
			zap.Uint64("generation", gen), zap.Uint64("latest", d.gen))
		return ErrSuperseded
	}

	// Wholesale replacement: the generation's results win as one unit.
	d.snap = &Snapshot{Me: me, Summary: summary, Range: rng}
	d.customers.Replace(customers)

	d.logger.Debug("fetch generation committed",
		zap.Uint64("generation", gen), zap.String("range", string(rng)))
	return nil
}
