package viewmodel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

// fakeFetcher serves canned responses and can hold a summary fetch hostage
// per range, so tests control the order in which generations resolve.
type fakeFetcher struct {
	mu           sync.Mutex
	meErr        error
	summaryErr   error
	customersErr error
	customers    []models.Customer

	gates   map[models.Range]chan struct{}
	started map[models.Range]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		gates:   make(map[models.Range]chan struct{}),
		started: make(map[models.Range]chan struct{}),
	}
}

func (f *fakeFetcher) holdSummary(rng models.Range) (gate, started chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[rng] = make(chan struct{})
	f.started[rng] = make(chan struct{}, 1)
	return f.gates[rng], f.started[rng]
}

func (f *fakeFetcher) Me(context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &models.User{Name: "Levin", Role: models.RoleOwner}, nil
}

func (f *fakeFetcher) Summary(_ context.Context, rng models.Range) (*models.Summary, error) {
	f.mu.Lock()
	gate := f.gates[rng]
	started := f.started[rng]
	err := f.summaryErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.Summary{Range: rng, WeekTotal: 100}, nil
}

func (f *fakeFetcher) ListCustomers(context.Context) ([]models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customersErr != nil {
		return nil, f.customersErr
	}
	return f.customers, nil
}

func TestDashboard_RefreshCommitsJoinedSet(t *testing.T) {
	api := newFakeFetcher()
	api.customers = []models.Customer{{ID: 1, Name: "Amina"}}
	dash := NewDashboard(api, nil, nil, nil)

	require.NoError(t, dash.Refresh(context.Background()))

	snap, ok := dash.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "Levin", snap.Me.Name)
	assert.Equal(t, models.DefaultRange, snap.Range)
	assert.Equal(t, models.DefaultRange, snap.Summary.Range)
	assert.Equal(t, []int64{1}, ids(dash.Customers().Items()))
}

func TestDashboard_LastGenerationWins(t *testing.T) {
	api := newFakeFetcher()
	dash := NewDashboard(api, nil, nil, nil)

	// The 7d generation starts first but resolves last.
	gate, started := api.holdSummary(models.Range7d)

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- dash.SetRange(context.Background(), models.Range7d)
	}()

	// Wait until the 7d generation is in flight, then run 30d to completion.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("7d generation never started")
	}
	require.NoError(t, dash.SetRange(context.Background(), models.Range30d))

	snap, ok := dash.Snapshot()
	require.True(t, ok)
	assert.Equal(t, models.Range30d, snap.Range)

	// Release the superseded generation; it must be discarded, not committed.
	close(gate)
	select {
	case err := <-slowDone:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("7d generation never finished")
	}

	snap, ok = dash.Snapshot()
	require.True(t, ok)
	assert.Equal(t, models.Range30d, snap.Range)
	assert.Equal(t, models.Range30d, snap.Summary.Range)
}

func TestDashboard_AuthFailureAbandonsGeneration(t *testing.T) {
	api := newFakeFetcher()
	api.meErr = biztrack.ErrAuthFailed
	api.customers = []models.Customer{{ID: 1, Name: "Amina"}}

	tornDown := false
	dash := NewDashboard(api, nil, nil, func() { tornDown = true })

	err := dash.Refresh(context.Background())
	assert.ErrorIs(t, err, biztrack.ErrAuthFailed)
	assert.True(t, tornDown)

	// Nothing from the abandoned generation committed, not even the
	// descriptors that succeeded.
	_, ok := dash.Snapshot()
	assert.False(t, ok)
	assert.Zero(t, dash.Customers().Len())
}

func TestDashboard_PartialFailureCommitsNothing(t *testing.T) {
	api := newFakeFetcher()
	api.customersErr = errors.New("boom")
	dash := NewDashboard(api, nil, nil, nil)

	err := dash.Refresh(context.Background())
	require.Error(t, err)

	_, ok := dash.Snapshot()
	assert.False(t, ok)
}

func TestDashboard_RangeTracksSelection(t *testing.T) {
	api := newFakeFetcher()
	dash := NewDashboard(api, nil, nil, nil)

	assert.Equal(t, models.DefaultRange, dash.Range())
	require.NoError(t, dash.SetRange(context.Background(), models.RangeToday))
	assert.Equal(t, models.RangeToday, dash.Range())
}
