package salesflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

// fakeCreator counts calls, records payloads, and can hold CreateSale
// hostage to inspect the Submitting state.
type fakeCreator struct {
	mu sync.Mutex

	customerCalls int
	customerErr   error
	nextCustomer  models.Customer

	saleCalls int
	saleErr   error
	lastSale  models.SaleCreate
	saleGate  chan struct{}
}

func (f *fakeCreator) CreateCustomer(_ context.Context, req models.CustomerCreate) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	c := f.nextCustomer
	if c.Name == "" {
		c.Name = req.Name
	}
	return &c, nil
}

func (f *fakeCreator) CreateSale(_ context.Context, req models.SaleCreate) (*models.Sale, error) {
	f.mu.Lock()
	f.saleCalls++
	f.lastSale = req
	gate := f.saleGate
	err := f.saleErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.Sale{ID: 1, Amount: req.Amount, PaymentMethod: req.PaymentMethod, CustomerID: req.CustomerID}, nil
}

func (f *fakeCreator) calls() (customers, sales int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customerCalls, f.saleCalls
}

func TestWorkflow_OpenResetsEverything(t *testing.T) {
	w := New(&fakeCreator{}, nil, nil, nil)

	w.Open()
	require.NoError(t, w.SetAmount("500"))
	require.NoError(t, w.SetMethod(models.PaymentCard))
	id := int64(7)
	require.NoError(t, w.SelectCustomer(&id))

	// A fresh invocation must not leak any prior field value.
	w.Open()
	assert.Equal(t, StateEditing, w.State())
	assert.Empty(t, w.Amount())
	assert.Equal(t, models.PaymentMpesa, w.Method())
	assert.Nil(t, w.CustomerID())
	assert.Empty(t, w.Err())
}

func TestWorkflow_AmountValidationNeverReachesNetwork(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-5", "NaN", "+Inf"} {
		api := &fakeCreator{}
		w := New(api, nil, nil, nil)
		w.Open()
		require.NoError(t, w.SetAmount(raw))

		err := w.SubmitSale(context.Background())
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", raw)

		_, sales := api.calls()
		assert.Zero(t, sales, "amount %q must not be submitted", raw)
		assert.Equal(t, ErrInvalidAmount.Error(), w.Err())
	}
}

func TestWorkflow_WalkInSale(t *testing.T) {
	api := &fakeCreator{}
	committed := false
	w := New(api, nil, nil, func() { committed = true })

	w.Open()
	require.NoError(t, w.SetAmount("1500"))
	require.NoError(t, w.SetMethod(models.PaymentMpesa))

	require.NoError(t, w.SubmitSale(context.Background()))

	assert.Equal(t, StateCommitted, w.State())
	assert.True(t, committed, "owner must be signalled to refresh")
	assert.Equal(t, 1500.0, api.lastSale.Amount)
	assert.Equal(t, models.PaymentMpesa, api.lastSale.PaymentMethod)
	assert.Nil(t, api.lastSale.CustomerID, "walk-in sale carries an explicit null customer")
}

func TestWorkflow_InlineCustomerCreationFanOut(t *testing.T) {
	api := &fakeCreator{nextCustomer: models.Customer{ID: 42, Name: "Amina", Phone: "0722000111"}}

	var events []CustomerCreated
	w := New(api, nil, func(ev CustomerCreated) { events = append(events, ev) }, nil)

	w.Open()
	require.NoError(t, w.SetAmount("1000"))
	require.NoError(t, w.OpenCustomerForm())
	require.NoError(t, w.SetCustomerName("Amina"))
	require.NoError(t, w.SetCustomerPhone("0722000111"))

	require.NoError(t, w.SubmitCustomer(context.Background()))

	// One success event fans out to all three effects: handler notified,
	// new id auto-selected, sub-form collapsed.
	require.Len(t, events, 1)
	assert.Equal(t, CustomerCreated{ID: 42, Name: "Amina", Phone: "0722000111"}, events[0])
	require.NotNil(t, w.CustomerID())
	assert.Equal(t, int64(42), *w.CustomerID())
	assert.Equal(t, StateEditing, w.State())

	// The sale then references the new customer without further input.
	require.NoError(t, w.SubmitSale(context.Background()))
	require.NotNil(t, api.lastSale.CustomerID)
	assert.Equal(t, int64(42), *api.lastSale.CustomerID)
}

func TestWorkflow_EmptyCustomerNameNeverReachesNetwork(t *testing.T) {
	api := &fakeCreator{}
	w := New(api, nil, nil, nil)

	w.Open()
	require.NoError(t, w.OpenCustomerForm())
	require.NoError(t, w.SetCustomerName("   "))

	err := w.SubmitCustomer(context.Background())
	assert.ErrorIs(t, err, ErrCustomerNameMissing)

	customers, _ := api.calls()
	assert.Zero(t, customers)
	assert.Equal(t, StateEditingCustomer, w.State())
}

func TestWorkflow_FailedSubmitPreservesFields(t *testing.T) {
	api := &fakeCreator{saleErr: &biztrack.APIError{StatusCode: 500, Message: "server exploded"}}
	w := New(api, nil, nil, nil)

	w.Open()
	require.NoError(t, w.SetAmount("1500"))
	require.NoError(t, w.SetMethod(models.PaymentCash))
	id := int64(3)
	require.NoError(t, w.SelectCustomer(&id))

	err := w.SubmitSale(context.Background())
	require.Error(t, err)

	// Workflow stays open with a displayable message and no data loss.
	assert.Equal(t, StateFailed, w.State())
	assert.Equal(t, "server exploded", w.Err())
	assert.Equal(t, "1500", w.Amount())
	assert.Equal(t, models.PaymentCash, w.Method())
	require.NotNil(t, w.CustomerID())
	assert.Equal(t, int64(3), *w.CustomerID())

	// Retry without re-entering anything succeeds.
	api.mu.Lock()
	api.saleErr = nil
	api.mu.Unlock()
	require.NoError(t, w.SubmitSale(context.Background()))
	assert.Equal(t, StateCommitted, w.State())
}

func TestWorkflow_AuthFailurePropagatesWithoutInlineError(t *testing.T) {
	api := &fakeCreator{saleErr: biztrack.ErrAuthFailed}
	w := New(api, nil, nil, nil)

	w.Open()
	require.NoError(t, w.SetAmount("100"))

	err := w.SubmitSale(context.Background())
	assert.ErrorIs(t, err, biztrack.ErrAuthFailed)
	// The guard owns the reaction; the workflow shows nothing inline.
	assert.Empty(t, w.Err())
}

func TestWorkflow_CancelBlockedWhileSubmitting(t *testing.T) {
	api := &fakeCreator{saleGate: make(chan struct{})}
	w := New(api, nil, nil, nil)

	w.Open()
	require.NoError(t, w.SetAmount("250"))

	done := make(chan error, 1)
	go func() { done <- w.SubmitSale(context.Background()) }()

	// Wait for the submission to be in flight.
	require.Eventually(t, func() bool {
		return w.State() == StateSubmitting
	}, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, w.Cancel(), ErrSubmitInProgress)
	assert.ErrorIs(t, w.SubmitSale(context.Background()), ErrSubmitInProgress)

	close(api.saleGate)
	require.NoError(t, <-done)

	// After commit, closing is allowed again.
	require.NoError(t, w.Cancel())
	assert.Equal(t, StateIdle, w.State())
}

func TestWorkflow_InlineCreationFailureKeepsSubFormOpen(t *testing.T) {
	api := &fakeCreator{customerErr: &biztrack.APIError{StatusCode: 400, Message: "email already registered"}}
	w := New(api, nil, nil, nil)

	w.Open()
	require.NoError(t, w.OpenCustomerForm())
	require.NoError(t, w.SetCustomerName("Amina"))

	err := w.SubmitCustomer(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateEditingCustomer, w.State())
	assert.Equal(t, "email already registered", w.Err())
	assert.Nil(t, w.CustomerID())
}
