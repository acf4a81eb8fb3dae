// Package salesflow drives the record-sale workflow: compose a sale,
// optionally create a customer inline, then submit the sale referencing it.
package salesflow

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

// State is the workflow's position in its lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateEditing         State = "editing"
	StateEditingCustomer State = "editing_customer"
	StateSubmitting      State = "submitting"
	StateCommitted       State = "committed"
	StateFailed          State = "failed"
)

// Local validation failures. These never produce a network call.
var (
	ErrInvalidAmount       = errors.New("amount must be a valid number greater than 0")
	ErrCustomerNameMissing = errors.New("customer name is required")
	ErrNotEditing          = errors.New("workflow is not open for editing")
	ErrSubmitInProgress    = errors.New("a submission is in flight")
)

// CustomerCreated is emitted exactly once per successful inline creation.
// One handler consumes it and performs the full fan-out: merge into the
// enclosing screen's customer cache, auto-select the new id on the sale, and
// collapse the inline sub-form.
type CustomerCreated struct {
	ID    int64
	Name  string
	Phone string
}

// Creator is the slice of the API client the workflow needs.
type Creator interface {
	CreateCustomer(ctx context.Context, req models.CustomerCreate) (*models.Customer, error)
	CreateSale(ctx context.Context, req models.SaleCreate) (*models.Sale, error)
}

// Workflow owns all transient form state of the record-sale dialog. Opening
// it resets every field; nothing leaks across invocations.
type Workflow struct {
	api    Creator
	logger *zap.Logger

	// onCustomerCreated completes the CustomerCreated fan-out outside the
	// workflow (the cache merge); selection and sub-form collapse happen
	// inside, under the same lock, so the three effects land together.
	onCustomerCreated func(CustomerCreated)
	// onCommitted signals the owning screen to re-run its view-model after
	// a successful sale.
	onCommitted func()

	mu         sync.Mutex
	state      State
	amount     string
	method     string
	customerID *int64
	custName   string
	custPhone  string
	errText    string
}

// New constructs a workflow in the Idle state.
func New(api Creator, logger *zap.Logger, onCustomerCreated func(CustomerCreated), onCommitted func()) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		api:               api,
		logger:            logger,
		onCustomerCreated: onCustomerCreated,
		onCommitted:       onCommitted,
		state:             StateIdle,
	}
}

// Open starts a fresh invocation, resetting every transient field.
func (w *Workflow) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = StateEditing
	w.amount = ""
	w.method = models.PaymentMpesa
	w.customerID = nil
	w.custName = ""
	w.custPhone = ""
	w.errText = ""
}

// Cancel abandons the workflow. Rejected while a submission is in flight:
// the inline customer creation and the sale creation are two independent
// remote mutations, and abandoning between them must be deliberate, never
// the side effect of a stray close.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	w.state = StateIdle
	return nil
}

// State returns the current lifecycle position.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the currently displayed inline error text, if any.
func (w *Workflow) Err() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errText
}

// Amount returns the raw amount entry.
func (w *Workflow) Amount() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.amount
}

// Method returns the selected payment method.
func (w *Workflow) Method() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.method
}

// CustomerID returns the selected customer reference; nil means walk-in.
func (w *Workflow) CustomerID() *int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.customerID
}

// SetAmount records the raw amount entry. Validation happens at submit.
func (w *Workflow) SetAmount(raw string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.editable() {
		return ErrNotEditing
	}
	w.amount = strings.TrimSpace(raw)
	return nil
}

// SetMethod selects the payment method.
func (w *Workflow) SetMethod(method string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.editable() {
		return ErrNotEditing
	}
	w.method = method
	return nil
}

// SelectCustomer picks an existing customer, or nil for a walk-in sale.
func (w *Workflow) SelectCustomer(id *int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.editable() {
		return ErrNotEditing
	}
	w.customerID = id
	return nil
}

// OpenCustomerForm expands the inline new-customer sub-form.
func (w *Workflow) OpenCustomerForm() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.editable() {
		return ErrNotEditing
	}
	w.state = StateEditingCustomer
	w.custName = ""
	w.custPhone = ""
	return nil
}

// CloseCustomerForm collapses the sub-form without creating anything.
func (w *Workflow) CloseCustomerForm() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateEditingCustomer {
		return ErrNotEditing
	}
	w.state = StateEditing
	return nil
}

// SetCustomerName records the inline customer's name.
func (w *Workflow) SetCustomerName(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateEditingCustomer {
		return ErrNotEditing
	}
	w.custName = strings.TrimSpace(name)
	return nil
}

// SetCustomerPhone records the inline customer's phone.
func (w *Workflow) SetCustomerPhone(phone string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateEditingCustomer {
		return ErrNotEditing
	}
	w.custPhone = strings.TrimSpace(phone)
	return nil
}

// SubmitCustomer creates the inline customer. On success the new identity is
// auto-selected as the sale's reference, the sub-form collapses, and the
// CustomerCreated handler merges the entity into the screen's cache.
// An empty name is rejected before any network call.
func (w *Workflow) SubmitCustomer(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateEditingCustomer {
		w.mu.Unlock()
		return ErrNotEditing
	}
	if w.custName == "" {
		w.errText = ErrCustomerNameMissing.Error()
		w.mu.Unlock()
		return ErrCustomerNameMissing
	}
	req := models.CustomerCreate{Name: w.custName, Phone: w.custPhone}
	w.errText = ""
	w.state = StateSubmitting
	w.mu.Unlock()

	created, err := w.api.CreateCustomer(ctx, req)

	w.mu.Lock()
	if err != nil {
		w.state = StateEditingCustomer
		if errors.Is(err, biztrack.ErrAuthFailed) {
			// Session teardown is the guard's business, not an inline error.
			w.mu.Unlock()
			return err
		}
		w.errText = displayMessage(err)
		w.mu.Unlock()
		return err
	}

	event := CustomerCreated{ID: created.ID, Name: created.Name, Phone: created.Phone}
	w.customerID = &created.ID
	w.custName = ""
	w.custPhone = ""
	w.state = StateEditing
	handler := w.onCustomerCreated
	w.mu.Unlock()

	w.logger.Info("inline customer created",
		zap.Int64("customer_id", event.ID), zap.String("name", event.Name))

	if handler != nil {
		handler(event)
	}
	return nil
}

// SubmitSale validates and submits the sale. The customer reference is
// already resolved to nil or a concrete id by the time the call is issued.
// On success the workflow closes and the owner is signalled to refresh; on
// any other remote failure the workflow stays open with every field intact.
func (w *Workflow) SubmitSale(ctx context.Context) error {
	w.mu.Lock()
	if !w.editable() {
		w.mu.Unlock()
		if w.state == StateSubmitting {
			return ErrSubmitInProgress
		}
		return ErrNotEditing
	}

	amount, err := parseAmount(w.amount)
	if err != nil {
		w.errText = err.Error()
		w.mu.Unlock()
		return err
	}

	req := models.SaleCreate{
		Amount:        amount,
		PaymentMethod: w.method,
		CustomerID:    w.customerID,
	}
	w.errText = ""
	prev := w.state
	w.state = StateSubmitting
	w.mu.Unlock()

	_, err = w.api.CreateSale(ctx, req)

	w.mu.Lock()
	if err != nil {
		if errors.Is(err, biztrack.ErrAuthFailed) {
			w.state = prev
			w.mu.Unlock()
			return err
		}
		w.state = StateFailed
		w.errText = displayMessage(err)
		w.mu.Unlock()
		return err
	}

	w.state = StateCommitted
	onCommitted := w.onCommitted
	w.mu.Unlock()

	w.logger.Info("sale recorded",
		zap.Float64("amount", req.Amount), zap.String("method", req.PaymentMethod))

	if onCommitted != nil {
		onCommitted()
	}
	return nil
}

// editable reports whether form mutation is allowed. Failed counts: a failed
// submit keeps the workflow open for correction and retry.
func (w *Workflow) editable() bool {
	switch w.state {
	case StateEditing, StateEditingCustomer, StateFailed:
		return true
	default:
		return false
	}
}

func parseAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// displayMessage renders any remote failure as a single human-readable
// string; the workflow never surfaces raw payload shapes.
func displayMessage(err error) string {
	var apiErr *biztrack.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
