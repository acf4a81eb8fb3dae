package stub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biztrack/console/internal/domain/models"
)

func seedBusiness(t *testing.T) (*Store, int64) {
	t.Helper()
	store := NewStore()
	token, err := store.Register(models.RegisterRequest{
		BusinessName: "BizTrack KE",
		Name:         "Levin",
		Email:        "levin@test.com",
		Password:     "password123",
	})
	require.NoError(t, err)
	acct, err := store.Authenticate(token)
	require.NoError(t, err)
	return store, acct.BusinessID
}

func ptr(v int64) *int64 { return &v }

func TestStore_SummarizeExclusiveTotals(t *testing.T) {
	store, businessID := seedBusiness(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	amina := store.AddCustomer(businessID, models.CustomerCreate{Name: "Amina"})
	store.AddSale(businessID, models.SaleCreate{Amount: 1500, PaymentMethod: models.PaymentMpesa, CustomerID: ptr(amina.ID)}, now)
	store.AddSale(businessID, models.SaleCreate{Amount: 500, PaymentMethod: models.PaymentCash}, now.AddDate(0, 0, -3))
	store.AddSale(businessID, models.SaleCreate{Amount: 800, PaymentMethod: models.PaymentMpesa}, now.AddDate(0, 0, -20))

	today := store.Summarize(businessID, models.RangeToday, now)
	assert.Equal(t, 1500.0, today.TodayTotal)
	assert.Zero(t, today.WeekTotal)
	assert.Zero(t, today.MonthTotal)

	week := store.Summarize(businessID, models.Range7d, now)
	assert.Equal(t, 2000.0, week.WeekTotal)
	assert.Zero(t, week.TodayTotal)

	month := store.Summarize(businessID, models.Range30d, now)
	assert.Equal(t, 2800.0, month.MonthTotal)

	// The payment breakdown always sums to the range total.
	var breakdownTotal float64
	for _, p := range month.Payments {
		breakdownTotal += p.Total
	}
	assert.Equal(t, month.MonthTotal, breakdownTotal)
}

func TestStore_SummarizeTopCustomersAndBestDay(t *testing.T) {
	store, businessID := seedBusiness(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	amina := store.AddCustomer(businessID, models.CustomerCreate{Name: "Amina"})
	brian := store.AddCustomer(businessID, models.CustomerCreate{Name: "Brian"})
	store.AddSale(businessID, models.SaleCreate{Amount: 300, PaymentMethod: models.PaymentCash, CustomerID: ptr(amina.ID)}, now)
	store.AddSale(businessID, models.SaleCreate{Amount: 900, PaymentMethod: models.PaymentCard, CustomerID: ptr(brian.ID)}, now.AddDate(0, 0, -1))
	store.AddSale(businessID, models.SaleCreate{Amount: 100, PaymentMethod: models.PaymentCash, CustomerID: ptr(amina.ID)}, now.AddDate(0, 0, -1))

	summary := store.Summarize(businessID, models.Range7d, now)

	require.Len(t, summary.TopCustomers, 2)
	assert.Equal(t, "Brian", summary.TopCustomers[0].Name)
	assert.Equal(t, 900.0, summary.TopCustomers[0].TotalSpent)
	assert.Equal(t, 2, summary.TopCustomers[1].Orders)

	require.NotNil(t, summary.BestDay)
	assert.Equal(t, now.AddDate(0, 0, -1).Format("2006-01-02"), summary.BestDay.Day)
	assert.Equal(t, 1000.0, summary.BestDay.Total)
}

func TestStore_SummarizeEmptyRange(t *testing.T) {
	store, businessID := seedBusiness(t)

	summary := store.Summarize(businessID, models.Range7d, time.Now())
	assert.Empty(t, summary.Payments)
	assert.Empty(t, summary.TopCustomers)
	assert.Nil(t, summary.BestDay)
	assert.Zero(t, summary.WeekTotal)
}

func TestHandlers_AuthRequired(t *testing.T) {
	engine := NewRouter(NewHandler(NewStore(), nil), nil)

	for _, header := range []string{"", "Bearer ", "Bearer bogus", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Contains(t, rec.Body.String(), "Could not validate credentials")
	}
}

func TestHandlers_RevokedTokenIsUnauthorized(t *testing.T) {
	store := NewStore()
	engine := NewRouter(NewHandler(store, nil), nil)

	token, err := store.Register(models.RegisterRequest{
		BusinessName: "B", Name: "N", Email: "e@test.com", Password: "p",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	store.RevokeToken(token)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_SaleValidation(t *testing.T) {
	store := NewStore()
	engine := NewRouter(NewHandler(store, nil), nil)

	token, err := store.Register(models.RegisterRequest{
		BusinessName: "B", Name: "N", Email: "e@test.com", Password: "p",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sales",
		strings.NewReader(`{"amount":-10,"payment_method":"cash","customer_id":null}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Detail []struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Detail, 1)
	assert.Contains(t, body.Detail[0].Msg, "greater than 0")
}

func TestHandlers_StaffRoleGating(t *testing.T) {
	store := NewStore()
	engine := NewRouter(NewHandler(store, nil), nil)

	ownerToken, err := store.Register(models.RegisterRequest{
		BusinessName: "B", Name: "Owner", Email: "owner@test.com", Password: "p",
	})
	require.NoError(t, err)

	acct, err := store.Authenticate(ownerToken)
	require.NoError(t, err)
	_, err = store.AddStaff(acct.BusinessID, models.StaffCreate{
		Name: "Brian", Email: "brian@test.com", Password: "secret", Role: models.RoleStaff,
	})
	require.NoError(t, err)
	staffToken, err := store.Login(models.LoginRequest{Email: "brian@test.com", Password: "secret"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/staff", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only the owner can manage staff")

	// The staff session itself remains usable.
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStore_ListCustomersMostRecentFirst(t *testing.T) {
	store, businessID := seedBusiness(t)

	store.AddCustomer(businessID, models.CustomerCreate{Name: "Amina"})
	store.AddCustomer(businessID, models.CustomerCreate{Name: "Brian"})

	customers := store.ListCustomers(businessID)
	require.Len(t, customers, 2)
	assert.Equal(t, "Brian", customers[0].Name)
}

func TestStore_ExportRowsColumns(t *testing.T) {
	store, businessID := seedBusiness(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	amina := store.AddCustomer(businessID, models.CustomerCreate{Name: "Amina"})
	store.AddSale(businessID, models.SaleCreate{Amount: 1500, PaymentMethod: models.PaymentMpesa, CustomerID: ptr(amina.ID)}, now)

	rows := store.ExportRows(businessID, models.Range7d, now)
	require.Len(t, rows, 1)
	assert.Equal(t, "1500", rows[0][1])
	assert.Equal(t, models.PaymentMpesa, rows[0][2])
	assert.Equal(t, "Amina", rows[0][4])
}
