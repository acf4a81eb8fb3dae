// Package stub implements the BizTrack remote contract in memory. It backs
// local development and the client integration tests; it is not the real
// service and keeps no durable state.
package stub

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/biztrack/console/internal/domain/models"
)

var (
	errEmailTaken  = errors.New("email already registered")
	errBadLogin    = errors.New("incorrect email or password")
	errUnknownUser = errors.New("unknown token")
)

// account is a stored user. Passwords are kept in the clear; the stub only
// ever runs against localhost and test processes.
type account struct {
	ID         int64
	BusinessID int64
	Name       string
	Email      string
	Password   string
	Role       string
}

type customerRecord struct {
	models.Customer
	BusinessID int64
}

type saleRecord struct {
	models.Sale
	BusinessID int64
}

// Store holds the stub's entire state behind one mutex.
type Store struct {
	mu         sync.Mutex
	accounts   []account
	customers  []customerRecord
	sales      []saleRecord
	tokens     map[string]int64
	nextID     int64
	businessID int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tokens: make(map[string]int64)}
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func newToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// Register creates a business with its owner account and issues a token.
func (s *Store) Register(req models.RegisterRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, a := range s.accounts {
		if a.Email == email {
			return "", errEmailTaken
		}
	}

	s.businessID++
	owner := account{
		ID:         s.allocID(),
		BusinessID: s.businessID,
		Name:       req.Name,
		Email:      email,
		Password:   req.Password,
		Role:       models.RoleOwner,
	}
	s.accounts = append(s.accounts, owner)

	token := newToken()
	s.tokens[token] = owner.ID
	return token, nil
}

// Login verifies credentials and issues a fresh token.
func (s *Store) Login(req models.LoginRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, a := range s.accounts {
		if a.Email == email && a.Password == req.Password {
			token := newToken()
			s.tokens[token] = a.ID
			return token, nil
		}
	}
	return "", errBadLogin
}

// Authenticate resolves a bearer token to its account.
func (s *Store) Authenticate(token string) (account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.tokens[token]
	if !ok {
		return account{}, errUnknownUser
	}
	for _, a := range s.accounts {
		if a.ID == userID {
			return a, nil
		}
	}
	return account{}, errUnknownUser
}

// RevokeToken invalidates a token; later calls with it see a 401.
func (s *Store) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// AddStaff creates a staff account under the same business.
func (s *Store) AddStaff(businessID int64, req models.StaffCreate) (models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, a := range s.accounts {
		if a.Email == email {
			return models.StaffMember{}, errEmailTaken
		}
	}

	member := account{
		ID:         s.allocID(),
		BusinessID: businessID,
		Name:       req.Name,
		Email:      email,
		Password:   req.Password,
		Role:       models.RoleStaff,
	}
	s.accounts = append(s.accounts, member)
	return models.StaffMember{ID: member.ID, Name: member.Name, Email: member.Email}, nil
}

// ListStaff returns the staff accounts of a business.
func (s *Store) ListStaff(businessID int64) []models.StaffMember {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.StaffMember
	for _, a := range s.accounts {
		if a.BusinessID == businessID && a.Role == models.RoleStaff {
			out = append(out, models.StaffMember{ID: a.ID, Name: a.Name, Email: a.Email})
		}
	}
	if out == nil {
		out = []models.StaffMember{}
	}
	return out
}

// AddCustomer registers a customer for the business.
func (s *Store) AddCustomer(businessID int64, req models.CustomerCreate) models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := models.Customer{ID: s.allocID(), Name: req.Name, Phone: req.Phone}
	s.customers = append(s.customers, customerRecord{Customer: c, BusinessID: businessID})
	return c
}

// ListCustomers returns the business's customers, most recent first.
func (s *Store) ListCustomers(businessID int64) []models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Customer{}
	for i := len(s.customers) - 1; i >= 0; i-- {
		if s.customers[i].BusinessID == businessID {
			out = append(out, s.customers[i].Customer)
		}
	}
	return out
}

func (s *Store) customerName(id int64) string {
	for _, c := range s.customers {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// AddSale records a sale at the given instant.
func (s *Store) AddSale(businessID int64, req models.SaleCreate, at time.Time) models.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := at.UTC()
	sale := models.Sale{
		ID:            s.allocID(),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		CustomerID:    req.CustomerID,
		CreatedAt:     &created,
	}
	s.sales = append(s.sales, saleRecord{Sale: sale, BusinessID: businessID})
	return sale
}

// ListSales returns the business's sales, most recent first.
func (s *Store) ListSales(businessID int64) []models.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Sale{}
	for i := len(s.sales) - 1; i >= 0; i-- {
		if s.sales[i].BusinessID == businessID {
			out = append(out, s.sales[i].Sale)
		}
	}
	return out
}

// salesSince returns the business's sales created at or after start.
func (s *Store) salesSince(businessID int64, start time.Time) []saleRecord {
	var out []saleRecord
	for _, rec := range s.sales {
		if rec.BusinessID == businessID && rec.CreatedAt != nil && !rec.CreatedAt.Before(start) {
			out = append(out, rec)
		}
	}
	return out
}

// eatZone is the business's local timezone (East Africa Time, UTC+3); day
// boundaries for range filters are computed there, not in UTC.
var eatZone = time.FixedZone("EAT", 3*60*60)

// rangeStart computes the UTC instant where the requested window begins.
func rangeStart(rng models.Range, now time.Time) time.Time {
	local := now.In(eatZone)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, eatZone)

	switch rng {
	case models.RangeToday:
		// dayStart as is
	case models.Range30d:
		dayStart = dayStart.AddDate(0, 0, -29)
	default:
		dayStart = dayStart.AddDate(0, 0, -6)
	}
	return dayStart.UTC()
}

// Summarize aggregates the business's sales for the range, mirroring the
// production service: the payment breakdown drives the total, only the
// requested range's total field is populated, top customers are capped at 5.
func (s *Store) Summarize(businessID int64, rng models.Range, now time.Time) models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := rangeStart(rng, now)
	recent := s.salesSince(businessID, start)

	type bucket struct {
		count int
		total float64
	}
	byMethod := map[string]*bucket{}
	byCustomer := map[int64]*bucket{}
	byDay := map[string]float64{}
	var methods []string

	rangeTotal := 0.0
	for _, rec := range recent {
		method := rec.PaymentMethod
		if method == "" {
			method = "Unknown/Other"
		}
		if byMethod[method] == nil {
			byMethod[method] = &bucket{}
			methods = append(methods, method)
		}
		byMethod[method].count++
		byMethod[method].total += rec.Amount
		rangeTotal += rec.Amount

		if rec.CustomerID != nil {
			if byCustomer[*rec.CustomerID] == nil {
				byCustomer[*rec.CustomerID] = &bucket{}
			}
			byCustomer[*rec.CustomerID].count++
			byCustomer[*rec.CustomerID].total += rec.Amount
		}

		day := rec.CreatedAt.Format("2006-01-02")
		byDay[day] += rec.Amount
	}

	sort.Strings(methods)
	payments := make([]models.PaymentBreakdown, 0, len(methods))
	for _, m := range methods {
		payments = append(payments, models.PaymentBreakdown{
			Method: m,
			Count:  byMethod[m].count,
			Total:  byMethod[m].total,
		})
	}

	top := make([]models.TopCustomer, 0, len(byCustomer))
	for id, b := range byCustomer {
		top = append(top, models.TopCustomer{
			CustomerID: id,
			Name:       s.customerName(id),
			Orders:     b.count,
			TotalSpent: b.total,
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalSpent != top[j].TotalSpent {
			return top[i].TotalSpent > top[j].TotalSpent
		}
		return top[i].CustomerID < top[j].CustomerID
	})
	if len(top) > 5 {
		top = top[:5]
	}

	var best *models.BestDay
	for day, total := range byDay {
		if best == nil || total > best.Total || (total == best.Total && day < best.Day) {
			best = &models.BestDay{Day: day, Total: total}
		}
	}

	summary := models.Summary{
		Range:        rng,
		StartDay:     start.Format("2006-01-02"),
		EndDay:       now.In(eatZone).Format("2006-01-02"),
		Payments:     payments,
		TopCustomers: top,
		BestDay:      best,
	}
	switch rng {
	case models.RangeToday:
		summary.TodayTotal = rangeTotal
	case models.Range30d:
		summary.MonthTotal = rangeTotal
	default:
		summary.WeekTotal = rangeTotal
	}
	return summary
}

// ExportRows returns the CSV export rows for the range, most recent first.
func (s *Store) ExportRows(businessID int64, rng models.Range, now time.Time) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.salesSince(businessID, rangeStart(rng, now))
	rows := make([][]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		rec := recent[i]
		customerID := ""
		customerName := ""
		if rec.CustomerID != nil {
			customerID = formatInt(*rec.CustomerID)
			customerName = s.customerName(*rec.CustomerID)
		}
		rows = append(rows, []string{
			formatInt(rec.ID),
			formatFloat(rec.Amount),
			rec.PaymentMethod,
			customerID,
			customerName,
			rec.CreatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
