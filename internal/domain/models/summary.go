package models

import "fmt"

// Range selects the reporting window for the sales summary.
type Range string

const (
	RangeToday Range = "today"
	Range7d    Range = "7d"
	Range30d   Range = "30d"
)

// DefaultRange matches the remote service's fallback window.
const DefaultRange = Range7d

// ParseRange validates a user-supplied range string.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case RangeToday, Range7d, Range30d:
		return Range(s), nil
	default:
		return "", fmt.Errorf("invalid range %q (want today, 7d or 30d)", s)
	}
}

// PaymentBreakdown aggregates sales per payment method within the range.
type PaymentBreakdown struct {
	Method string  `json:"method"`
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
}

// TopCustomer is one entry of the best-buyers ranking.
type TopCustomer struct {
	CustomerID int64   `json:"customer_id"`
	Name       string  `json:"name"`
	Orders     int     `json:"orders"`
	TotalSpent float64 `json:"total_spent"`
}

// BestDay names the single highest-grossing day in the range.
type BestDay struct {
	Day   string  `json:"day"`
	Total float64 `json:"total"`
}

// Summary is the analytics payload of GET /sales/summary. Only the total
// matching the requested range is non-zero; the other two report 0.
type Summary struct {
	Range        Range              `json:"range"`
	StartDay     string             `json:"start_day"`
	EndDay       string             `json:"end_day"`
	TodayTotal   float64            `json:"today_total"`
	WeekTotal    float64            `json:"week_total"`
	MonthTotal   float64            `json:"month_total"`
	Payments     []PaymentBreakdown `json:"payments"`
	TopCustomers []TopCustomer      `json:"top_customers"`
	BestDay      *BestDay           `json:"best_day"`
}
