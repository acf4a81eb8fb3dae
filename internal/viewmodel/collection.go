package viewmodel

import (
	"sync"

	"github.com/biztrack/console/internal/domain/models"
)

// CustomerList is the screen-local customer cache. Order is significant:
// new entries merge at the front so the freshest customer shows first.
type CustomerList struct {
	mu    sync.RWMutex
	items []models.Customer
}

// NewCustomerList creates an empty cache.
func NewCustomerList() *CustomerList {
	return &CustomerList{}
}

// Merge inserts c at the front. Inserting an id already present is a no-op,
// so an optimistic insert racing a background reload never duplicates a row.
// It reports whether the entry was added.
func (l *CustomerList) Merge(c models.Customer) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.items {
		if existing.ID == c.ID {
			return false
		}
	}
	l.items = append([]models.Customer{c}, l.items...)
	return true
}

// Replace swaps the whole cache for the authoritative server listing.
func (l *CustomerList) Replace(items []models.Customer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]models.Customer(nil), items...)
}

// Items returns a copy of the current sequence.
func (l *CustomerList) Items() []models.Customer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Customer(nil), l.items...)
}

// Len returns the number of cached customers.
func (l *CustomerList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
