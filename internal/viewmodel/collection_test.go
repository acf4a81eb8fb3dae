package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biztrack/console/internal/domain/models"
)

func TestCustomerList_MergeFrontOrder(t *testing.T) {
	list := NewCustomerList()

	assert.True(t, list.Merge(models.Customer{ID: 1, Name: "Amina"}))
	assert.True(t, list.Merge(models.Customer{ID: 2, Name: "Brian"}))

	items := list.Items()
	assert.Equal(t, []int64{2, 1}, ids(items))
	assert.Equal(t, "Brian", items[0].Name)
}

func TestCustomerList_MergeIsIdempotent(t *testing.T) {
	list := NewCustomerList()
	list.Replace([]models.Customer{{ID: 1, Name: "Amina"}, {ID: 2, Name: "Brian"}})

	// Re-inserting an existing identity is a no-op, even with a different
	// payload: the cached row wins until the next authoritative reload.
	assert.False(t, list.Merge(models.Customer{ID: 1, Name: "Amina K."}))

	items := list.Items()
	assert.Len(t, items, 2)
	assert.Equal(t, "Amina", items[0].Name)
}

func TestCustomerList_ReplaceIsWholesale(t *testing.T) {
	list := NewCustomerList()
	list.Merge(models.Customer{ID: 99, Name: "Optimistic"})

	list.Replace([]models.Customer{{ID: 1, Name: "Amina"}})
	assert.Equal(t, []int64{1}, ids(list.Items()))
}

func TestCustomerList_ItemsReturnsCopy(t *testing.T) {
	list := NewCustomerList()
	list.Replace([]models.Customer{{ID: 1, Name: "Amina"}})

	items := list.Items()
	items[0].Name = "mutated"
	assert.Equal(t, "Amina", list.Items()[0].Name)
}

func ids(items []models.Customer) []int64 {
	out := make([]int64, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}
