package services

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/models"
)

func TestCatalogStore_ListProductsPagination(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 5; i++ {
		env.mustCreate(t, &models.Product{Name: fmt.Sprintf("Кружка %d", i), Category: "accessories"})
	}

	tests := []struct {
		name    string
		page    int
		limit   int
		items   int
		hasNext bool
	}{
		{"first page", 1, 2, 2, true},
		{"last partial page", 3, 2, 1, false},
		{"past the end", 4, 2, 0, false},
		{"huge page", math.MaxInt, 20, 0, false},
		{"huge page small limit", math.MaxInt, 1, 0, false},
		{"defaults", 0, 0, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, pagination, err := env.catalog.ListProducts(context.Background(), models.ProductFilter{Page: tt.page, Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, products, tt.items)
			assert.Equal(t, int64(5), pagination.Total)
			assert.Equal(t, tt.hasNext, pagination.HasNext)
		})
	}
}
