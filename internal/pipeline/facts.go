package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

// FactStats counts fact construction outcomes. Unresolved references never
// drop a fact row; the row carries the reserved unknown key instead.
type FactStats struct {
	RowsIn               int
	RowsOut              int
	UnresolvedCustomers  int
	UnresolvedCategories int
}

// FactBuilder resolves each transaction to dimension surrogate keys and emits
// one fact row per transaction. Lookups are built from current dimension
// versions only; the date key is derived, so it can never miss.
type FactBuilder struct {
	log zerolog.Logger
}

func NewFactBuilder(log zerolog.Logger) *FactBuilder {
	return &FactBuilder{log: log}
}

func (f *FactBuilder) Build(sales []SalesRecord, customers []warehouse.CustomerRow, categories []warehouse.CategoryRow, loadedAt time.Time) ([]warehouse.FactSalesRow, FactStats) {
	stats := FactStats{RowsIn: len(sales)}

	customerKeys := make(map[string]int64, len(customers))
	for _, row := range customers {
		if row.IsCurrent {
			customerKeys[row.CustomerID] = row.CustomerKey
		}
	}
	categoryKeys := make(map[string]int64, len(categories))
	for _, row := range categories {
		categoryKeys[row.CategoryName] = row.CategoryKey
	}

	rows := make([]warehouse.FactSalesRow, 0, len(sales))
	for i, rec := range sales {
		customerKey, ok := customerKeys[rec.CustomerID]
		if !ok {
			// Should not happen: the dimension is derived from the same
			// batch. Guarded anyway.
			customerKey = UnknownKey
			stats.UnresolvedCustomers++
			f.log.Warn().Str("customer_id", rec.CustomerID).Msg("Unresolved customer reference")
		}
		categoryKey, ok := categoryKeys[rec.ProductCategory]
		if !ok {
			categoryKey = UnknownKey
			stats.UnresolvedCategories++
			f.log.Warn().Str("product_category", rec.ProductCategory).Msg("Unresolved category reference")
		}

		rows = append(rows, warehouse.FactSalesRow{
			SalesKey:        int64(i + 1),
			TransactionID:   rec.TransactionID,
			DateKey:         dateKey(rec.Date),
			CustomerKey:     customerKey,
			CategoryKey:     categoryKey,
			Quantity:        rec.Quantity,
			PricePerUnit:    rec.PricePerUnit,
			TotalAmount:     rec.TotalAmount,
			CustomerID:      rec.CustomerID,
			ProductCategory: rec.ProductCategory,
			Gender:          rec.Gender,
			Age:             rec.Age,
			ExtractedAt:     rec.ExtractedAt,
			Source:          rec.Source,
			LoadedAt:        loadedAt,
		})
	}

	stats.RowsOut = len(rows)
	f.log.Info().
		Int("rows", stats.RowsOut).
		Int("unresolved_customers", stats.UnresolvedCustomers).
		Int("unresolved_categories", stats.UnresolvedCategories).
		Msg("Built fact sales")
	return rows, stats
}
