package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

// Store is the warehouse write surface the loader needs. Implemented by
// warehouse.Client; tests substitute an in-memory fake.
type Store interface {
	// AppendRows inserts without touching existing data (staging tables).
	AppendRows(ctx context.Context, table string, rows any) error
	// ReplaceRows atomically swaps the table contents for the given rows.
	ReplaceRows(ctx context.Context, table string, rows any) error
}

// TableSet is the complete output of one transform stage, one field per
// warehouse table. Each table is owned by exactly one producing component;
// the loader only persists.
type TableSet struct {
	StgRetailSales []warehouse.StgRetailSalesRow
	StgAPIProducts []warehouse.StgAPIProductRow

	DimDate            []warehouse.DateRow
	DimCustomer        []warehouse.CustomerRow
	DimProduct         []warehouse.ProductRow
	DimProductCategory []warehouse.CategoryRow

	FactSales []warehouse.FactSalesRow

	MartSalesPerformance []warehouse.MartSalesPerformanceRow
	MartCategoryAnalysis []warehouse.MartCategoryAnalysisRow
}

// TableLoadResult reports one table's load outcome in the run summary.
type TableLoadResult struct {
	Table string
	Rows  int
	Mode  string // append or replace
	Error string
}

// Loader applies a TableSet to the warehouse with per-table write semantics:
// staging tables append, everything else is replaced wholesale. A failed
// table is reported as a LoadError and does not stop sibling tables.
type Loader struct {
	log   zerolog.Logger
	store Store
}

func NewLoader(log zerolog.Logger, store Store) *Loader {
	return &Loader{log: log, store: store}
}

// LoadAll writes every table and returns per-table results plus the count of
// failures. Load order follows the dependency order of the star schema,
// though each table's write is independent.
func (l *Loader) LoadAll(ctx context.Context, tables *TableSet) ([]TableLoadResult, int) {
	loads := []struct {
		table   string
		mode    string
		rows    any
		rowsLen int
	}{
		{warehouse.StgRetailSalesTable, "append", tables.StgRetailSales, len(tables.StgRetailSales)},
		{warehouse.StgAPIProductsTable, "append", tables.StgAPIProducts, len(tables.StgAPIProducts)},
		{warehouse.DimDateTable, "replace", tables.DimDate, len(tables.DimDate)},
		{warehouse.DimCustomerTable, "replace", tables.DimCustomer, len(tables.DimCustomer)},
		{warehouse.DimProductTable, "replace", tables.DimProduct, len(tables.DimProduct)},
		{warehouse.DimProductCategoryTable, "replace", tables.DimProductCategory, len(tables.DimProductCategory)},
		{warehouse.FactSalesTable, "replace", tables.FactSales, len(tables.FactSales)},
		{warehouse.MartSalesPerformanceTable, "replace", tables.MartSalesPerformance, len(tables.MartSalesPerformance)},
		{warehouse.MartCategoryAnalysisTable, "replace", tables.MartCategoryAnalysis, len(tables.MartCategoryAnalysis)},
	}

	results := make([]TableLoadResult, 0, len(loads))
	failed := 0
	for _, ld := range loads {
		var err error
		if ld.mode == "append" {
			err = l.store.AppendRows(ctx, ld.table, ld.rows)
		} else {
			err = l.store.ReplaceRows(ctx, ld.table, ld.rows)
		}

		result := TableLoadResult{Table: ld.table, Rows: ld.rowsLen, Mode: ld.mode}
		if err != nil {
			lerr := &LoadError{Table: ld.table, Err: err}
			result.Error = lerr.Error()
			failed++
			l.log.Error().Err(lerr).Str("table", ld.table).Msg("Table load failed")
		} else {
			l.log.Info().Str("table", ld.table).Int("rows", ld.rowsLen).Str("mode", ld.mode).Msg("Loaded table")
		}
		results = append(results, result)
	}

	return results, failed
}
