package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

func fact(txID int64, dateKey int64, customerID, category, gender string, quantity int64, price, total float64) warehouse.FactSalesRow {
	return warehouse.FactSalesRow{
		TransactionID:   txID,
		DateKey:         dateKey,
		CustomerID:      customerID,
		ProductCategory: category,
		Gender:          gender,
		Quantity:        quantity,
		PricePerUnit:    price,
		TotalAmount:     total,
	}
}

func TestBuildSalesPerformance(t *testing.T) {
	m := NewMartAggregator(zerolog.Nop())
	facts := []warehouse.FactSalesRow{
		fact(1, 20230110, "C1", "Beauty", "Female", 2, 50, 100),
		fact(2, 20230120, "C2", "Beauty", "Male", 1, 100, 100),
		fact(3, 20230215, "C1", "Beauty", "Female", 3, 100, 300),
	}

	rows := m.BuildSalesPerformance(facts, time.Now().UTC())
	if len(rows) != 2 {
		t.Fatalf("months = %d, want 2", len(rows))
	}

	jan := rows[0]
	if jan.Year != 2023 || jan.Month != 1 || jan.MonthName != "January" {
		t.Fatalf("first row = %+v, want January 2023", jan)
	}
	if jan.TotalRevenue != 200 || jan.TotalTransactions != 2 || jan.UniqueCustomers != 2 {
		t.Errorf("January aggregates = %+v", jan)
	}
	if jan.RevenuePrevMonth.Valid || jan.RevenueGrowthPct.Valid {
		t.Error("first month must have NULL growth fields")
	}

	feb := rows[1]
	if !feb.RevenuePrevMonth.Valid || feb.RevenuePrevMonth.Float64 != 200 {
		t.Errorf("February prev revenue = %+v, want 200", feb.RevenuePrevMonth)
	}
	if !feb.RevenueGrowthPct.Valid || feb.RevenueGrowthPct.Float64 != 50 {
		t.Errorf("February growth = %+v, want 50%%", feb.RevenueGrowthPct)
	}
	if feb.AvgOrderValue != 300 {
		t.Errorf("February avg order value = %v, want 300", feb.AvgOrderValue)
	}
}

func TestBuildSalesPerformance_ZeroRevenueMonth(t *testing.T) {
	m := NewMartAggregator(zerolog.Nop())
	facts := []warehouse.FactSalesRow{
		fact(1, 20230110, "C1", "Beauty", "Female", 1, 0, 0),
		fact(2, 20230215, "C1", "Beauty", "Female", 1, 100, 100),
	}

	rows := m.BuildSalesPerformance(facts, time.Now().UTC())
	if len(rows) != 2 {
		t.Fatalf("months = %d, want 2", len(rows))
	}
	feb := rows[1]
	if !feb.RevenuePrevMonth.Valid {
		t.Error("prev revenue should be set even when zero")
	}
	if feb.RevenueGrowthPct.Valid {
		t.Error("growth over a zero-revenue month must be NULL, not infinite")
	}
}

func TestBuildCategoryAnalysis(t *testing.T) {
	m := NewMartAggregator(zerolog.Nop())
	facts := []warehouse.FactSalesRow{
		fact(1, 20230110, "C1", "Beauty", "Female", 2, 50, 100),
		fact(2, 20230111, "C2", "Beauty", "Male", 1, 300, 300),
		fact(3, 20230112, "C3", "Electronics", "Male", 1, 600, 600),
	}
	categories := []warehouse.CategoryRow{
		{CategoryKey: 1, CategoryName: "Beauty", CategoryGroup: "Beauty & Accessories"},
		{CategoryKey: 2, CategoryName: "Electronics", CategoryGroup: "Electronics"},
	}

	rows := m.BuildCategoryAnalysis(facts, categories, time.Now().UTC())
	if len(rows) != 2 {
		t.Fatalf("categories = %d, want 2", len(rows))
	}

	beauty := rows[0]
	if beauty.ProductCategory != "Beauty" {
		t.Fatalf("rows not sorted by category: %+v", rows)
	}
	if beauty.TotalRevenue != 400 || beauty.RevenueSharePct != 40 {
		t.Errorf("Beauty revenue = %v at %v%%, want 400 at 40%%", beauty.TotalRevenue, beauty.RevenueSharePct)
	}
	if beauty.CategoryGroup != "Beauty & Accessories" {
		t.Errorf("CategoryGroup = %q", beauty.CategoryGroup)
	}
	if !beauty.FemaleRevenuePct.Valid || beauty.FemaleRevenuePct.Float64 != 25 {
		t.Errorf("female share = %+v, want 25%%", beauty.FemaleRevenuePct)
	}
	if !beauty.MaleRevenuePct.Valid || beauty.MaleRevenuePct.Float64 != 75 {
		t.Errorf("male share = %+v, want 75%%", beauty.MaleRevenuePct)
	}

	var shareSum float64
	for _, r := range rows {
		shareSum += r.RevenueSharePct
	}
	if math.Abs(shareSum-100) > 0.05 {
		t.Errorf("revenue shares sum to %v, want 100 within rounding", shareSum)
	}
}

func TestBuildCategoryAnalysis_NoGenderedRevenue(t *testing.T) {
	m := NewMartAggregator(zerolog.Nop())
	facts := []warehouse.FactSalesRow{
		fact(1, 20230110, "C1", "Beauty", "", 1, 100, 100),
	}

	rows := m.BuildCategoryAnalysis(facts, nil, time.Now().UTC())
	if len(rows) != 1 {
		t.Fatalf("categories = %d, want 1", len(rows))
	}
	if rows[0].FemaleRevenuePct.Valid || rows[0].MaleRevenuePct.Valid {
		t.Error("gender split must be NULL when no gendered revenue exists")
	}
}

func TestRound2(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1.005, 1.0},
		{33.333333, 33.33},
		{66.666666, 66.67},
		{-2.346, -2.35},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
