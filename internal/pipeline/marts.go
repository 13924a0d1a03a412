package pipeline

import (
	"math"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

// MartAggregator derives the pre-aggregated summary tables from fact rows and
// current dimension rows. Marts carry no history and are recomputed wholesale
// each run.
type MartAggregator struct {
	log zerolog.Logger
}

func NewMartAggregator(log zerolog.Logger) *MartAggregator {
	return &MartAggregator{log: log}
}

type monthlyAccumulator struct {
	year, month int64
	monthName   string
	revenue     float64
	quantity    int64
	txns        map[int64]bool
	customers   map[string]bool
	rowCount    int64
}

// BuildSalesPerformance aggregates facts per calendar month, with
// month-over-month revenue growth via a lag over the ordered month sequence.
// The first month (and any month following a zero-revenue month) has NULL
// growth rather than an error.
func (m *MartAggregator) BuildSalesPerformance(facts []warehouse.FactSalesRow, generatedAt time.Time) []warehouse.MartSalesPerformanceRow {
	months := make(map[int64]*monthlyAccumulator)
	for _, f := range facts {
		key := f.DateKey / 100 // YYYYMM
		acc, ok := months[key]
		if !ok {
			year := f.DateKey / 10000
			month := (f.DateKey / 100) % 100
			acc = &monthlyAccumulator{
				year:      year,
				month:     month,
				monthName: time.Month(month).String(),
				txns:      make(map[int64]bool),
				customers: make(map[string]bool),
			}
			months[key] = acc
		}
		acc.revenue += f.TotalAmount
		acc.quantity += f.Quantity
		acc.txns[f.TransactionID] = true
		acc.customers[f.CustomerID] = true
		acc.rowCount++
	}

	keys := make([]int64, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rows := make([]warehouse.MartSalesPerformanceRow, 0, len(keys))
	var prevRevenue float64
	for i, k := range keys {
		acc := months[k]

		row := warehouse.MartSalesPerformanceRow{
			Year:              acc.year,
			Month:             acc.month,
			MonthName:         acc.monthName,
			TotalRevenue:      acc.revenue,
			TotalTransactions: int64(len(acc.txns)),
			TotalQuantity:     acc.quantity,
			AvgOrderValue:     round2(acc.revenue / float64(acc.rowCount)),
			UniqueCustomers:   int64(len(acc.customers)),
			GeneratedAt:       generatedAt,
		}
		if i > 0 {
			row.RevenuePrevMonth = bigquery.NullFloat64{Float64: prevRevenue, Valid: true}
			if prevRevenue != 0 {
				growth := (acc.revenue - prevRevenue) / prevRevenue * 100
				row.RevenueGrowthPct = bigquery.NullFloat64{Float64: round2(growth), Valid: true}
			}
		}
		prevRevenue = acc.revenue
		rows = append(rows, row)
	}

	m.log.Info().Int("months", len(rows)).Msg("Built sales performance mart")
	return rows
}

type categoryAccumulator struct {
	revenue       float64
	quantity      int64
	priceSum      float64
	ageSum        int64
	txns          map[int64]bool
	customers     map[string]bool
	rowCount      int64
	femaleRevenue float64
	maleRevenue   float64
}

// BuildCategoryAnalysis aggregates facts per category: revenue share of the
// run's total, demographics and a gender revenue split. Shares are rounded to
// two decimal places and sum to 100 within rounding tolerance.
func (m *MartAggregator) BuildCategoryAnalysis(facts []warehouse.FactSalesRow, categories []warehouse.CategoryRow, generatedAt time.Time) []warehouse.MartCategoryAnalysisRow {
	groups := make(map[string]string, len(categories))
	for _, c := range categories {
		groups[c.CategoryName] = c.CategoryGroup
	}

	accs := make(map[string]*categoryAccumulator)
	var names []string
	var totalRevenue float64
	for _, f := range facts {
		acc, ok := accs[f.ProductCategory]
		if !ok {
			acc = &categoryAccumulator{
				txns:      make(map[int64]bool),
				customers: make(map[string]bool),
			}
			accs[f.ProductCategory] = acc
			names = append(names, f.ProductCategory)
		}
		acc.revenue += f.TotalAmount
		acc.quantity += f.Quantity
		acc.priceSum += f.PricePerUnit
		acc.ageSum += f.Age
		acc.txns[f.TransactionID] = true
		acc.customers[f.CustomerID] = true
		acc.rowCount++
		switch f.Gender {
		case "Female":
			acc.femaleRevenue += f.TotalAmount
		case "Male":
			acc.maleRevenue += f.TotalAmount
		}
		totalRevenue += f.TotalAmount
	}
	sort.Strings(names)

	rows := make([]warehouse.MartCategoryAnalysisRow, 0, len(names))
	for _, name := range names {
		acc := accs[name]
		row := warehouse.MartCategoryAnalysisRow{
			ProductCategory:   name,
			TotalRevenue:      acc.revenue,
			TotalTransactions: int64(len(acc.txns)),
			TotalQuantity:     acc.quantity,
			AvgPrice:          round2(acc.priceSum / float64(acc.rowCount)),
			AvgOrderValue:     round2(acc.revenue / float64(acc.rowCount)),
			UniqueCustomers:   int64(len(acc.customers)),
			AvgCustomerAge:    round2(float64(acc.ageSum) / float64(acc.rowCount)),
			CategoryGroup:     groups[name],
			GeneratedAt:       generatedAt,
		}
		if totalRevenue != 0 {
			row.RevenueSharePct = round2(acc.revenue / totalRevenue * 100)
		}
		if gendered := acc.femaleRevenue + acc.maleRevenue; gendered > 0 {
			femalePct := round2(acc.femaleRevenue / gendered * 100)
			row.FemaleRevenuePct = bigquery.NullFloat64{Float64: femalePct, Valid: true}
			row.MaleRevenuePct = bigquery.NullFloat64{Float64: round2(100 - femalePct), Valid: true}
		}
		rows = append(rows, row)
	}

	m.log.Info().Int("categories", len(rows)).Msg("Built category analysis mart")
	return rows
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
