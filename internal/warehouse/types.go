package warehouse

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Table names within the warehouse dataset.
const (
	StgRetailSalesTable       = "stg_retail_sales"
	StgAPIProductsTable       = "stg_api_products"
	DimDateTable              = "dim_date"
	DimCustomerTable          = "dim_customer"
	DimProductTable           = "dim_product"
	DimProductCategoryTable   = "dim_product_category"
	FactSalesTable            = "fact_sales"
	MartSalesPerformanceTable = "mart_sales_performance"
	MartCategoryAnalysisTable = "mart_category_analysis"
	EtlRunLogTable            = "etl_run_log"
)

// OpenEndedDate is the sentinel effective_end_date for the current version of
// an SCD Type 2 dimension row.
var OpenEndedDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// StgRetailSalesRow is one staged retail transaction, provenance-tagged.
// Staging tables are append-only.
type StgRetailSalesRow struct {
	TransactionID   int64     `bigquery:"transaction_id"`
	Date            time.Time `bigquery:"date"`
	CustomerID      string    `bigquery:"customer_id"`
	Gender          string    `bigquery:"gender"`
	Age             int64     `bigquery:"age"`
	ProductCategory string    `bigquery:"product_category"`
	Quantity        int64     `bigquery:"quantity"`
	PricePerUnit    float64   `bigquery:"price_per_unit"`
	TotalAmount     float64   `bigquery:"total_amount"`
	RowHash         string    `bigquery:"row_hash"`
	ExtractedAt     time.Time `bigquery:"_extracted_at"`
	Source          string    `bigquery:"_source"`
}

// StgAPIProductRow is one staged catalog product, provenance-tagged.
type StgAPIProductRow struct {
	APIProductID    int64     `bigquery:"api_product_id"`
	ProductName     string    `bigquery:"product_name"`
	APIPrice        float64   `bigquery:"api_price"`
	Description     string    `bigquery:"description"`
	ProductCategory string    `bigquery:"product_category"`
	ProductImageURL string    `bigquery:"product_image_url"`
	RatingRate      float64   `bigquery:"rating_rate"`
	RatingCount     int64     `bigquery:"rating_count"`
	ExtractedAt     time.Time `bigquery:"_extracted_at"`
	Source          string    `bigquery:"_source"`
}

// DateRow is one calendar day in dim_date. Fully derived, no history.
type DateRow struct {
	DateKey       int64      `bigquery:"date_key"`
	FullDate      civil.Date `bigquery:"full_date"`
	Year          int64      `bigquery:"year"`
	Quarter       int64      `bigquery:"quarter"`
	Month         int64      `bigquery:"month"`
	MonthName     string     `bigquery:"month_name"`
	WeekOfYear    int64      `bigquery:"week_of_year"`
	DayOfMonth    int64      `bigquery:"day_of_month"`
	DayOfWeek     int64      `bigquery:"day_of_week"` // Monday = 0
	DayName       string     `bigquery:"day_name"`
	IsWeekend     bool       `bigquery:"is_weekend"`
	FiscalYear    int64      `bigquery:"fiscal_year"` // fiscal year starts in October
	FiscalQuarter int64      `bigquery:"fiscal_quarter"`
}

// CustomerRow is one temporal version of a customer in dim_customer (SCD Type 2).
// Gender and age are tracked for change detection; the purchase aggregates and
// the classifications derived from them are refreshed in place.
type CustomerRow struct {
	CustomerKey       int64     `bigquery:"customer_key"`
	CustomerID        string    `bigquery:"customer_id"`
	Gender            string    `bigquery:"gender"`
	Age               int64     `bigquery:"age"`
	AgeGroup          string    `bigquery:"age_group"`
	CustomerSegment   string    `bigquery:"customer_segment"`
	FirstPurchaseDate time.Time `bigquery:"first_purchase_date"`
	LastPurchaseDate  time.Time `bigquery:"last_purchase_date"`
	TotalTransactions int64     `bigquery:"total_transactions"`

	EffectiveStartDate time.Time `bigquery:"effective_start_date"`
	EffectiveEndDate   time.Time `bigquery:"effective_end_date"`
	IsCurrent          bool      `bigquery:"is_current"`
	Version            int64     `bigquery:"version"`
	RowHash            string    `bigquery:"row_hash"`

	LoadedAt time.Time `bigquery:"_loaded_at"`
}

// ProductRow is one temporal version of a catalog product in dim_product
// (SCD Type 2). Name, price and category are tracked; description, image and
// rating churn does not open a new version.
type ProductRow struct {
	ProductKey      int64   `bigquery:"product_key"`
	APIProductID    int64   `bigquery:"api_product_id"`
	ProductName     string  `bigquery:"product_name"`
	APIPrice        float64 `bigquery:"api_price"`
	Description     string  `bigquery:"description"`
	ProductCategory string  `bigquery:"product_category"`
	ProductImageURL string  `bigquery:"product_image_url"`
	RatingRate      float64 `bigquery:"rating_rate"`
	RatingCount     int64   `bigquery:"rating_count"`

	EffectiveStartDate time.Time `bigquery:"effective_start_date"`
	EffectiveEndDate   time.Time `bigquery:"effective_end_date"`
	IsCurrent          bool      `bigquery:"is_current"`
	Version            int64     `bigquery:"version"`
	RowHash            string    `bigquery:"row_hash"`

	LoadedAt time.Time `bigquery:"_loaded_at"`
}

// CategoryRow is one product category in dim_product_category. Fully derived
// from the union of retail and catalog categories each run.
type CategoryRow struct {
	CategoryKey    int64     `bigquery:"category_key"`
	CategoryName   string    `bigquery:"category_name"`
	CategorySource string    `bigquery:"category_source"` // retail, api or both
	CategoryGroup  string    `bigquery:"category_group"`
	LoadedAt       time.Time `bigquery:"_loaded_at"`
}

// FactSalesRow is one transaction at the grain of fact_sales. Foreign
// surrogate keys plus degenerate dimensions for query convenience.
type FactSalesRow struct {
	SalesKey      int64 `bigquery:"sales_key"`
	TransactionID int64 `bigquery:"transaction_id"`
	DateKey       int64 `bigquery:"date_key"`
	CustomerKey   int64 `bigquery:"customer_key"`
	CategoryKey   int64 `bigquery:"category_key"`

	Quantity     int64   `bigquery:"quantity"`
	PricePerUnit float64 `bigquery:"price_per_unit"`
	TotalAmount  float64 `bigquery:"total_amount"`

	CustomerID      string `bigquery:"customer_id"`
	ProductCategory string `bigquery:"product_category"`
	Gender          string `bigquery:"gender"`
	Age             int64  `bigquery:"age"`

	ExtractedAt time.Time `bigquery:"_extracted_at"`
	Source      string    `bigquery:"_source"`
	LoadedAt    time.Time `bigquery:"_loaded_at"`
}

// MartSalesPerformanceRow is one month of aggregated sales performance.
// Growth fields are NULL for the first month in the sequence.
type MartSalesPerformanceRow struct {
	Year              int64   `bigquery:"year"`
	Month             int64   `bigquery:"month"`
	MonthName         string  `bigquery:"month_name"`
	TotalRevenue      float64 `bigquery:"total_revenue"`
	TotalTransactions int64   `bigquery:"total_transactions"`
	TotalQuantity     int64   `bigquery:"total_quantity"`
	AvgOrderValue     float64 `bigquery:"avg_order_value"`
	UniqueCustomers   int64   `bigquery:"unique_customers"`

	RevenuePrevMonth bigquery.NullFloat64 `bigquery:"revenue_prev_month"`
	RevenueGrowthPct bigquery.NullFloat64 `bigquery:"revenue_growth_pct"`

	GeneratedAt time.Time `bigquery:"_mart_generated_at"`
}

// MartCategoryAnalysisRow is one category's aggregated performance and
// demographics. Gender percentages are NULL when no gendered revenue exists.
type MartCategoryAnalysisRow struct {
	ProductCategory   string  `bigquery:"product_category"`
	TotalRevenue      float64 `bigquery:"total_revenue"`
	TotalTransactions int64   `bigquery:"total_transactions"`
	TotalQuantity     int64   `bigquery:"total_quantity"`
	AvgPrice          float64 `bigquery:"avg_price"`
	AvgOrderValue     float64 `bigquery:"avg_order_value"`
	UniqueCustomers   int64   `bigquery:"unique_customers"`
	AvgCustomerAge    float64 `bigquery:"avg_customer_age"`
	RevenueSharePct   float64 `bigquery:"revenue_share_pct"`

	FemaleRevenuePct bigquery.NullFloat64 `bigquery:"female_revenue_pct"`
	MaleRevenuePct   bigquery.NullFloat64 `bigquery:"male_revenue_pct"`

	CategoryGroup string    `bigquery:"category_group"`
	GeneratedAt   time.Time `bigquery:"_mart_generated_at"`
}

// RunLogRow is one pipeline run recorded in etl_run_log. Append-only.
type RunLogRow struct {
	RunID          string              `bigquery:"run_id"`
	Mode           string              `bigquery:"mode"`
	StartedTS      time.Time           `bigquery:"started_ts"`
	FinishedTS     time.Time           `bigquery:"finished_ts"`
	Status         string              `bigquery:"status"`
	RowsExtracted  int64               `bigquery:"rows_extracted"`
	RowsRejected   int64               `bigquery:"rows_rejected"`
	RowsLoaded     int64               `bigquery:"rows_loaded"`
	UnresolvedRefs int64               `bigquery:"unresolved_refs"`
	ErrorMessage   bigquery.NullString `bigquery:"error_message"`
}
