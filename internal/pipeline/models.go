package pipeline

import "time"

// Source identifiers carried on raw batches and propagated into the
// warehouse _source provenance column.
const (
	SourceRetailCSV  = "kaggle_retail_sales"
	SourceCatalogAPI = "fake_store_api"
)

// RawRecord is one untyped input row: field name to raw value as produced by
// an extraction adapter. Discarded after normalization.
type RawRecord struct {
	Fields map[string]any
}

// RawBatch is a set of RawRecords from one source, tagged with the source
// identifier and the extraction timestamp. Columns lists the field names the
// adapter observed so the normalizer can check the batch shape up front.
type RawBatch struct {
	Source      string
	ExtractedAt time.Time
	Columns     []string
	Records     []RawRecord
}

// SalesRecord is one validated retail transaction. Immutable once produced.
type SalesRecord struct {
	TransactionID   int64
	Date            time.Time
	CustomerID      string
	Gender          string
	Age             int64
	ProductCategory string
	Quantity        int64
	PricePerUnit    float64
	TotalAmount     float64

	RowHash     string
	Source      string
	ExtractedAt time.Time
}

// ProductRecord is one validated catalog product. Immutable once produced.
type ProductRecord struct {
	ID          int64
	Title       string
	Price       float64
	Description string
	Category    string
	ImageURL    string
	RatingRate  float64
	RatingCount int64

	Source      string
	ExtractedAt time.Time
}
