package pipeline

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/logger"
	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

// Mode selects how much of the pipeline a run executes.
type Mode string

const (
	// ModeFull runs extract, transform and load.
	ModeFull Mode = "full"
	// ModeTransformOnly runs extract and transform, skipping persistence.
	ModeTransformOnly Mode = "transform-only"
	// ModeExtractOnly runs extraction alone.
	ModeExtractOnly Mode = "extract-only"
)

// Extractor produces the raw batches the pipeline consumes. The concrete
// adapters (CSV file, catalog REST API) live in internal/extract.
type Extractor interface {
	RetailSales(ctx context.Context) (RawBatch, error)
	CatalogProducts(ctx context.Context) (RawBatch, error)
	CatalogCategories(ctx context.Context) ([]string, error)
}

// Warehouse is the full warehouse surface: writes plus the prior dimension
// state reads the SCD2 builder needs at the start of every run.
type Warehouse interface {
	Store
	CustomerDimension(ctx context.Context) ([]warehouse.CustomerRow, error)
	ProductDimension(ctx context.Context) ([]warehouse.ProductRow, error)
	RecordRunLog(ctx context.Context, row *warehouse.RunLogRow) error
}

// Config holds the run-level knobs.
type Config struct {
	Mode            Mode
	LogRejectedRows bool
}

// Pipeline sequences the stages of one batch run: extract, then
// normalize/key/dimension/fact/mart, then per-table load. A run is
// single-threaded and synchronous; the warehouse tables are the only state
// shared between runs.
type Pipeline struct {
	cfg       Config
	log       zerolog.Logger
	extractor Extractor
	wh        Warehouse // nil when running without a warehouse

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

func New(cfg Config, log zerolog.Logger, extractor Extractor, wh Warehouse) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		log:       log,
		extractor: extractor,
		wh:        wh,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

type extracted struct {
	sales      RawBatch
	products   RawBatch
	categories []string
}

// Run executes the pipeline in the configured mode and always returns a
// summary; the summary's status reports failure instead of an error return so
// partial accounting survives.
func (p *Pipeline) Run(ctx context.Context) *RunSummary {
	runTime := p.Now()
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Mode:      p.cfg.Mode,
		StartedAt: runTime,
		Status:    StatusSuccess,
	}
	defer func() {
		summary.FinishedAt = p.Now()
		summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
		summary.Log(p.log)
		p.recordRunLog(ctx, summary)
	}()

	p.log.Info().Str("run_id", summary.RunID).Str("mode", string(p.cfg.Mode)).Msg("Starting pipeline run")

	ext, ok := p.runExtract(ctx, summary)
	if !ok || p.cfg.Mode == ModeExtractOnly {
		return summary
	}

	tables, ok := p.runTransform(ctx, summary, ext, runTime)
	if !ok || p.cfg.Mode == ModeTransformOnly {
		return summary
	}

	p.runLoad(ctx, summary, tables)
	return summary
}

func (p *Pipeline) runExtract(ctx context.Context, summary *RunSummary) (extracted, bool) {
	log := logger.ForStage(p.log, StageExtract)
	start := p.Now()
	result := StageResult{Name: StageExtract}

	var ext extracted
	var err error

	ext.sales, err = p.extractor.RetailSales(ctx)
	if err == nil {
		ext.products, err = p.extractor.CatalogProducts(ctx)
	}
	if err == nil {
		ext.categories, err = p.extractor.CatalogCategories(ctx)
	}

	result.Duration = p.Now().Sub(start)
	if err != nil {
		result.Error = err.Error()
		summary.record(result)
		summary.Status = StatusFailure
		log.Error().Err(err).Msg("Extraction failed")
		return ext, false
	}

	result.RowsOut = len(ext.sales.Records) + len(ext.products.Records) + len(ext.categories)
	summary.record(result)
	log.Info().
		Int("retail_sales", len(ext.sales.Records)).
		Int("api_products", len(ext.products.Records)).
		Int("api_categories", len(ext.categories)).
		Msg("Extraction complete")
	return ext, true
}

func (p *Pipeline) runTransform(ctx context.Context, summary *RunSummary, ext extracted, runTime time.Time) (*TableSet, bool) {
	log := logger.ForStage(p.log, StageTransform)
	start := p.Now()
	result := StageResult{
		Name:   StageTransform,
		RowsIn: len(ext.sales.Records) + len(ext.products.Records),
	}
	fail := func(err error) (*TableSet, bool) {
		result.Duration = p.Now().Sub(start)
		result.Error = err.Error()
		summary.record(result)
		summary.Status = StatusFailure
		log.Error().Err(err).Msg("Transform failed")
		return nil, false
	}

	normalizer := NewNormalizer(log)
	normalizer.LogRejectedRows = p.cfg.LogRejectedRows

	// The retail source is the spine of the star schema; a malformed sales
	// batch leaves nothing usable. A malformed catalog batch only loses the
	// product dimension refresh, so the stage proceeds with the valid subset.
	sales, salesStats, err := normalizer.NormalizeSales(ext.sales)
	if err != nil {
		return fail(err)
	}
	products, productStats, err := normalizer.NormalizeProducts(ext.products)
	if err != nil {
		log.Warn().Err(err).Msg("Catalog batch unusable; continuing without product refresh")
		result.Error = err.Error()
		products, productStats = nil, NormalizeStats{RowsIn: len(ext.products.Records), Rejected: len(ext.products.Records)}
	}
	result.RowsRejected = salesStats.Rejected + productStats.Rejected
	summary.AmountDiscrepancies = salesStats.AmountDiscrepancies

	// Prior dimension state is read fresh from the warehouse every run,
	// never cached in process memory.
	var priorCustomers []warehouse.CustomerRow
	var priorProducts []warehouse.ProductRow
	if p.wh != nil {
		if priorCustomers, err = p.wh.CustomerDimension(ctx); err != nil {
			return fail(err)
		}
		if priorProducts, err = p.wh.ProductDimension(ctx); err != nil {
			return fail(err)
		}
	}

	keys := NewKeyGenerator()
	dims := NewDimensionBuilder(log, keys)

	dimDate := dims.BuildDateDimension(sales)
	dimCategory := dims.BuildCategoryDimension(sales, products, ext.categories, runTime)
	dimCustomer, customerStats := dims.BuildCustomerDimension(sales, priorCustomers, runTime)
	dimProduct, productDimStats := dims.BuildProductDimension(products, priorProducts, runTime)

	facts, factStats := NewFactBuilder(log).Build(sales, dimCustomer, dimCategory, runTime)

	martAgg := NewMartAggregator(log)
	tables := &TableSet{
		StgRetailSales:       stagingSalesRows(sales),
		StgAPIProducts:       stagingProductRows(products),
		DimDate:              dimDate,
		DimCustomer:          dimCustomer,
		DimProduct:           dimProduct,
		DimProductCategory:   dimCategory,
		FactSales:            facts,
		MartSalesPerformance: martAgg.BuildSalesPerformance(facts, runTime),
		MartCategoryAnalysis: martAgg.BuildCategoryAnalysis(facts, dimCategory, runTime),
	}

	summary.DuplicatesDropped = customerStats.DuplicatesDropped + productDimStats.DuplicatesDropped
	summary.UnresolvedReferences = factStats.UnresolvedCustomers + factStats.UnresolvedCategories
	summary.HashAnomalies = customerStats.HashAnomalies + productDimStats.HashAnomalies

	result.RowsOut = len(facts)
	result.Duration = p.Now().Sub(start)
	summary.record(result)
	log.Info().Int("fact_rows", len(facts)).Msg("Transform complete")
	return tables, true
}

func (p *Pipeline) runLoad(ctx context.Context, summary *RunSummary, tables *TableSet) {
	log := logger.ForStage(p.log, StageLoad)
	start := p.Now()

	loader := NewLoader(log, p.wh)
	results, failed := loader.LoadAll(ctx, tables)
	summary.Tables = results

	result := StageResult{Name: StageLoad, Duration: p.Now().Sub(start)}
	for _, t := range results {
		result.RowsIn += t.Rows
		if t.Error == "" {
			result.RowsOut += t.Rows
		}
	}
	summary.record(result)

	if failed > 0 {
		summary.Status = StatusPartialSuccess
		log.Warn().Int("failed_tables", failed).Msg("Load finished with failures")
		return
	}
	log.Info().Int("tables", len(results)).Msg("Load complete")
}

func (p *Pipeline) recordRunLog(ctx context.Context, summary *RunSummary) {
	if p.wh == nil || p.cfg.Mode != ModeFull {
		return
	}

	row := &warehouse.RunLogRow{
		RunID:          summary.RunID,
		Mode:           string(summary.Mode),
		StartedTS:      summary.StartedAt,
		FinishedTS:     summary.FinishedAt,
		Status:         string(summary.Status),
		RowsExtracted:  int64(summary.RowsExtracted()),
		RowsRejected:   int64(summary.RowsRejected()),
		RowsLoaded:     int64(summary.RowsLoaded()),
		UnresolvedRefs: int64(summary.UnresolvedReferences),
	}
	for _, st := range summary.Stages {
		if st.Error != "" {
			row.ErrorMessage = bigquery.NullString{StringVal: st.Error, Valid: true}
			break
		}
	}

	if err := p.wh.RecordRunLog(ctx, row); err != nil {
		p.log.Error().Err(err).Msg("Failed to record run log")
	}
}

func stagingSalesRows(sales []SalesRecord) []warehouse.StgRetailSalesRow {
	rows := make([]warehouse.StgRetailSalesRow, 0, len(sales))
	for _, rec := range sales {
		rows = append(rows, warehouse.StgRetailSalesRow{
			TransactionID:   rec.TransactionID,
			Date:            rec.Date,
			CustomerID:      rec.CustomerID,
			Gender:          rec.Gender,
			Age:             rec.Age,
			ProductCategory: rec.ProductCategory,
			Quantity:        rec.Quantity,
			PricePerUnit:    rec.PricePerUnit,
			TotalAmount:     rec.TotalAmount,
			RowHash:         rec.RowHash,
			ExtractedAt:     rec.ExtractedAt,
			Source:          rec.Source,
		})
	}
	return rows
}

func stagingProductRows(products []ProductRecord) []warehouse.StgAPIProductRow {
	rows := make([]warehouse.StgAPIProductRow, 0, len(products))
	for _, rec := range products {
		rows = append(rows, warehouse.StgAPIProductRow{
			APIProductID:    rec.ID,
			ProductName:     rec.Title,
			APIPrice:        rec.Price,
			Description:     rec.Description,
			ProductCategory: rec.Category,
			ProductImageURL: rec.ImageURL,
			RatingRate:      rec.RatingRate,
			RatingCount:     rec.RatingCount,
			ExtractedAt:     rec.ExtractedAt,
			Source:          rec.Source,
		})
	}
	return rows
}
