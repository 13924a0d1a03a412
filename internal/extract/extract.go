package extract

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/pipeline"
)

// Extractor bundles the two configured sources behind the interface the
// pipeline consumes.
type Extractor struct {
	csv *RetailCSVSource
	api *CatalogAPIClient
}

func New(log zerolog.Logger, csvPath, apiBaseURL string) *Extractor {
	return &Extractor{
		csv: NewRetailCSVSource(log, csvPath),
		api: NewCatalogAPIClient(log, apiBaseURL),
	}
}

func (e *Extractor) RetailSales(ctx context.Context) (pipeline.RawBatch, error) {
	return e.csv.RetailSales(ctx)
}

func (e *Extractor) CatalogProducts(ctx context.Context) (pipeline.RawBatch, error) {
	return e.api.CatalogProducts(ctx)
}

func (e *Extractor) CatalogCategories(ctx context.Context) ([]string, error) {
	return e.api.CatalogCategories(ctx)
}
