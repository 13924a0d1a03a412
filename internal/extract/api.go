package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/pipeline"
)

const defaultAPITimeout = 30 * time.Second

// CatalogAPIClient pulls the product catalog from a Fake-Store style REST
// API: GET /products for the full catalog, GET /products/categories for the
// category list.
type CatalogAPIClient struct {
	log     zerolog.Logger
	baseURL string
	client  *http.Client
}

func NewCatalogAPIClient(log zerolog.Logger, baseURL string) *CatalogAPIClient {
	return &CatalogAPIClient{
		log:     log,
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultAPITimeout},
	}
}

// apiProduct mirrors the catalog API's product JSON. The nested rating object
// is flattened into rating_rate and rating_count during batch assembly.
type apiProduct struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Price       json.Number `json:"price"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Image       string      `json:"image"`
	Rating      struct {
		Rate  json.Number `json:"rate"`
		Count json.Number `json:"count"`
	} `json:"rating"`
}

// CatalogProducts fetches the full product catalog as a raw batch.
func (c *CatalogAPIClient) CatalogProducts(ctx context.Context) (pipeline.RawBatch, error) {
	batch := pipeline.RawBatch{
		Source:      pipeline.SourceCatalogAPI,
		ExtractedAt: time.Now().UTC(),
		Columns: []string{
			"id", "title", "price", "description", "category",
			"image", "rating_rate", "rating_count",
		},
	}

	body, err := c.get(ctx, "/products")
	if err != nil {
		return batch, fmt.Errorf("CatalogProducts: %w", err)
	}

	var products []apiProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return batch, fmt.Errorf("CatalogProducts: decode response: %w", err)
	}

	for _, p := range products {
		batch.Records = append(batch.Records, pipeline.RawRecord{Fields: map[string]any{
			"id":           p.ID,
			"title":        p.Title,
			"price":        p.Price,
			"description":  p.Description,
			"category":     p.Category,
			"image":        p.Image,
			"rating_rate":  p.Rating.Rate,
			"rating_count": p.Rating.Count,
		}})
	}

	c.log.Info().Str("base_url", c.baseURL).Int("products", len(batch.Records)).Msg("Fetched product catalog")
	return batch, nil
}

// CatalogCategories fetches the API's category name list.
func (c *CatalogAPIClient) CatalogCategories(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/products/categories")
	if err != nil {
		return nil, fmt.Errorf("CatalogCategories: %w", err)
	}

	var categories []string
	if err := json.Unmarshal(body, &categories); err != nil {
		return nil, fmt.Errorf("CatalogCategories: decode response: %w", err)
	}

	c.log.Info().Int("categories", len(categories)).Msg("Fetched catalog categories")
	return categories, nil
}

func (c *CatalogAPIClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", path, err)
	}
	return body, nil
}
