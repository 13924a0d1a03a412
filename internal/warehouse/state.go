package warehouse

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"
)

// CustomerDimension reads the full dim_customer version set, ordered by
// natural key and version. Returns an empty slice when the table does not
// exist yet (first run).
func (c *Client) CustomerDimension(ctx context.Context) ([]CustomerRow, error) {
	exists, err := c.tableExists(ctx, DimCustomerTable)
	if err != nil {
		return nil, fmt.Errorf("CustomerDimension: %w", err)
	}
	if !exists {
		return nil, nil
	}

	q := c.bq.Query(fmt.Sprintf(`
		SELECT
			customer_key,
			customer_id,
			gender,
			age,
			age_group,
			customer_segment,
			first_purchase_date,
			last_purchase_date,
			total_transactions,
			effective_start_date,
			effective_end_date,
			is_current,
			version,
			row_hash,
			_loaded_at
		FROM `+"`%s`"+`
		ORDER BY customer_id, version
	`, c.qualified(DimCustomerTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CustomerDimension: query read: %w", err)
	}

	var rows []CustomerRow
	for {
		var r CustomerRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CustomerDimension: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// ProductDimension reads the full dim_product version set, ordered by
// natural key and version. Returns an empty slice when the table does not
// exist yet.
func (c *Client) ProductDimension(ctx context.Context) ([]ProductRow, error) {
	exists, err := c.tableExists(ctx, DimProductTable)
	if err != nil {
		return nil, fmt.Errorf("ProductDimension: %w", err)
	}
	if !exists {
		return nil, nil
	}

	q := c.bq.Query(fmt.Sprintf(`
		SELECT
			product_key,
			api_product_id,
			product_name,
			api_price,
			description,
			product_category,
			product_image_url,
			rating_rate,
			rating_count,
			effective_start_date,
			effective_end_date,
			is_current,
			version,
			row_hash,
			_loaded_at
		FROM `+"`%s`"+`
		ORDER BY api_product_id, version
	`, c.qualified(DimProductTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ProductDimension: query read: %w", err)
	}

	var rows []ProductRow
	for {
		var r ProductRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ProductDimension: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
