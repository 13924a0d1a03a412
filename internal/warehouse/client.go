package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// Client wraps a shared BigQuery client scoped to one project and dataset.
// It implements the write and state-read operations the pipeline needs; all
// business logic stays upstream in the pipeline package.
type Client struct {
	bq        *bigquery.Client
	projectID string
	datasetID string
}

// NewClient creates a Client with a shared BigQuery connection.
func NewClient(ctx context.Context, projectID, datasetID string) (*Client, error) {
	bq, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: bigquery client: %w", err)
	}
	return &Client{bq: bq, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the underlying BigQuery client.
func (c *Client) Close() error {
	if c.bq != nil {
		return c.bq.Close()
	}
	return nil
}

func (c *Client) qualified(table string) string {
	return fmt.Sprintf("%s.%s.%s", c.projectID, c.datasetID, table)
}

// AppendRows inserts rows into the table without touching existing data.
// Used for the append-only staging tables and the run log.
func (c *Client) AppendRows(ctx context.Context, table string, rows any) error {
	if rowCount(rows) == 0 {
		return nil
	}
	inserter := c.bq.DatasetInProject(c.projectID, c.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("AppendRows %s: %w", table, err)
	}
	return nil
}

// ReplaceRows truncates the table and inserts the given rows, so a reader
// observes either the pre-run or the post-run state of the table. Used for
// dimensions, the fact table and the marts.
func (c *Client) ReplaceRows(ctx context.Context, table string, rows any) error {
	if err := c.truncate(ctx, table); err != nil {
		return fmt.Errorf("ReplaceRows %s: %w", table, err)
	}
	if rowCount(rows) == 0 {
		return nil
	}
	inserter := c.bq.DatasetInProject(c.projectID, c.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("ReplaceRows %s: inserting rows: %w", table, err)
	}
	return nil
}

func (c *Client) truncate(ctx context.Context, table string) error {
	q := c.bq.Query(fmt.Sprintf("TRUNCATE TABLE `%s`", c.qualified(table)))
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running truncate: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for truncate job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("truncate job error: %w", err)
	}
	return nil
}

// tableExists probes table metadata. A missing table is expected on the first
// run, before migrations have been applied or before any load happened.
func (c *Client) tableExists(ctx context.Context, table string) (bool, error) {
	_, err := c.bq.DatasetInProject(c.projectID, c.datasetID).Table(table).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("tableExists %s: %w", table, err)
}

// RecordRunLog appends one run summary row to etl_run_log.
func (c *Client) RecordRunLog(ctx context.Context, row *RunLogRow) error {
	return c.AppendRows(ctx, EtlRunLogTable, []*RunLogRow{row})
}

func rowCount(rows any) int {
	v := reflect.ValueOf(rows)
	if v.Kind() == reflect.Slice {
		return v.Len()
	}
	return 1
}
