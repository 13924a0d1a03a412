package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/pipeline"
)

// RetailCSVSource reads the retail sales export from a local file or a
// gs:// URI. Every cell is carried as a string; type casting belongs to the
// normalizer.
type RetailCSVSource struct {
	log  zerolog.Logger
	path string
}

func NewRetailCSVSource(log zerolog.Logger, path string) *RetailCSVSource {
	return &RetailCSVSource{log: log, path: path}
}

// RetailSales reads and parses the configured CSV into a raw batch.
func (s *RetailCSVSource) RetailSales(ctx context.Context) (pipeline.RawBatch, error) {
	batch := pipeline.RawBatch{
		Source:      pipeline.SourceRetailCSV,
		ExtractedAt: time.Now().UTC(),
	}

	data, err := s.read(ctx)
	if err != nil {
		return batch, fmt.Errorf("RetailSales: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return batch, fmt.Errorf("RetailSales: %q is empty", s.path)
	}
	if err != nil {
		return batch, fmt.Errorf("RetailSales: read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = normalizeHeader(name)
	}
	batch.Columns = columns

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return batch, fmt.Errorf("RetailSales: read row: %w", err)
		}

		fields := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				fields[col] = row[i]
			}
		}
		batch.Records = append(batch.Records, pipeline.RawRecord{Fields: fields})
	}

	s.log.Info().Str("path", s.path).Int("rows", len(batch.Records)).Msg("Read retail sales CSV")
	return batch, nil
}

func (s *RetailCSVSource) read(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(s.path, "gs://") {
		return fetchFromGCS(ctx, s.path)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", s.path, err)
	}
	return data, nil
}

// normalizeHeader maps a raw CSV header cell onto the canonical column name:
// trimmed, lowercased, inner spaces collapsed to underscores.
func normalizeHeader(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "_")
}
