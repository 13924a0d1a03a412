package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Accepted date layouts for the retail source, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

var salesRequiredColumns = []string{
	"transaction_id", "date", "customer_id", "gender", "age",
	"product_category", "quantity", "price_per_unit", "total_amount",
}

var productRequiredColumns = []string{"id", "title", "price", "category"}

const maxDescriptionLen = 500

// NormalizeStats counts the outcome of normalizing one batch. Every skipped
// row increments Rejected; nothing is dropped silently.
type NormalizeStats struct {
	RowsIn              int
	RowsOut             int
	Rejected            int
	AmountDiscrepancies int
}

// Normalizer cleans and type-casts raw record batches into canonical records,
// dispatching on the batch's source tag. Row-level failures are skipped and
// counted; a batch whose shape is wrong fails as a whole.
type Normalizer struct {
	log zerolog.Logger

	// LogRejectedRows controls whether each rejected row is logged
	// individually or only counted.
	LogRejectedRows bool
}

func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log, LogRejectedRows: true}
}

// NormalizeSales validates and cleans a retail sales batch.
func (n *Normalizer) NormalizeSales(batch RawBatch) ([]SalesRecord, NormalizeStats, error) {
	stats := NormalizeStats{RowsIn: len(batch.Records)}

	if missing := missingColumns(batch.Columns, salesRequiredColumns); len(missing) > 0 {
		return nil, stats, &SourceFormatError{Source: batch.Source, Missing: missing}
	}

	out := make([]SalesRecord, 0, len(batch.Records))
	for i, raw := range batch.Records {
		rec, verr := n.normalizeSalesRow(batch, i, raw)
		if verr != nil {
			stats.Rejected++
			if n.LogRejectedRows {
				n.log.Warn().Str("source", batch.Source).Err(verr).Msg("Rejected row")
			}
			continue
		}

		// The source's total occasionally disagrees with quantity * unit
		// price; the calculated value wins.
		calculated := float64(rec.Quantity) * rec.PricePerUnit
		if rec.TotalAmount != calculated {
			rec.TotalAmount = calculated
			stats.AmountDiscrepancies++
		}

		out = append(out, rec)
	}

	stats.RowsOut = len(out)
	n.log.Info().
		Int("rows_in", stats.RowsIn).
		Int("rows_out", stats.RowsOut).
		Int("rejected", stats.Rejected).
		Int("amount_discrepancies", stats.AmountDiscrepancies).
		Msg("Normalized retail sales batch")
	return out, stats, nil
}

func (n *Normalizer) normalizeSalesRow(batch RawBatch, i int, raw RawRecord) (SalesRecord, *ValidationError) {
	fail := func(field, reason string) (SalesRecord, *ValidationError) {
		return SalesRecord{}, &ValidationError{Source: batch.Source, Row: i, Field: field, Reason: reason}
	}

	txID, err := intField(raw.Fields, "transaction_id")
	if err != nil {
		return fail("transaction_id", err.Error())
	}
	date, err := dateField(raw.Fields, "date")
	if err != nil {
		return fail("date", err.Error())
	}
	customerID, err := stringField(raw.Fields, "customer_id")
	if err != nil {
		return fail("customer_id", err.Error())
	}
	gender, err := stringField(raw.Fields, "gender")
	if err != nil {
		return fail("gender", err.Error())
	}
	age, err := intField(raw.Fields, "age")
	if err != nil {
		return fail("age", err.Error())
	}
	category, err := stringField(raw.Fields, "product_category")
	if err != nil {
		return fail("product_category", err.Error())
	}
	quantity, err := intField(raw.Fields, "quantity")
	if err != nil {
		return fail("quantity", err.Error())
	}
	if quantity <= 0 {
		return fail("quantity", fmt.Sprintf("must be positive, got %d", quantity))
	}
	price, err := floatField(raw.Fields, "price_per_unit")
	if err != nil {
		return fail("price_per_unit", err.Error())
	}
	total, err := floatField(raw.Fields, "total_amount")
	if err != nil {
		return fail("total_amount", err.Error())
	}

	return SalesRecord{
		TransactionID:   txID,
		Date:            date,
		CustomerID:      customerID,
		Gender:          titleCase(gender),
		Age:             clampInt(age, 18, 100),
		ProductCategory: titleCase(category),
		Quantity:        quantity,
		PricePerUnit:    price,
		TotalAmount:     total,
		RowHash:         stagingRowHash(txID, date, customerID),
		Source:          batch.Source,
		ExtractedAt:     batch.ExtractedAt,
	}, nil
}

// NormalizeProducts validates and cleans a catalog product batch.
func (n *Normalizer) NormalizeProducts(batch RawBatch) ([]ProductRecord, NormalizeStats, error) {
	stats := NormalizeStats{RowsIn: len(batch.Records)}

	if missing := missingColumns(batch.Columns, productRequiredColumns); len(missing) > 0 {
		return nil, stats, &SourceFormatError{Source: batch.Source, Missing: missing}
	}

	out := make([]ProductRecord, 0, len(batch.Records))
	for i, raw := range batch.Records {
		rec, verr := n.normalizeProductRow(batch, i, raw)
		if verr != nil {
			stats.Rejected++
			if n.LogRejectedRows {
				n.log.Warn().Str("source", batch.Source).Err(verr).Msg("Rejected row")
			}
			continue
		}
		out = append(out, rec)
	}

	stats.RowsOut = len(out)
	n.log.Info().
		Int("rows_in", stats.RowsIn).
		Int("rows_out", stats.RowsOut).
		Int("rejected", stats.Rejected).
		Msg("Normalized catalog product batch")
	return out, stats, nil
}

func (n *Normalizer) normalizeProductRow(batch RawBatch, i int, raw RawRecord) (ProductRecord, *ValidationError) {
	fail := func(field, reason string) (ProductRecord, *ValidationError) {
		return ProductRecord{}, &ValidationError{Source: batch.Source, Row: i, Field: field, Reason: reason}
	}

	id, err := intField(raw.Fields, "id")
	if err != nil {
		return fail("id", err.Error())
	}
	title, err := stringField(raw.Fields, "title")
	if err != nil {
		return fail("title", err.Error())
	}
	price, err := floatField(raw.Fields, "price")
	if err != nil {
		return fail("price", err.Error())
	}
	category, err := stringField(raw.Fields, "category")
	if err != nil {
		return fail("category", err.Error())
	}

	description := optionalString(raw.Fields, "description")
	if len(description) > maxDescriptionLen {
		description = description[:maxDescriptionLen]
	}
	imageURL := optionalString(raw.Fields, "image")

	ratingRate, _ := floatField(raw.Fields, "rating_rate")
	ratingCount, _ := intField(raw.Fields, "rating_count")
	if ratingCount < 0 {
		ratingCount = 0
	}

	return ProductRecord{
		ID:          id,
		Title:       strings.TrimSpace(title),
		Price:       price,
		Description: description,
		Category:    titleCase(category),
		ImageURL:    imageURL,
		RatingRate:  clampFloat(ratingRate, 0, 5),
		RatingCount: ratingCount,
		Source:      batch.Source,
		ExtractedAt: batch.ExtractedAt,
	}, nil
}

func missingColumns(have, required []string) []string {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	var missing []string
	for _, c := range required {
		if !set[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Field getters tolerate the value shapes the extraction adapters produce:
// strings from the CSV reader, float64 / json.Number from decoded JSON.

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required field")
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("has type %T, want string", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("required field is empty")
	}
	return s, nil
}

func optionalString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intField(m map[string]any, key string) (int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field")
	}
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case float64:
		return int64(val), nil
	case json.Number:
		return val.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", val)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("has type %T, want integer", v)
	}
}

func floatField(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field")
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("has type %T, want number", v)
	}
}

func dateField(m map[string]any, key string) (time.Time, error) {
	s, err := stringField(m, key)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}

// titleCase capitalizes the first letter of each space-separated word,
// lowercasing the rest, after trimming.
func titleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
