package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func salesBatch(records ...map[string]any) RawBatch {
	batch := RawBatch{
		Source:      SourceRetailCSV,
		ExtractedAt: time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
		Columns:     append([]string(nil), salesRequiredColumns...),
	}
	for _, r := range records {
		batch.Records = append(batch.Records, RawRecord{Fields: r})
	}
	return batch
}

func validSalesRow() map[string]any {
	return map[string]any{
		"transaction_id":   "1",
		"date":             "2023-05-14",
		"customer_id":      "CUST001",
		"gender":           "male",
		"age":              "34",
		"product_category": "beauty",
		"quantity":         "3",
		"price_per_unit":   "50",
		"total_amount":     "150",
	}
}

func TestNormalizeSales_ValidRow(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	out, stats, err := n.NormalizeSales(salesBatch(validSalesRow()))
	if err != nil {
		t.Fatalf("NormalizeSales failed: %v", err)
	}
	if stats.RowsOut != 1 || stats.Rejected != 0 {
		t.Fatalf("stats = %+v, want 1 row out, 0 rejected", stats)
	}

	rec := out[0]
	if rec.TransactionID != 1 {
		t.Errorf("TransactionID = %d, want 1", rec.TransactionID)
	}
	if want := time.Date(2023, 5, 14, 0, 0, 0, 0, time.UTC); !rec.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", rec.Date, want)
	}
	if rec.Gender != "Male" {
		t.Errorf("Gender = %q, want title-cased %q", rec.Gender, "Male")
	}
	if rec.ProductCategory != "Beauty" {
		t.Errorf("ProductCategory = %q, want %q", rec.ProductCategory, "Beauty")
	}
	if rec.RowHash == "" {
		t.Error("RowHash is empty")
	}
	if rec.Source != SourceRetailCSV {
		t.Errorf("Source = %q, want %q", rec.Source, SourceRetailCSV)
	}
}

func TestNormalizeSales_RejectedRows(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"zero quantity", func(m map[string]any) { m["quantity"] = "0" }},
		{"negative quantity", func(m map[string]any) { m["quantity"] = "-2" }},
		{"unparseable date", func(m map[string]any) { m["date"] = "14th May" }},
		{"empty customer id", func(m map[string]any) { m["customer_id"] = "  " }},
		{"non-numeric amount", func(m map[string]any) { m["total_amount"] = "abc" }},
		{"missing age", func(m map[string]any) { delete(m, "age") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(zerolog.Nop())
			row := validSalesRow()
			tt.mutate(row)

			out, stats, err := n.NormalizeSales(salesBatch(row, validSalesRow()))
			if err != nil {
				t.Fatalf("NormalizeSales failed: %v", err)
			}
			if stats.Rejected != 1 {
				t.Errorf("Rejected = %d, want 1", stats.Rejected)
			}
			if len(out) != 1 {
				t.Errorf("rows out = %d, want the valid row to survive", len(out))
			}
		})
	}
}

func TestNormalizeSales_AgeClamped(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"17", 18},
		{"18", 18},
		{"34", 34},
		{"100", 100},
		{"250", 100},
	}
	for _, tt := range tests {
		n := NewNormalizer(zerolog.Nop())
		row := validSalesRow()
		row["age"] = tt.raw

		out, _, err := n.NormalizeSales(salesBatch(row))
		if err != nil || len(out) != 1 {
			t.Fatalf("NormalizeSales(age=%s) failed: %v", tt.raw, err)
		}
		if out[0].Age != tt.want {
			t.Errorf("age %s clamped to %d, want %d", tt.raw, out[0].Age, tt.want)
		}
	}
}

func TestNormalizeSales_TotalRecomputed(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	row := validSalesRow()
	row["total_amount"] = "999" // disagrees with 3 * 50

	out, stats, err := n.NormalizeSales(salesBatch(row))
	if err != nil {
		t.Fatalf("NormalizeSales failed: %v", err)
	}
	if out[0].TotalAmount != 150 {
		t.Errorf("TotalAmount = %v, want recalculated 150", out[0].TotalAmount)
	}
	if stats.AmountDiscrepancies != 1 {
		t.Errorf("AmountDiscrepancies = %d, want 1", stats.AmountDiscrepancies)
	}
}

func TestNormalizeSales_MissingColumns(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	batch := salesBatch(validSalesRow())
	batch.Columns = []string{"transaction_id", "date"}

	_, _, err := n.NormalizeSales(batch)
	var ferr *SourceFormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *SourceFormatError", err)
	}
	if len(ferr.Missing) != len(salesRequiredColumns)-2 {
		t.Errorf("Missing = %v", ferr.Missing)
	}
}

func validProductRow() map[string]any {
	return map[string]any{
		"id":           "5",
		"title":        " Gold Ring ",
		"price":        "19.99",
		"description":  "A ring",
		"category":     "jewelery",
		"image":        "https://example.com/ring.png",
		"rating_rate":  "4.6",
		"rating_count": "120",
	}
}

func TestNormalizeProducts_ValidRow(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	batch := RawBatch{
		Source:      SourceCatalogAPI,
		ExtractedAt: time.Now().UTC(),
		Columns:     []string{"id", "title", "price", "category"},
		Records:     []RawRecord{{Fields: validProductRow()}},
	}

	out, stats, err := n.NormalizeProducts(batch)
	if err != nil {
		t.Fatalf("NormalizeProducts failed: %v", err)
	}
	if stats.RowsOut != 1 {
		t.Fatalf("stats = %+v, want 1 row out", stats)
	}

	rec := out[0]
	if rec.Title != "Gold Ring" {
		t.Errorf("Title = %q, want trimmed %q", rec.Title, "Gold Ring")
	}
	if rec.Category != "Jewelery" {
		t.Errorf("Category = %q, want %q", rec.Category, "Jewelery")
	}
	if rec.RatingRate != 4.6 || rec.RatingCount != 120 {
		t.Errorf("rating = (%v, %d), want (4.6, 120)", rec.RatingRate, rec.RatingCount)
	}
}

func TestNormalizeProducts_Cleaning(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	row := validProductRow()
	row["description"] = strings.Repeat("x", 600)
	row["rating_rate"] = "7.5"
	row["rating_count"] = "-3"

	batch := RawBatch{
		Source:  SourceCatalogAPI,
		Columns: []string{"id", "title", "price", "category"},
		Records: []RawRecord{{Fields: row}},
	}

	out, _, err := n.NormalizeProducts(batch)
	if err != nil || len(out) != 1 {
		t.Fatalf("NormalizeProducts failed: %v", err)
	}
	if len(out[0].Description) != maxDescriptionLen {
		t.Errorf("description length = %d, want truncated to %d", len(out[0].Description), maxDescriptionLen)
	}
	if out[0].RatingRate != 5 {
		t.Errorf("RatingRate = %v, want clamped to 5", out[0].RatingRate)
	}
	if out[0].RatingCount != 0 {
		t.Errorf("RatingCount = %d, want floored at 0", out[0].RatingCount)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"beauty", "Beauty"},
		{"  home  decor  ", "Home Decor"},
		{"ELECTRONICS", "Electronics"},
		{"women's clothing", "Women's Clothing"},
	}
	for _, tt := range tests {
		if got := titleCase(tt.in); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
