package pipeline

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

// DimensionStats counts the outcome of building one dimension.
type DimensionStats struct {
	Input             int
	NewKeys           int
	Changed           int
	Unchanged         int
	DuplicatesDropped int
	HashAnomalies     int
}

// DimensionBuilder produces the conformed dimension tables. The SCD Type 2
// dimensions (customer, product) are built as a pure diff of the current
// batch against the prior full dimension state; the output is always the
// complete version set, never a delta, because the loader replaces these
// tables wholesale.
type DimensionBuilder struct {
	log  zerolog.Logger
	keys *KeyGenerator
}

func NewDimensionBuilder(log zerolog.Logger, keys *KeyGenerator) *DimensionBuilder {
	return &DimensionBuilder{log: log, keys: keys}
}

// BuildDateDimension derives dim_date from the sales date span, extended to
// full calendar years. Returns nil for an empty batch.
func (b *DimensionBuilder) BuildDateDimension(sales []SalesRecord) []warehouse.DateRow {
	if len(sales) == 0 {
		return nil
	}

	minDate, maxDate := sales[0].Date, sales[0].Date
	for _, rec := range sales[1:] {
		if rec.Date.Before(minDate) {
			minDate = rec.Date
		}
		if rec.Date.After(maxDate) {
			maxDate = rec.Date
		}
	}

	start := time.Date(minDate.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(maxDate.Year(), 12, 31, 0, 0, 0, 0, time.UTC)

	var rows []warehouse.DateRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		// Monday = 0 so Saturday/Sunday land on 5/6.
		dow := (int64(d.Weekday()) + 6) % 7
		_, isoWeek := d.ISOWeek()

		month := int64(d.Month())
		fiscalYear := int64(d.Year())
		if month >= 10 {
			fiscalYear++
		}

		rows = append(rows, warehouse.DateRow{
			DateKey:       dateKey(d),
			FullDate:      civil.DateOf(d),
			Year:          int64(d.Year()),
			Quarter:       (month-1)/3 + 1,
			Month:         month,
			MonthName:     d.Month().String(),
			WeekOfYear:    int64(isoWeek),
			DayOfMonth:    int64(d.Day()),
			DayOfWeek:     dow,
			DayName:       d.Weekday().String(),
			IsWeekend:     dow >= 5,
			FiscalYear:    fiscalYear,
			FiscalQuarter: ((month-10+12)%12)/3 + 1,
		})
	}

	b.log.Info().
		Int("days", len(rows)).
		Str("from", start.Format("2006-01-02")).
		Str("to", end.Format("2006-01-02")).
		Msg("Built date dimension")
	return rows
}

// BuildCategoryDimension builds dim_product_category from the union of retail
// and catalog categories. Surrogate keys are assigned over the sorted name
// list, so a given run's key assignment is deterministic.
func (b *DimensionBuilder) BuildCategoryDimension(sales []SalesRecord, products []ProductRecord, apiCategories []string, loadedAt time.Time) []warehouse.CategoryRow {
	retail := make(map[string]bool)
	for _, rec := range sales {
		retail[rec.ProductCategory] = true
	}

	api := make(map[string]bool)
	for _, rec := range products {
		api[rec.Category] = true
	}
	for _, c := range apiCategories {
		if name := titleCase(c); name != "" {
			api[name] = true
		}
	}

	all := make(map[string]bool, len(retail)+len(api))
	for name := range retail {
		all[name] = true
	}
	for name := range api {
		all[name] = true
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]warehouse.CategoryRow, 0, len(names))
	for i, name := range names {
		source := "retail"
		switch {
		case retail[name] && api[name]:
			source = "both"
		case api[name]:
			source = "api"
		}
		rows = append(rows, warehouse.CategoryRow{
			CategoryKey:    int64(i + 1),
			CategoryName:   name,
			CategorySource: source,
			CategoryGroup:  classifyCategory(name),
			LoadedAt:       loadedAt,
		})
	}

	b.log.Info().Int("categories", len(rows)).Msg("Built product category dimension")
	return rows
}

func classifyCategory(name string) string {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "electronics", "tech", "computer"):
		return "Electronics"
	case containsAny(lower, "clothing", "fashion", "apparel", "men's", "women's"):
		return "Fashion & Apparel"
	case containsAny(lower, "beauty", "jewelery", "jewelry", "cosmetics"):
		return "Beauty & Accessories"
	default:
		return "Other"
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// customerProfile is the per-natural-key reduction of a sales batch: the
// winning record for tracked attributes plus purchase aggregates over all
// of the key's rows.
type customerProfile struct {
	id         string
	winner     SalesRecord
	first      time.Time
	last       time.Time
	txns       map[int64]bool
	contenders int
}

// BuildCustomerDimension applies SCD Type 2 versioning for customers against
// the prior full dimension state and returns the complete updated version
// set. Natural keys absent from the batch keep their current version open:
// absence is not evidence of deletion.
func (b *DimensionBuilder) BuildCustomerDimension(sales []SalesRecord, prior []warehouse.CustomerRow, runTime time.Time) ([]warehouse.CustomerRow, DimensionStats) {
	stats := DimensionStats{Input: len(sales)}

	// One profile per customer; the record with the latest transaction date
	// wins the tracked attributes, ties keep the earlier arrival.
	profiles := make(map[string]*customerProfile)
	var order []string
	for _, rec := range sales {
		p, ok := profiles[rec.CustomerID]
		if !ok {
			p = &customerProfile{
				id:     rec.CustomerID,
				winner: rec,
				first:  rec.Date,
				last:   rec.Date,
				txns:   map[int64]bool{rec.TransactionID: true},
			}
			profiles[rec.CustomerID] = p
			order = append(order, rec.CustomerID)
			continue
		}
		p.contenders++
		if rec.Date.After(p.winner.Date) {
			p.winner = rec
		}
		if rec.Date.Before(p.first) {
			p.first = rec.Date
		}
		if rec.Date.After(p.last) {
			p.last = rec.Date
		}
		p.txns[rec.TransactionID] = true
	}
	for _, p := range profiles {
		stats.DuplicatesDropped += p.contenders
	}

	out := append([]warehouse.CustomerRow(nil), prior...)

	// Index of the latest version per natural key, and the surrogate key
	// watermark for append-only assignment.
	latest := make(map[string]int)
	var maxKey int64
	for i, row := range out {
		if j, ok := latest[row.CustomerID]; !ok || row.Version > out[j].Version {
			latest[row.CustomerID] = i
		}
		if row.CustomerKey > maxKey {
			maxKey = row.CustomerKey
		}
	}
	b.keys.Seed(EntityCustomer, maxKey)

	for _, id := range order {
		p := profiles[id]
		total := int64(len(p.txns))
		attrs := map[string]string{
			"gender": p.winner.Gender,
			"age":    strconv.FormatInt(p.winner.Age, 10),
		}
		hash := ComputeRowHash(attrs)

		j, seen := latest[id]
		if !seen {
			out = append(out, warehouse.CustomerRow{
				CustomerKey:        b.keys.Next(EntityCustomer),
				CustomerID:         id,
				Gender:             p.winner.Gender,
				Age:                p.winner.Age,
				AgeGroup:           ageGroup(p.winner.Age),
				CustomerSegment:    customerSegment(total),
				FirstPurchaseDate:  p.first,
				LastPurchaseDate:   p.last,
				TotalTransactions:  total,
				EffectiveStartDate: runTime,
				EffectiveEndDate:   warehouse.OpenEndedDate,
				IsCurrent:          true,
				Version:            1,
				RowHash:            hash,
				LoadedAt:           runTime,
			})
			stats.NewKeys++
			continue
		}

		cur := &out[j]
		if cur.RowHash == hash {
			if cur.Gender == p.winner.Gender && cur.Age == p.winner.Age {
				// No tracked change; purchase aggregates refresh in place
				// without opening a new version.
				cur.FirstPurchaseDate = p.first
				cur.LastPurchaseDate = p.last
				cur.TotalTransactions = total
				cur.CustomerSegment = customerSegment(total)
				cur.LoadedAt = runTime
				stats.Unchanged++
				continue
			}
			// Equal digest over different tracked attributes. Honor the
			// change anyway; the hash alone is not trusted.
			stats.HashAnomalies++
			b.log.Warn().
				Str("customer_id", id).
				Str("row_hash", hash).
				Msg("Hash collision anomaly: attributes differ under equal digest")
		}

		cur.EffectiveEndDate = runTime
		cur.IsCurrent = false
		out = append(out, warehouse.CustomerRow{
			CustomerKey:        b.keys.Next(EntityCustomer),
			CustomerID:         id,
			Gender:             p.winner.Gender,
			Age:                p.winner.Age,
			AgeGroup:           ageGroup(p.winner.Age),
			CustomerSegment:    customerSegment(total),
			FirstPurchaseDate:  p.first,
			LastPurchaseDate:   p.last,
			TotalTransactions:  total,
			EffectiveStartDate: runTime,
			EffectiveEndDate:   warehouse.OpenEndedDate,
			IsCurrent:          true,
			Version:            out[j].Version + 1,
			RowHash:            hash,
			LoadedAt:           runTime,
		})
		stats.Changed++
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CustomerID != out[j].CustomerID {
			return out[i].CustomerID < out[j].CustomerID
		}
		return out[i].Version < out[j].Version
	})

	b.log.Info().
		Int("versions", len(out)).
		Int("new", stats.NewKeys).
		Int("changed", stats.Changed).
		Int("unchanged", stats.Unchanged).
		Int("duplicates_dropped", stats.DuplicatesDropped).
		Msg("Built customer dimension")
	return out, stats
}

// BuildProductDimension applies SCD Type 2 versioning for catalog products
// against the prior full dimension state. Catalog batches carry no ordering
// field, so the first record per product id wins and later duplicates are
// dropped and counted.
func (b *DimensionBuilder) BuildProductDimension(products []ProductRecord, prior []warehouse.ProductRow, runTime time.Time) ([]warehouse.ProductRow, DimensionStats) {
	stats := DimensionStats{Input: len(products)}

	winners := make(map[int64]ProductRecord)
	var order []int64
	for _, rec := range products {
		if _, ok := winners[rec.ID]; ok {
			stats.DuplicatesDropped++
			continue
		}
		winners[rec.ID] = rec
		order = append(order, rec.ID)
	}

	out := append([]warehouse.ProductRow(nil), prior...)

	latest := make(map[int64]int)
	var maxKey int64
	for i, row := range out {
		if j, ok := latest[row.APIProductID]; !ok || row.Version > out[j].Version {
			latest[row.APIProductID] = i
		}
		if row.ProductKey > maxKey {
			maxKey = row.ProductKey
		}
	}
	b.keys.Seed(EntityProduct, maxKey)

	for _, id := range order {
		rec := winners[id]
		attrs := map[string]string{
			"product_name":     rec.Title,
			"api_price":        strconv.FormatFloat(rec.Price, 'f', -1, 64),
			"product_category": rec.Category,
		}
		hash := ComputeRowHash(attrs)

		j, seen := latest[id]
		if !seen {
			out = append(out, b.newProductVersion(rec, 1, hash, runTime))
			stats.NewKeys++
			continue
		}

		cur := &out[j]
		if cur.RowHash == hash {
			if cur.ProductName == rec.Title && cur.APIPrice == rec.Price && cur.ProductCategory == rec.Category {
				cur.Description = rec.Description
				cur.ProductImageURL = rec.ImageURL
				cur.RatingRate = rec.RatingRate
				cur.RatingCount = rec.RatingCount
				cur.LoadedAt = runTime
				stats.Unchanged++
				continue
			}
			stats.HashAnomalies++
			b.log.Warn().
				Int64("api_product_id", id).
				Str("row_hash", hash).
				Msg("Hash collision anomaly: attributes differ under equal digest")
		}

		cur.EffectiveEndDate = runTime
		cur.IsCurrent = false
		out = append(out, b.newProductVersion(rec, out[j].Version+1, hash, runTime))
		stats.Changed++
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].APIProductID != out[j].APIProductID {
			return out[i].APIProductID < out[j].APIProductID
		}
		return out[i].Version < out[j].Version
	})

	b.log.Info().
		Int("versions", len(out)).
		Int("new", stats.NewKeys).
		Int("changed", stats.Changed).
		Int("unchanged", stats.Unchanged).
		Int("duplicates_dropped", stats.DuplicatesDropped).
		Msg("Built product dimension")
	return out, stats
}

func (b *DimensionBuilder) newProductVersion(rec ProductRecord, version int64, hash string, runTime time.Time) warehouse.ProductRow {
	return warehouse.ProductRow{
		ProductKey:         b.keys.Next(EntityProduct),
		APIProductID:       rec.ID,
		ProductName:        rec.Title,
		APIPrice:           rec.Price,
		Description:        rec.Description,
		ProductCategory:    rec.Category,
		ProductImageURL:    rec.ImageURL,
		RatingRate:         rec.RatingRate,
		RatingCount:        rec.RatingCount,
		EffectiveStartDate: runTime,
		EffectiveEndDate:   warehouse.OpenEndedDate,
		IsCurrent:          true,
		Version:            version,
		RowHash:            hash,
		LoadedAt:           runTime,
	}
}

func ageGroup(age int64) string {
	switch {
	case age <= 25:
		return "18-25"
	case age <= 35:
		return "26-35"
	case age <= 45:
		return "36-45"
	case age <= 55:
		return "46-55"
	case age <= 65:
		return "56-65"
	default:
		return "65+"
	}
}

func customerSegment(totalTransactions int64) string {
	switch {
	case totalTransactions <= 1:
		return "New"
	case totalTransactions <= 3:
		return "Occasional"
	case totalTransactions <= 5:
		return "Regular"
	default:
		return "Loyal"
	}
}
