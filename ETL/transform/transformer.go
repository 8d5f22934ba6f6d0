package transform

import (
	"sort"
	"time"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// Filter отбирает строки с точным совпадением материала и покупателя.
// Порядок строк сохраняется.
func Filter(records []models.SalesRecord, materialName string, soldToParty int64) []models.SalesRecord {
	filtered := make([]models.SalesRecord, 0)
	for _, rec := range records {
		if rec.MaterialName == materialName && rec.SoldToParty == soldToParty {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// Split разделяет количество на выложенное (q > 0) и просроченное (q < 0)
func Split(records []models.SalesRecord) []models.TransformedRecord {
	transformed := make([]models.TransformedRecord, 0, len(records))
	for _, rec := range records {
		tr := models.TransformedRecord{SalesRecord: rec}
		if rec.QuantityInBaseUnit > 0 {
			tr.ShelvedCount = rec.QuantityInBaseUnit
		} else if rec.QuantityInBaseUnit < 0 {
			tr.ExpiredCount = rec.QuantityInBaseUnit
		}
		transformed = append(transformed, tr)
	}
	return transformed
}

type groupKey struct {
	day  time.Time
	name string
}

// Aggregate суммирует выложенное и просроченное количество по дню и материалу.
// Результат отсортирован по дате, затем по названию.
func Aggregate(records []models.TransformedRecord) []models.AggregatedRecord {
	groups := make(map[groupKey]*models.AggregatedRecord)
	for _, rec := range records {
		key := groupKey{day: models.TruncateDay(rec.BillingDate.Time), name: rec.MaterialName}
		agg, ok := groups[key]
		if !ok {
			agg = &models.AggregatedRecord{
				BillingDate:  models.NewDay(key.day),
				MaterialName: key.name,
			}
			groups[key] = agg
		}
		agg.ShelvedSum += rec.ShelvedCount
		agg.ExpiredSum += rec.ExpiredCount
	}

	aggregated := make([]models.AggregatedRecord, 0, len(groups))
	for _, agg := range groups {
		aggregated = append(aggregated, *agg)
	}
	sort.Slice(aggregated, func(i, j int) bool {
		a, b := aggregated[i], aggregated[j]
		if !a.BillingDate.Equal(b.BillingDate.Time) {
			return a.BillingDate.Before(b.BillingDate.Time)
		}
		return a.MaterialName < b.MaterialName
	})
	return aggregated
}

// Transform выполняет стадию преобразования: разделение и агрегацию
func Transform(records []models.SalesRecord) []models.AggregatedRecord {
	return Aggregate(Split(records))
}
