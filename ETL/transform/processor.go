package transform

import (
	"sort"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// DefaultShiftOffset - сдвиг просрочки по умолчанию: просрочка относится
// к выкладке, сделанной четырьмя строками раньше
const DefaultShiftOffset = -4

// OffsetAndRecalculate сдвигает столбец expired_sum на shift строк,
// пересчитывает net_sum и суммирует значения по дням.
//
// Отрицательный shift подтягивает более поздние значения вверх, последние
// |shift| групп при этом содержат заполненные нулями значения и отбрасываются.
// Положительный shift отбрасывает первые shift групп, в которых нет
// сдвинутых значений, нулевой shift возвращает все группы. Усечение всегда
// убирает только группы без данных и никогда не обрезает ряд с другой стороны.
func OffsetAndRecalculate(aggregated []models.AggregatedRecord, shift int) []models.ProcessedRecord {
	rows := make([]models.AggregatedRecord, len(aggregated))
	copy(rows, aggregated)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].BillingDate.Before(rows[j].BillingDate.Time)
	})

	shifted := make([]float64, len(rows))
	for i := range rows {
		src := i - shift
		if src >= 0 && src < len(rows) {
			shifted[i] = rows[src].ExpiredSum
		}
	}

	processed := make([]models.ProcessedRecord, 0)
	for i, row := range rows {
		n := len(processed)
		if n == 0 || !processed[n-1].BillingDate.Equal(row.BillingDate.Time) {
			processed = append(processed, models.ProcessedRecord{BillingDate: row.BillingDate})
			n++
		}
		p := &processed[n-1]
		p.ShelvedSum += row.ShelvedSum
		p.ExpiredSum += shifted[i]
		p.NetSum += row.ShelvedSum + shifted[i]
	}

	switch {
	case shift < 0:
		if -shift >= len(processed) {
			return processed[:0]
		}
		return processed[:len(processed)+shift]
	case shift > 0:
		if shift >= len(processed) {
			return processed[:0]
		}
		return processed[shift:]
	}
	return processed
}
