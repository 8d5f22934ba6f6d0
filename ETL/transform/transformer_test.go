package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

func sale(name string, vendor int64, day int, qty float64) models.SalesRecord {
	return models.SalesRecord{
		MaterialName:       name,
		SoldToParty:        vendor,
		BillingDate:        models.NewBillingTime(time.Date(2023, 12, day, 0, 0, 0, 0, time.UTC)),
		QuantityInBaseUnit: qty,
	}
}

func day(d int) models.Day {
	return models.NewDay(time.Date(2023, 12, d, 0, 0, 0, 0, time.UTC))
}

func TestFilter(t *testing.T) {
	records := []models.SalesRecord{
		sale("BUN", 1, 1, 5),
		sale("BUN", 2, 1, 6),
		sale("ROLL", 1, 2, 7),
		sale("BUN", 1, 3, -1),
	}

	filtered := Filter(records, "BUN", 1)
	require.Len(t, filtered, 2)
	assert.Equal(t, 5.0, filtered[0].QuantityInBaseUnit)
	assert.Equal(t, -1.0, filtered[1].QuantityInBaseUnit)

	none := Filter(records, "bun", 1)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSplit(t *testing.T) {
	split := Split([]models.SalesRecord{sale("A", 1, 1, 4), sale("A", 1, 1, -3), sale("A", 1, 1, 0)})
	require.Len(t, split, 3)

	assert.Equal(t, 4.0, split[0].ShelvedCount)
	assert.Equal(t, 0.0, split[0].ExpiredCount)
	assert.Equal(t, 0.0, split[1].ShelvedCount)
	assert.Equal(t, -3.0, split[1].ExpiredCount)
	assert.Zero(t, split[2].ShelvedCount)
	assert.Zero(t, split[2].ExpiredCount)
}

func TestTransform_AggregatesByDayAndName(t *testing.T) {
	aggregated := Transform([]models.SalesRecord{
		sale("B", 1, 2, 3),
		sale("A", 1, 2, 10),
		sale("A", 1, 1, 5),
		sale("A", 1, 2, -2),
		sale("A", 1, 1, -1),
		sale("A", 1, 1, 7),
	})

	assert.Equal(t, []models.AggregatedRecord{
		{BillingDate: day(1), MaterialName: "A", ShelvedSum: 12, ExpiredSum: -1},
		{BillingDate: day(2), MaterialName: "A", ShelvedSum: 10, ExpiredSum: -2},
		{BillingDate: day(2), MaterialName: "B", ShelvedSum: 3, ExpiredSum: 0},
	}, aggregated)
}

func TestTransform_Empty(t *testing.T) {
	aggregated := Transform(nil)
	assert.NotNil(t, aggregated)
	assert.Empty(t, aggregated)
}
