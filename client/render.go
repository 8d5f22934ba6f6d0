package client

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

const cardRule = "----------------------------------------"

// field - строка карточки "Подпись : значение"
type field struct {
	label string
	value string
}

func writeCard(w io.Writer, title field, fields ...field) {
	fmt.Fprintln(w, cardRule)
	fmt.Fprintf(w, "%s : %s\n", title.label, title.value)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s : %s\n", f.label, f.value)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderFiltered печатает карточки отфильтрованных строк
func RenderFiltered(w io.Writer, records []models.SalesRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records")
		return
	}
	for _, r := range records {
		writeCard(w,
			field{"Material Name", r.MaterialName},
			field{"Material", r.Material},
			field{"Base Unit", r.BaseUnit},
			field{"Billing Document Type", r.BillingDocumentType},
			field{"Billing Date", r.BillingDate.UTC().Format(models.DayLayout)},
			field{"Net Sales", formatNumber(r.NetSales)},
			field{"Plant", r.Plant},
			field{"Quantity In Base Unit", formatNumber(r.QuantityInBaseUnit)},
			field{"Region", r.Region},
			field{"Sold To Party", strconv.FormatInt(r.SoldToParty, 10)},
		)
	}
	fmt.Fprintln(w, cardRule)
	fmt.Fprintf(w, "%d record(s)\n", len(records))
}

// RenderAggregated печатает карточки агрегированных строк
func RenderAggregated(w io.Writer, records []models.AggregatedRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records")
		return
	}
	for _, r := range records {
		writeCard(w,
			field{"Material Name", r.MaterialName},
			field{"Billing Date", r.BillingDate.String()},
			field{"Expired_sum", formatNumber(r.ExpiredSum)},
			field{"Shelved_sum", formatNumber(r.ShelvedSum)},
		)
	}
	fmt.Fprintln(w, cardRule)
	fmt.Fprintf(w, "%d record(s)\n", len(records))
}

// RenderForecast печатает адрес графика и три раздела прогноза.
// imageURL - абсолютный адрес изображения.
func RenderForecast(w io.Writer, result *models.ForecastResult, imageURL string) {
	fmt.Fprintf(w, "Forecast Image : %s\n", imageURL)
	if result.Method != "" {
		fmt.Fprintf(w, "Method : %s\n", result.Method)
	}

	section(w, "Forecasted Expiry")
	for _, item := range result.ForecastedExpired {
		fmt.Fprintf(w, "  %s  Forecast expired sum : %s\n", item.Date, formatNumber(item.Value))
	}

	section(w, "Forecasted Net")
	for _, item := range result.ForecastedNet {
		fmt.Fprintf(w, "  %s  Forecast net : %s\n", item.Date, formatNumber(item.Value))
	}

	section(w, "Forecasted Shelved")
	for _, item := range result.ForecastedShelved {
		fmt.Fprintf(w, "  %s  Forecast shelved sum : %s\n", item.Date, formatNumber(item.Value))
	}
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}

// RenderLoadRun печатает запись журнала загрузок
func RenderLoadRun(w io.Writer, run *models.LoadRun) {
	writeCard(w,
		field{"Load Run", strconv.Itoa(run.ID)},
		field{"Status", run.Status},
		field{"Files", run.Files},
		field{"Started", run.StartTime.UTC().Format(http.TimeFormat)},
		field{"Records Loaded", strconv.Itoa(run.RecordsLoaded)},
		field{"Execution Time", formatNumber(run.ExecutionTimeSeconds) + "s"},
	)
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "  Error : %s\n", run.ErrorMessage)
	}
	fmt.Fprintln(w, cardRule)
}

// RenderEvent печатает событие стадии конвейера одной строкой
func RenderEvent(w io.Writer, event models.StageEvent) {
	if event.Error != "" {
		fmt.Fprintf(w, "[%s] %s: %s\n", event.Stage, event.Status, event.Error)
		return
	}
	fmt.Fprintf(w, "[%s] %s (%d rows)\n", event.Stage, event.Status, event.Rows)
}
