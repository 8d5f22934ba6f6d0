package forecast

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// DataPoint представляет точку ряда для линейной регрессии
type DataPoint struct {
	X    float64   // Порядковый номер дня относительно начала ряда
	Y    float64   // Значение за день
	Date time.Time // Фактическая дата
}

// RegressionResult содержит коэффициенты линейной регрессии y = A*x + B
type RegressionResult struct {
	A           float64
	B           float64
	R           float64 // Коэффициент корреляции Пирсона
	R2          float64 // Коэффициент детерминации
	PeriodStart time.Time
	PeriodEnd   time.Time
	DataPoints  []DataPoint
}

// LinearRegression рассчитывает коэффициенты методом наименьших квадратов.
// Для одной точки (или одинаковых X) возвращается горизонтальная прямая.
func LinearRegression(points []DataPoint) (*RegressionResult, error) {
	if len(points) == 0 {
		return nil, errors.Wrap(ErrInsufficientData, "для линейной регрессии нет точек")
	}

	minDate := points[0].Date
	maxDate := points[0].Date
	for _, p := range points {
		if p.Date.Before(minDate) {
			minDate = p.Date
		}
		if p.Date.After(maxDate) {
			maxDate = p.Date
		}
	}

	// a = (n*sum(x*y) - sum(x)*sum(y)) / (n*sum(x^2) - (sum(x))^2)
	// b = (sum(y) - a*sum(x)) / n
	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumX2 += p.X * p.X
		sumY2 += p.Y * p.Y
	}

	var a float64
	denominator := n*sumX2 - sumX*sumX
	if math.Abs(denominator) >= 1e-10 {
		a = (n*sumXY - sumX*sumY) / denominator
	}
	b := (sumY - a*sumX) / n

	var r float64
	numerator := n*sumXY - sumX*sumY
	denominator = math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if math.Abs(denominator) >= 1e-10 && !math.IsNaN(denominator) {
		r = numerator / denominator
	}

	return &RegressionResult{
		A:           a,
		B:           b,
		R:           r,
		R2:          r * r,
		PeriodStart: minDate,
		PeriodEnd:   maxDate,
		DataPoints:  points,
	}, nil
}

// Predict прогнозирует значение для заданного X
func (r *RegressionResult) Predict(x float64) float64 {
	return r.A*x + r.B
}

// Forecast прогнозирует значения на steps дней после последней точки
func (r *RegressionResult) Forecast(steps int) []float64 {
	maxX := 0.0
	for _, p := range r.DataPoints {
		if p.X > maxX {
			maxX = p.X
		}
	}

	out := make([]float64, steps)
	for i := range out {
		out[i] = r.Predict(maxX + float64(i+1))
	}
	return out
}

// pointsFromSeries строит точки регрессии, где X - число дней от первой даты
func pointsFromSeries(dates []time.Time, values []float64) []DataPoint {
	points := make([]DataPoint, len(values))
	for i, v := range values {
		points[i] = DataPoint{
			X:    dates[i].Sub(dates[0]).Hours() / 24,
			Y:    v,
			Date: dates[i],
		}
	}
	return points
}
