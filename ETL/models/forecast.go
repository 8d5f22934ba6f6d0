package models

import "time"

// Методы прогнозирования
const (
	MethodAuto        = "auto"
	MethodHoltWinters = "holt_winters"
	MethodLinear      = "linear"
)

// ExpiredForecast - прогноз просроченного количества на день
type ExpiredForecast struct {
	Date  Day     `json:"date"`
	Value float64 `json:"forecast_expired_sum"`
}

// ShelvedForecast - прогноз выложенного количества на день
type ShelvedForecast struct {
	Date  Day     `json:"date"`
	Value float64 `json:"forecast_shelved_sum"`
}

// NetForecast - прогноз чистого количества на день
type NetForecast struct {
	Date  Day     `json:"date"`
	Value float64 `json:"forecast_net"`
}

// ForecastResult - ответ /forecast
type ForecastResult struct {
	ImageURL          string            `json:"image_url"`
	Method            string            `json:"method"`
	ForecastedExpired []ExpiredForecast `json:"forecasted_expired"`
	ForecastedNet     []NetForecast     `json:"forecasted_net"`
	ForecastedShelved []ShelvedForecast `json:"forecasted_shelved"`
}

// ForecastRun - сохраненная точка прогноза
type ForecastRun struct {
	ID           int       `json:"id"`
	MaterialName string    `json:"material_name"`
	Method       string    `json:"method"`
	ForecastDate Day       `json:"forecast_date"`
	Shelved      float64   `json:"shelved"`
	Expired      float64   `json:"expired"`
	Net          float64   `json:"net"`
	ImageURL     string    `json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
}
