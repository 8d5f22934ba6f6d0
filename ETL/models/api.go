package models

// FilterRequest - тело запроса /filter_data
type FilterRequest struct {
	FilePath     string `json:"file_path,omitempty"`
	MaterialName string `json:"material_name"`
	SoldToParty  int64  `json:"sold_to_party"`
}

// TransformRequest - тело запроса /transform_data
type TransformRequest struct {
	FilteredData []SalesRecord `json:"filtered_data"`
}

// ForecastRequest - тело запроса /forecast.
// Необязательные параметры заменяются значениями из конфигурации.
type ForecastRequest struct {
	AggregatedData []AggregatedRecord `json:"aggregated_data"`
	ShiftOffset    *int               `json:"shift_offset,omitempty"`
	ForecastDays   *int               `json:"forecast_days,omitempty"`
	SeasonalPeriod *int               `json:"seasonal_period,omitempty"`
	Method         string             `json:"method,omitempty"`
}

// LoadStatus - ответ /load_data
type LoadStatus struct {
	Status  bool   `json:"status"`
	Records int    `json:"records,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// StageEvent - событие стадии конвейера, рассылаемое через WebSocket
type StageEvent struct {
	Type   string `json:"type"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// Названия стадий
const (
	StageLoad      = "load"
	StageFilter    = "filter"
	StageTransform = "transform"
	StageForecast  = "forecast"
)
