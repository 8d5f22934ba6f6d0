// routes/api_routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/expiry_forecast/ETL/config"
	"github.com/LilVoxy/expiry_forecast/ETL/extractors"
	"github.com/LilVoxy/expiry_forecast/ETL/forecast"
	"github.com/LilVoxy/expiry_forecast/ETL/load"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
	"github.com/LilVoxy/expiry_forecast/database"
	"github.com/LilVoxy/expiry_forecast/middleware"
	"github.com/LilVoxy/expiry_forecast/storage"
	"github.com/LilVoxy/expiry_forecast/websocket"
)

// Dependencies - компоненты, которые используют обработчики API
type Dependencies struct {
	Config     config.Config
	Sales      *database.SalesRepository
	Forecasts  *database.ForecastRepository
	Loader     *load.Loader
	Extractor  *extractors.ExcelExtractor
	Forecaster *forecast.Forecaster
	Images     storage.ImageStore
	Hub        *websocket.Manager
	Metrics    *middleware.Metrics
	Limiter    *middleware.RateLimiter
	Logger     *utils.Logger
}

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, deps Dependencies) {
	h := newHandler(deps)

	router.Use(middleware.CORS(deps.Config.AllowedOrigin))
	router.Use(deps.Metrics.Instrument)

	// Метрики и события стадий
	router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	router.HandleFunc("/ws", deps.Hub.HandleConnections)
	router.HandleFunc("/ws/status", deps.Hub.HandleStatus).Methods("GET", "OPTIONS")

	// Справочники
	router.HandleFunc("/all_materials", h.GetMaterialsHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/all_vendors", h.GetVendorsHandler).Methods("GET", "OPTIONS")

	// Стадии конвейера
	router.HandleFunc("/load_data", h.LoadDataHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/load_status", h.LoadStatusHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/filter_data", h.FilterDataHandler).Methods("POST", "OPTIONS")
	router.HandleFunc("/transform_data", h.TransformDataHandler).Methods("POST", "OPTIONS")

	forecastHandler := http.HandlerFunc(h.ForecastHandler)
	if deps.Limiter != nil {
		router.Handle("/forecast", deps.Limiter.Handler(forecastHandler)).Methods("POST", "OPTIONS")
	} else {
		router.Handle("/forecast", forecastHandler).Methods("POST", "OPTIONS")
	}
	router.HandleFunc("/forecast_history", h.ForecastHistoryHandler).Methods("GET", "OPTIONS")

	// Графики прогнозов
	router.HandleFunc("/images/{key}", h.GetImageHandler).Methods("GET", "OPTIONS")
}
