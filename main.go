// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/expiry_forecast/ETL/config"
	"github.com/LilVoxy/expiry_forecast/ETL/extractors"
	"github.com/LilVoxy/expiry_forecast/ETL/forecast"
	"github.com/LilVoxy/expiry_forecast/ETL/load"
	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
	"github.com/LilVoxy/expiry_forecast/database"
	"github.com/LilVoxy/expiry_forecast/middleware"
	"github.com/LilVoxy/expiry_forecast/routes"
	"github.com/LilVoxy/expiry_forecast/storage"
	"github.com/LilVoxy/expiry_forecast/websocket"
)

// Периодичность фоновых задач
const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = 10 * time.Minute
	historyCleanupInterval = 24 * time.Hour
	historyRetention       = 90 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	logger, err := utils.NewLogger(cfg.EnableDetailedLogging, cfg.LogFile)
	if err != nil {
		log.Fatalf("Не удалось создать логгер: %v", err)
	}
	defer logger.Sync()

	logger.Info("Запуск сервера...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Сервер завершился с ошибкой: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Сервер остановлен")
}

func run(ctx context.Context, cfg config.Config, logger *utils.Logger) error {
	// Инициализация базы данных
	db, err := config.ConnectDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer config.CloseDatabase(db)

	sales := database.NewSalesRepository(db, cfg.BatchSize)
	if err := sales.EnsureSchema(ctx); err != nil {
		return err
	}
	forecasts := database.NewForecastRepository(db, cfg.Database.Driver)
	if err := forecasts.EnsureTableExists(ctx); err != nil {
		return err
	}
	logRepo := models.NewSQLLoadLogRepository(db, cfg.Database.Driver)
	if err := logRepo.EnsureTable(ctx); err != nil {
		return err
	}

	images, err := storage.Open(ctx, cfg.Images)
	if err != nil {
		return err
	}
	logger.Info("Хранилище графиков: %s", images.Driver())

	// Менеджер WebSocket рассылает события стадий
	hub := websocket.NewManager(logger)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	metrics := middleware.NewMetrics()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	extractor := extractors.NewExcelExtractor(logger)
	loader := load.NewLoader(extractor, sales, logRepo, logger, cfg.DataFileList())

	// Периодическая перезагрузка книг
	if cfg.ReloadInterval > 0 {
		manager := load.NewLoadManager(loader, logger, cfg.ReloadInterval, func(records int, err error) {
			if errors.Is(err, load.ErrLoadInProgress) {
				return
			}
			routes.PublishStage(hub, metrics, models.StageLoad, records, err)
		})
		if err := manager.Start(ctx); err != nil {
			return err
		}
		defer manager.Stop()
	}

	go runPeriodic(ctx, limiterCleanupInterval, func() {
		if removed := limiter.Cleanup(limiterIdleTimeout); removed > 0 {
			logger.Debug("Удалено неактивных ограничителей: %d", removed)
		}
	})
	go runPeriodic(ctx, historyCleanupInterval, func() {
		removed, err := forecasts.DeleteOldForecasts(ctx, time.Now().Add(-historyRetention))
		if err != nil {
			logger.Error("Ошибка при очистке истории прогнозов: %v", err)
			return
		}
		logger.Info("Удалено устаревших прогнозов: %d", removed)
	})

	// Создаем маршрутизатор
	router := mux.NewRouter()
	routes.SetupRoutes(router, routes.Dependencies{
		Config:     cfg,
		Sales:      sales,
		Forecasts:  forecasts,
		Loader:     loader,
		Extractor:  extractor,
		Forecaster: forecast.NewForecaster(logger),
		Images:     images,
		Hub:        hub,
		Metrics:    metrics,
		Limiter:    limiter,
		Logger:     logger,
	})

	// Настраиваем сервер
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен на %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Ожидаем сигнал завершения
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Warn("Получен сигнал завершения, закрываем соединения...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при остановке сервера: %v", err)
	}
	<-hubDone
	return nil
}

// runPeriodic вызывает fn с интервалом interval до отмены ctx
func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
