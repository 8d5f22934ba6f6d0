package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LilVoxy/expiry_forecast/ETL/config"
	"github.com/LilVoxy/expiry_forecast/ETL/extractors"
	"github.com/LilVoxy/expiry_forecast/ETL/forecast"
	"github.com/LilVoxy/expiry_forecast/ETL/load"
	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/transform"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
	"github.com/LilVoxy/expiry_forecast/database"
)

type ETLRunner struct {
	config    config.Config
	db        *sql.DB
	logger    *utils.Logger
	extractor *extractors.ExcelExtractor
	loader    *load.Loader
}

// NewETLRunner создает новый экземпляр ETLRunner
func NewETLRunner(ctx context.Context, cfg config.Config, logger *utils.Logger) (*ETLRunner, error) {
	logger.Info("Инициализация ETL Runner")

	db, err := config.ConnectDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	sales := database.NewSalesRepository(db, cfg.BatchSize)
	if err := sales.EnsureSchema(ctx); err != nil {
		config.CloseDatabase(db)
		return nil, fmt.Errorf("ошибка при создании таблицы продаж: %w", err)
	}

	logRepo := models.NewSQLLoadLogRepository(db, cfg.Database.Driver)
	if err := logRepo.EnsureTable(ctx); err != nil {
		config.CloseDatabase(db)
		return nil, fmt.Errorf("ошибка при создании таблицы журнала загрузок: %w", err)
	}

	extractor := extractors.NewExcelExtractor(logger)

	return &ETLRunner{
		config:    cfg,
		db:        db,
		logger:    logger,
		extractor: extractor,
		loader:    load.NewLoader(extractor, sales, logRepo, logger, cfg.DataFileList()),
	}, nil
}

// Close закрывает соединение с базой данных
func (r *ETLRunner) Close() {
	r.logger.Info("Завершение работы ETL Runner")
	config.CloseDatabase(r.db)
}

// RunOnce выполняет одну загрузку
func (r *ETLRunner) RunOnce(ctx context.Context) error {
	records, err := r.loader.Load(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("Загрузка завершена, записей: %d", records)
	return nil
}

// RunScheduled выполняет загрузку по расписанию до отмены ctx
func (r *ETLRunner) RunScheduled(ctx context.Context) error {
	manager := load.NewLoadManager(r.loader, r.logger, r.config.ReloadInterval, nil)
	return manager.Run(ctx)
}

// forecastParams - параметры режима forecast
type forecastParams struct {
	material string
	vendor   int64
	shift    int
	opts     forecast.Options
	chart    string
}

// RunForecast строит прогноз напрямую по книгам Excel, без сервиса и базы данных
func RunForecast(ctx context.Context, cfg config.Config, logger *utils.Logger, params forecastParams) (*models.ForecastResult, error) {
	if params.material == "" || params.vendor == 0 {
		return nil, fmt.Errorf("для режима forecast требуются -material и -vendor")
	}

	records, err := extractors.NewExcelExtractor(logger).Extract(ctx, cfg.DataFileList()...)
	if err != nil {
		return nil, err
	}

	filtered := transform.Filter(records, params.material, params.vendor)
	logger.Info("Отфильтровано записей: %d из %d", len(filtered), len(records))

	processed := transform.OffsetAndRecalculate(transform.Transform(filtered), params.shift)
	result, err := forecast.NewForecaster(logger).Forecast(ctx, processed, params.opts)
	if err != nil {
		return nil, err
	}

	if params.chart != "" {
		png, err := forecast.RenderChart(params.material, processed, result)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(params.chart, png, 0o644); err != nil {
			return nil, fmt.Errorf("ошибка записи графика: %w", err)
		}
		result.ImageURL = params.chart
	}
	return result, nil
}

func main() {
	// Параметры командной строки
	modePtr := flag.String("mode", "scheduled", "Режим работы: scheduled, once или forecast")
	envPtr := flag.String("env", ".env", "Файл с переменными окружения")
	materialPtr := flag.String("material", "", "Наименование материала (только для режима forecast)")
	vendorPtr := flag.Int64("vendor", 0, "Покупатель SoldToParty (только для режима forecast)")
	shiftPtr := flag.Int("shift", transform.DefaultShiftOffset, "Сдвиг просрочки в днях (только для режима forecast)")
	daysPtr := flag.Int("days", 0, "Горизонт прогноза в днях (только для режима forecast)")
	periodPtr := flag.Int("period", 0, "Сезонный период (только для режима forecast)")
	methodPtr := flag.String("method", "", "Метод: auto, holt_winters или linear (только для режима forecast)")
	chartPtr := flag.String("chart", "", "Файл PNG для графика (только для режима forecast)")

	flag.Parse()

	cfg, err := config.Load(*envPtr)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger, err := utils.NewLogger(cfg.EnableDetailedLogging, cfg.LogFile)
	if err != nil {
		log.Fatalf("Ошибка создания логгера: %v", err)
	}
	defer logger.Sync()

	logger.Info("Запуск ETL Runner в режиме: %s", *modePtr)

	// Контекст отменяется при получении сигнала завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *modePtr {
	case "once", "scheduled":
		runner, err := NewETLRunner(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка при создании ETL Runner: %v", err)
			os.Exit(1)
		}
		defer runner.Close()

		if *modePtr == "once" {
			err = runner.RunOnce(ctx)
		} else {
			err = runner.RunScheduled(ctx)
		}
		if err != nil {
			logger.Error("Ошибка при выполнении загрузки: %v", err)
			runner.Close()
			os.Exit(1)
		}

	case "forecast":
		params := forecastParams{
			material: *materialPtr,
			vendor:   *vendorPtr,
			shift:    *shiftPtr,
			chart:    *chartPtr,
			opts: forecast.Options{
				Days:   cfg.Forecast.ForecastDays,
				Period: cfg.Forecast.SeasonalPeriod,
				Method: cfg.Forecast.Method,
			},
		}
		if *daysPtr > 0 {
			params.opts.Days = *daysPtr
		}
		if *periodPtr > 0 {
			params.opts.Period = *periodPtr
		}
		if *methodPtr != "" {
			params.opts.Method = *methodPtr
		}

		result, err := RunForecast(ctx, cfg, logger, params)
		if err != nil {
			logger.Error("Ошибка при построении прогноза: %v", err)
			os.Exit(1)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			logger.Error("Ошибка при выводе прогноза: %v", err)
			os.Exit(1)
		}

	default:
		logger.Error("Неизвестный режим работы: %s. Доступные режимы: scheduled, once, forecast", *modePtr)
		os.Exit(1)
	}

	logger.Info("ETL Runner завершил работу")
}
