package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config содержит конфигурацию сервиса прогнозирования и ETL-процесса
type Config struct {
	// Адрес HTTP-сервера
	HTTPAddr string `env:"SF_HTTP_ADDR"`

	// Подключение к хранилищу продаж
	Database DatabaseConfig

	// Книги Excel, загружаемые через /load_data, через запятую
	DataFiles string `env:"SF_DATA_FILES"`

	// Каталог, внутри которого разрешен вариант file_path
	DataDir string `env:"SF_DATA_DIR"`

	// Размер пакета при вставке записей
	BatchSize int `env:"SF_BATCH_SIZE"`

	// Интервал перезагрузки данных в режиме scheduled
	ReloadInterval time.Duration `env:"SF_RELOAD_INTERVAL"`

	// Параметры прогноза по умолчанию
	Forecast ForecastDefaults

	// Хранилище графиков
	Images ImageConfig

	// Ограничение частоты запросов к /forecast
	RateLimit struct {
		RequestsPerSecond float64 `env:"SF_FORECAST_RPS"`
		Burst             int     `env:"SF_FORECAST_BURST"`
	}

	// Разрешенный источник для CORS
	AllowedOrigin string `env:"SF_ALLOWED_ORIGIN"`

	// Включение/отключение подробного логирования
	EnableDetailedLogging bool `env:"SF_DETAILED_LOGGING"`

	// Файл лога (пусто - только stdout)
	LogFile string `env:"SF_LOG_FILE"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver     string `env:"SF_DB_DRIVER"`
	Host       string `env:"SF_DB_HOST"`
	Port       int    `env:"SF_DB_PORT"`
	User       string `env:"SF_DB_USER"`
	Password   string `env:"SF_DB_PASSWORD"`
	DBName     string `env:"SF_DB_NAME"`
	SQLitePath string `env:"SF_SQLITE_PATH"`
}

// ForecastDefaults содержит значения параметров /forecast по умолчанию
type ForecastDefaults struct {
	ShiftOffset    int    `env:"SF_SHIFT_OFFSET"`
	ForecastDays   int    `env:"SF_FORECAST_DAYS"`
	SeasonalPeriod int    `env:"SF_SEASONAL_PERIOD"`
	Method         string `env:"SF_FORECAST_METHOD"`
}

// ImageConfig содержит настройки хранилища графиков
type ImageConfig struct {
	Driver      string `env:"SF_IMAGE_DRIVER"`
	Dir         string `env:"SF_IMAGE_DIR"`
	S3Bucket    string `env:"SF_IMAGE_S3_BUCKET"`
	S3Region    string `env:"SF_IMAGE_S3_REGION"`
	S3Endpoint  string `env:"SF_IMAGE_S3_ENDPOINT"`
	S3PathStyle bool   `env:"SF_IMAGE_S3_PATH_STYLE"`
}

// Значения конфигурации по умолчанию
var (
	DefaultDatabaseConfig = DatabaseConfig{
		Driver:     "mysql",
		Host:       "localhost",
		Port:       3306,
		User:       "root",
		DBName:     "sales_forecast",
		SQLitePath: "sales.db",
	}

	DefaultConfig = Config{
		HTTPAddr:       ":5000",
		Database:       DefaultDatabaseConfig,
		DataFiles:      "./data/SEP-OCT-NOV.xlsx,./data/DEC-JAN-FEB-MAR.xlsx",
		DataDir:        "./data",
		BatchSize:      1000,
		ReloadInterval: 1 * time.Hour,
		Forecast: ForecastDefaults{
			ShiftOffset:    -4, // сдвиг на срок годности
			ForecastDays:   7,
			SeasonalPeriod: 4, // срок годности
			Method:         "auto",
		},
		Images: ImageConfig{
			Driver: "local",
			Dir:    "./static/forecasts",
		},
		AllowedOrigin:         "*",
		EnableDetailedLogging: true,
	}
)

// Load возвращает конфигурацию: значения по умолчанию, перекрытые
// переменными окружения. Если envFile существует, он загружается первым.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("ошибка загрузки %s: %w", envFile, err)
			}
		}
	}

	cfg := DefaultConfig
	cfg.RateLimit.RequestsPerSecond = 5
	cfg.RateLimit.Burst = 10

	// envdecode возвращает ошибку, если не задана ни одна переменная,
	// в этом случае просто остаются значения по умолчанию
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("неизвестный драйвер базы данных: %q", c.Database.Driver)
	}
	switch c.Images.Driver {
	case "local":
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("для драйвера s3 требуется SF_IMAGE_S3_BUCKET")
		}
	default:
		return fmt.Errorf("неизвестный драйвер хранилища графиков: %q", c.Images.Driver)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("размер пакета должен быть положительным: %d", c.BatchSize)
	}
	if c.Forecast.SeasonalPeriod < 2 {
		return fmt.Errorf("сезонный период должен быть не меньше 2: %d", c.Forecast.SeasonalPeriod)
	}
	if c.Forecast.ForecastDays <= 0 {
		return fmt.Errorf("горизонт прогноза должен быть положительным: %d", c.Forecast.ForecastDays)
	}
	return nil
}

// DataFileList возвращает список книг Excel для загрузки
func (c Config) DataFileList() []string {
	var files []string
	for _, f := range strings.Split(c.DataFiles, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}
