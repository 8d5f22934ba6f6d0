package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/processor"
)

var (
	// ErrStageNotReady - предыдущая стадия конвейера не дала данных
	ErrStageNotReady = errors.New("предыдущая стадия не выполнена")
	// ErrLoadFailed - сервис ответил status=false на /load_data
	ErrLoadFailed = errors.New("Data loading failed. Try again.")
)

// Session хранит последний успешный результат каждой стадии.
// Успешная стадия заменяет свой снимок целиком и сбрасывает снимки последующих стадий,
// неудачная стадия не меняет ни одного снимка.
type Session struct {
	Loaded       bool                      `json:"loaded"`
	MaterialName string                    `json:"material_name,omitempty"`
	SoldToParty  int64                     `json:"sold_to_party,omitempty"`
	Filtered     []models.SalesRecord      `json:"filtered,omitempty"`
	Aggregated   []models.AggregatedRecord `json:"aggregated,omitempty"`
	Forecast     *models.ForecastResult    `json:"forecast,omitempty"`

	client *Client
}

// NewSession создает пустую сессию
func NewSession(client *Client) *Session {
	return &Session{client: client}
}

// LoadSession читает сессию из файла. Если файла нет, возвращается пустая сессия.
func LoadSession(path string, client *Client) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSession(client), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии %s: %w", path, err)
	}

	session := NewSession(client)
	if err := processor.DecodeJSON(data, session); err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии %s: %w", path, err)
	}
	return session, nil
}

// Save сохраняет сессию в сжатый файл
func (s *Session) Save(path string) error {
	data, err := processor.EncodeJSON(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ошибка создания каталога сессии: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

// Reset очищает все снимки
func (s *Session) Reset() {
	client := s.client
	*s = Session{client: client}
}

// Load загружает книги на стороне сервиса. Новые данные делают прежние снимки неактуальными.
func (s *Session) Load(ctx context.Context) (*models.LoadStatus, error) {
	status, err := s.client.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Status {
		if status.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoadFailed, status.Error)
		}
		return nil, ErrLoadFailed
	}

	s.Loaded = true
	s.clearFrom(models.StageFilter)
	return status, nil
}

// Filter выполняет фильтрацию. Без filePath требуется предварительная загрузка данных.
func (s *Session) Filter(ctx context.Context, materialName string, soldToParty int64, filePath string) ([]models.SalesRecord, error) {
	if materialName == "" || soldToParty == 0 {
		return nil, fmt.Errorf("%w: Please select both Material Name and Sold to Party before filtering.", ErrStageNotReady)
	}
	if filePath == "" && !s.Loaded {
		return nil, fmt.Errorf("%w: данные не загружены, выполните load", ErrStageNotReady)
	}

	records, err := s.client.Filter(ctx, models.FilterRequest{
		FilePath:     filePath,
		MaterialName: materialName,
		SoldToParty:  soldToParty,
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.SalesRecord{}
	}

	s.clearFrom(models.StageFilter)
	s.MaterialName = materialName
	s.SoldToParty = soldToParty
	s.Filtered = records
	return records, nil
}

// Transform агрегирует последний результат фильтрации
func (s *Session) Transform(ctx context.Context) ([]models.AggregatedRecord, error) {
	if len(s.Filtered) == 0 {
		return nil, fmt.Errorf("%w: нет отфильтрованных данных, выполните filter", ErrStageNotReady)
	}

	aggregated, err := s.client.Transform(ctx, s.Filtered)
	if err != nil {
		return nil, err
	}
	if aggregated == nil {
		aggregated = []models.AggregatedRecord{}
	}

	s.clearFrom(models.StageTransform)
	s.Aggregated = aggregated
	return aggregated, nil
}

// RunForecast строит прогноз по последнему результату агрегации.
// Поле AggregatedData в req заменяется снимком сессии.
func (s *Session) RunForecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	if len(s.Aggregated) == 0 {
		return nil, fmt.Errorf("%w: нет агрегированных данных, выполните transform", ErrStageNotReady)
	}

	req.AggregatedData = s.Aggregated
	result, err := s.client.Forecast(ctx, req)
	if err != nil {
		return nil, err
	}

	s.Forecast = result
	return result, nil
}

// clearFrom сбрасывает снимки указанной стадии и всех последующих
func (s *Session) clearFrom(stage string) {
	switch stage {
	case models.StageFilter:
		s.MaterialName = ""
		s.SoldToParty = 0
		s.Filtered = nil
		fallthrough
	case models.StageTransform:
		s.Aggregated = nil
		fallthrough
	case models.StageForecast:
		s.Forecast = nil
	}
}
