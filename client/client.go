// Package client - HTTP-клиент сервиса прогноза и сессия конвейера
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

const defaultTimeout = 2 * time.Minute

// APIError - ответ сервиса с кодом, отличным от 2xx
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	var resp models.ErrorResponse
	if json.Unmarshal([]byte(e.Body), &resp) == nil && resp.Error != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), resp.Error)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), strings.TrimSpace(e.Body))
}

// Client вызывает конечные точки сервиса
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New создает клиента. Если httpClient равен nil, используется клиент с таймаутом по умолчанию.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL возвращает адрес сервиса
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Materials возвращает список наименований материалов
func (c *Client) Materials(ctx context.Context) ([]string, error) {
	var materials []string
	if err := c.do(ctx, http.MethodGet, "/all_materials", nil, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// Vendors возвращает список покупателей (SoldToParty)
func (c *Client) Vendors(ctx context.Context) ([]int64, error) {
	var vendors []int64
	if err := c.do(ctx, http.MethodGet, "/all_vendors", nil, &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

// LoadData запускает загрузку книг в хранилище
func (c *Client) LoadData(ctx context.Context) (*models.LoadStatus, error) {
	var status models.LoadStatus
	if err := c.do(ctx, http.MethodGet, "/load_data", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LoadStatus возвращает последнюю запись журнала загрузок
func (c *Client) LoadStatus(ctx context.Context) (*models.LoadRun, error) {
	var run models.LoadRun
	if err := c.do(ctx, http.MethodGet, "/load_status", nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Filter выполняет стадию фильтрации
func (c *Client) Filter(ctx context.Context, req models.FilterRequest) ([]models.SalesRecord, error) {
	var records []models.SalesRecord
	if err := c.do(ctx, http.MethodPost, "/filter_data", req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Transform выполняет стадию агрегации
func (c *Client) Transform(ctx context.Context, filtered []models.SalesRecord) ([]models.AggregatedRecord, error) {
	var aggregated []models.AggregatedRecord
	req := models.TransformRequest{FilteredData: filtered}
	if err := c.do(ctx, http.MethodPost, "/transform_data", req, &aggregated); err != nil {
		return nil, err
	}
	return aggregated, nil
}

// Forecast выполняет стадию прогноза
func (c *Client) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	var result models.ForecastResult
	if err := c.do(ctx, http.MethodPost, "/forecast", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Image скачивает изображение графика. imageURL может быть относительным.
func (c *Client) Image(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, c.resolve(imageURL), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// ImageURL возвращает абсолютный адрес изображения
func (c *Client) ImageURL(imageURL string) string {
	return c.resolve(imageURL)
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) send(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.send(ctx, method, c.resolve(path), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ошибка разбора ответа %s: %w", path, err)
	}
	return nil
}
