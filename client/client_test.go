package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
	hub "github.com/LilVoxy/expiry_forecast/websocket"
)

// fakeService имитирует сервис прогноза
type fakeService struct {
	mu            sync.Mutex
	loadStatus    int
	transformFail bool
	lastFilter    models.FilterRequest
	lastForecast  models.ForecastRequest
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DayLayout, s)
	require.NoError(t, err)
	return d
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/all_materials", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []string{"BUN", "CAKE"})
	})
	mux.HandleFunc("/all_vendors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []int64{210094})
	})
	mux.HandleFunc("/load_data", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.loadStatus != 0 {
			writeJSON(w, f.loadStatus, models.LoadStatus{Status: false, Error: "книга не найдена"})
			return
		}
		writeJSON(w, http.StatusOK, models.LoadStatus{Status: true, Records: 3})
	})
	mux.HandleFunc("/filter_data", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastFilter))
		writeJSON(w, http.StatusOK, []models.SalesRecord{{
			Material:           "1001",
			MaterialName:       f.lastFilter.MaterialName,
			BaseUnit:           "EA",
			BillingDate:        models.NewBillingTime(day(t, "2023-12-05")),
			QuantityInBaseUnit: -2,
			SoldToParty:        f.lastFilter.SoldToParty,
		}})
	})
	mux.HandleFunc("/transform_data", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.transformFail {
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "хранилище недоступно"})
			return
		}
		writeJSON(w, http.StatusOK, []models.AggregatedRecord{{
			BillingDate:  models.NewDay(day(t, "2023-12-05")),
			MaterialName: "BUN",
			ExpiredSum:   -2,
		}})
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastForecast))
		date := models.NewDay(day(t, "2023-12-06"))
		writeJSON(w, http.StatusOK, models.ForecastResult{
			ImageURL:          "/images/chart.png",
			Method:            models.MethodLinear,
			ForecastedExpired: []models.ExpiredForecast{{Date: date, Value: -2}},
			ForecastedNet:     []models.NetForecast{{Date: date, Value: 8}},
			ForecastedShelved: []models.ShelvedForecast{{Date: date, Value: 10}},
		})
	})
	mux.HandleFunc("/images/chart.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	})
	return mux
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeService) snapshot() (models.FilterRequest, models.ForecastRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFilter, f.lastForecast
}

func newFake(t *testing.T) (*fakeService, *Client) {
	t.Helper()
	fake := &fakeService{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return fake, New(srv.URL+"/", nil)
}

func TestClient_Catalogs(t *testing.T) {
	_, c := newFake(t)
	ctx := context.Background()

	materials, err := c.Materials(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BUN", "CAKE"}, materials)

	vendors, err := c.Vendors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{210094}, vendors)

	img, err := c.Image(ctx, "/images/chart.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img)
	assert.Equal(t, c.BaseURL()+"/images/chart.png", c.ImageURL("images/chart.png"))
	assert.Equal(t, "https://cdn.local/a.png", c.ImageURL("https://cdn.local/a.png"))
}

func TestClient_APIError(t *testing.T) {
	fake, c := newFake(t)
	fake.set(func(f *fakeService) { f.loadStatus = http.StatusInternalServerError })

	_, err := c.LoadData(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "книга не найдена")

	_, err = c.Image(context.Background(), "/images/missing.png")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_UnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Materials(context.Background())
	assert.Error(t, err)
}

func TestSession_Gating(t *testing.T) {
	_, c := newFake(t)
	ctx := context.Background()
	s := NewSession(c)

	_, err := s.Transform(ctx)
	assert.ErrorIs(t, err, ErrStageNotReady)
	_, err = s.RunForecast(ctx, models.ForecastRequest{})
	assert.ErrorIs(t, err, ErrStageNotReady)
	_, err = s.Filter(ctx, "BUN", 210094, "")
	assert.ErrorIs(t, err, ErrStageNotReady)
	_, err = s.Filter(ctx, "", 210094, "sales.xlsx")
	assert.ErrorIs(t, err, ErrStageNotReady)

	// вариант с file_path не требует загрузки
	records, err := s.Filter(ctx, "BUN", 210094, "sales.xlsx")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSession_Pipeline(t *testing.T) {
	fake, c := newFake(t)
	ctx := context.Background()
	s := NewSession(c)

	status, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Records)
	assert.True(t, s.Loaded)

	_, err = s.Filter(ctx, "BUN", 210094, "")
	require.NoError(t, err)
	lastFilter, _ := fake.snapshot()
	assert.Equal(t, models.FilterRequest{MaterialName: "BUN", SoldToParty: 210094}, lastFilter)

	_, err = s.Transform(ctx)
	require.NoError(t, err)
	require.Len(t, s.Aggregated, 1)

	days := 3
	result, err := s.RunForecast(ctx, models.ForecastRequest{ForecastDays: &days})
	require.NoError(t, err)
	assert.Equal(t, "/images/chart.png", result.ImageURL)
	_, lastForecast := fake.snapshot()
	require.NotNil(t, lastForecast.ForecastDays)
	assert.Equal(t, 3, *lastForecast.ForecastDays)
	assert.Equal(t, s.Aggregated, lastForecast.AggregatedData)

	// повторная фильтрация сбрасывает последующие снимки
	_, err = s.Filter(ctx, "CAKE", 210094, "")
	require.NoError(t, err)
	assert.Equal(t, "CAKE", s.MaterialName)
	assert.Nil(t, s.Aggregated)
	assert.Nil(t, s.Forecast)
}

func TestSession_FailedStageKeepsSnapshots(t *testing.T) {
	fake, c := newFake(t)
	ctx := context.Background()
	s := NewSession(c)

	_, err := s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Filter(ctx, "BUN", 210094, "")
	require.NoError(t, err)
	_, err = s.Transform(ctx)
	require.NoError(t, err)

	fake.set(func(f *fakeService) { f.transformFail = true })
	_, err = s.Transform(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "хранилище недоступно")
	assert.Len(t, s.Filtered, 1)
	assert.Len(t, s.Aggregated, 1)

	fake.set(func(f *fakeService) { f.loadStatus = http.StatusInternalServerError })
	_, err = s.Load(ctx)
	require.Error(t, err)
	assert.Len(t, s.Filtered, 1)
}

func TestSession_SaveAndLoad(t *testing.T) {
	_, c := newFake(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "session.snappy")

	empty, err := LoadSession(path, c)
	require.NoError(t, err)
	assert.False(t, empty.Loaded)

	s := NewSession(c)
	_, err = s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Filter(ctx, "BUN", 210094, "")
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	restored, err := LoadSession(path, c)
	require.NoError(t, err)
	assert.True(t, restored.Loaded)
	assert.Equal(t, "BUN", restored.MaterialName)
	require.Len(t, restored.Filtered, 1)
	assert.True(t, s.Filtered[0].BillingDate.Equal(restored.Filtered[0].BillingDate.Time))

	// восстановленная сессия продолжает конвейер
	_, err = restored.Transform(ctx)
	require.NoError(t, err)

	restored.Reset()
	assert.False(t, restored.Loaded)
	assert.Nil(t, restored.Filtered)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	RenderFiltered(&buf, []models.SalesRecord{{
		MaterialName:       "BUN",
		Material:           "1001",
		BillingDate:        models.NewBillingTime(day(t, "2023-12-05")),
		QuantityInBaseUnit: -2,
		SoldToParty:        210094,
	}})
	out := buf.String()
	for _, label := range []string{"Material Name : BUN", "Billing Date : 2023-12-05", "Quantity In Base Unit : -2", "Sold To Party : 210094", "1 record(s)"} {
		assert.Contains(t, out, label)
	}

	buf.Reset()
	RenderAggregated(&buf, []models.AggregatedRecord{{
		BillingDate: models.NewDay(day(t, "2023-12-05")), MaterialName: "BUN", ExpiredSum: -2.5, ShelvedSum: 10,
	}})
	assert.Contains(t, buf.String(), "Expired_sum : -2.5")
	assert.Contains(t, buf.String(), "Shelved_sum : 10")

	buf.Reset()
	date := models.NewDay(day(t, "2023-12-06"))
	RenderForecast(&buf, &models.ForecastResult{
		ForecastedExpired: []models.ExpiredForecast{{Date: date, Value: -2}},
		ForecastedNet:     []models.NetForecast{{Date: date, Value: 8}},
		ForecastedShelved: []models.ShelvedForecast{{Date: date, Value: 10}},
	}, "http://svc/images/chart.png")
	out = buf.String()
	assert.Contains(t, out, "Forecast Image : http://svc/images/chart.png")
	assert.Contains(t, out, "Forecasted Expiry")
	assert.Contains(t, out, "2023-12-06  Forecast net : 8")
	assert.Contains(t, out, "Forecasted Shelved")

	buf.Reset()
	RenderFiltered(&buf, nil)
	assert.Equal(t, "No records\n", buf.String())
}

func TestWatch(t *testing.T) {
	manager := hub.NewManager(utils.NewNopLogger())
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubStopped := make(chan struct{})
	go func() {
		manager.Run(hubCtx)
		close(hubStopped)
	}()
	defer func() {
		stopHub()
		<-hubStopped
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", manager.HandleConnections)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil)
	assert.Equal(t, "ws"+srv.URL[len("http"):]+"/ws", c.WatchURL())

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan models.StageEvent, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- c.Watch(ctx, func(e models.StageEvent) { events <- e })
	}()

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	manager.Publish(models.StageEvent{Stage: models.StageForecast, Status: "success", Rows: 7})

	select {
	case e := <-events:
		assert.Equal(t, models.StageForecast, e.Stage)
		assert.Equal(t, 7, e.Rows)
	case <-time.After(2 * time.Second):
		t.Fatal("событие не получено")
	}

	cancel()
	select {
	case err := <-watchErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch не завершился после отмены")
	}
}
