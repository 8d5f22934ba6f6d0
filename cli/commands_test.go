package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/client"
)

func newFakeService(t *testing.T) *httptest.Server {
	t.Helper()
	date, err := time.Parse(models.DayLayout, "2023-12-05")
	require.NoError(t, err)
	next := models.NewDay(date.AddDate(0, 0, 1))

	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/all_materials", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []string{"BUN", "CAKE"})
	})
	mux.HandleFunc("/load_data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.LoadStatus{Status: true, Records: 2})
	})
	mux.HandleFunc("/filter_data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.SalesRecord{{MaterialName: "BUN", BillingDate: models.NewBillingTime(date), QuantityInBaseUnit: 10, SoldToParty: 210094}})
	})
	mux.HandleFunc("/transform_data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.AggregatedRecord{{BillingDate: models.NewDay(date), MaterialName: "BUN", ShelvedSum: 10}})
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		var req models.ForecastRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Method == "arima" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, models.ErrorResponse{Error: "неизвестный метод"})
			return
		}
		writeJSON(w, models.ForecastResult{
			ImageURL:          "/images/chart.png",
			Method:            models.MethodLinear,
			ForecastedExpired: []models.ExpiredForecast{{Date: next, Value: 0}},
			ForecastedNet:     []models.NetForecast{{Date: next, Value: 10}},
			ForecastedShelved: []models.ShelvedForecast{{Date: next, Value: 10}},
		})
	})
	mux.HandleFunc("/images/chart.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\x89PNG"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, srv *httptest.Server, session string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--session", session}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands_StagesAcrossInvocations(t *testing.T) {
	srv := newFakeService(t)
	session := filepath.Join(t.TempDir(), "session.snappy")

	_, err := execute(t, srv, session, "transform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An error occurred while transforming data")

	_, err = execute(t, srv, session, "filter", "-m", "BUN", "-v", "210094")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An error occurred while fetching filtered data")

	out, err := execute(t, srv, session, "load")
	require.NoError(t, err)
	assert.Contains(t, out, "Data loaded: 2 record(s)")

	out, err = execute(t, srv, session, "filter", "-m", "BUN", "-v", "210094")
	require.NoError(t, err)
	assert.Contains(t, out, "Material Name : BUN")

	out, err = execute(t, srv, session, "transform")
	require.NoError(t, err)
	assert.Contains(t, out, "Shelved_sum : 10")

	chart := filepath.Join(t.TempDir(), "chart.png")
	out, err = execute(t, srv, session, "forecast", "--days", "3", "--save-chart", chart)
	require.NoError(t, err)
	assert.Contains(t, out, "Forecast Image : "+srv.URL+"/images/chart.png")
	assert.Contains(t, out, "2023-12-06  Forecast net : 10")
	png, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png)

	_, err = execute(t, srv, session, "forecast", "--method", "arima")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An error occurred while forecasting data: 400 Bad Request: неизвестный метод")

	out, err = execute(t, srv, session, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Session cleared")
	_, err = execute(t, srv, session, "transform")
	require.Error(t, err)
}

func TestCommands_ResetKeepsSessionFile(t *testing.T) {
	srv := newFakeService(t)
	session := filepath.Join(t.TempDir(), "session.snappy")

	_, err := execute(t, srv, session, "load")
	require.NoError(t, err)

	out, err := execute(t, srv, session, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Session cleared")

	restored, err := client.LoadSession(session, nil)
	require.NoError(t, err)
	assert.False(t, restored.Loaded)
}

func TestCommands_ResetRewritesCorruptSession(t *testing.T) {
	srv := newFakeService(t)
	session := filepath.Join(t.TempDir(), "session.snappy")
	require.NoError(t, os.WriteFile(session, []byte("не сессия"), 0o644))

	_, err := execute(t, srv, session, "transform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An error occurred while restoring session")

	_, err = execute(t, srv, session, "reset")
	require.NoError(t, err)

	_, err = execute(t, srv, session, "transform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An error occurred while transforming data")
}

func TestForecastFlags_ShiftUsage(t *testing.T) {
	for _, name := range []string{"forecast", "run"} {
		cmd, _, err := newRootCmd(&bytes.Buffer{}).Find([]string{name})
		require.NoError(t, err)
		flag := cmd.Flags().Lookup("shift")
		require.NotNil(t, flag, name)
		assert.Equal(t, "Expiry shift offset in aggregated rows", flag.Usage)
		assert.Equal(t, "-4", flag.DefValue)
	}
}

func TestWithSession_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "state")
	opts := &options{
		server:      "http://127.0.0.1:0",
		sessionPath: filepath.Join(blocker, "session.snappy"),
		timeout:     time.Second,
		out:         &bytes.Buffer{},
	}

	// файл на месте каталога сессии не дает ее сохранить
	err := opts.withSession(func(s *client.Session) error {
		return os.WriteFile(blocker, nil, 0o644)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An error occurred while saving session")

	// ошибка команды важнее ошибки сохранения
	require.NoError(t, os.Remove(blocker))
	runErr := errors.New("сервис недоступен")
	err = opts.withSession(func(s *client.Session) error {
		if err := os.WriteFile(blocker, nil, 0o644); err != nil {
			return err
		}
		return runErr
	})
	assert.ErrorIs(t, err, runErr)
}

func TestCommands_Run(t *testing.T) {
	srv := newFakeService(t)
	session := filepath.Join(t.TempDir(), "session.snappy")

	out, err := execute(t, srv, session, "run", "-m", "BUN", "-v", "210094")
	require.NoError(t, err)
	for _, part := range []string{"Data loaded", "Material Name : BUN", "Expired_sum : 0", "Forecasted Shelved"} {
		assert.Contains(t, out, part)
	}

	out, err = execute(t, srv, session, "materials")
	require.NoError(t, err)
	assert.Equal(t, "BUN\nCAKE\n", out)
}
