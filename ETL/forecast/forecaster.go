package forecast

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

var (
	ErrInsufficientData = errors.New("недостаточно данных для прогноза")
	ErrInvalidOptions   = errors.New("неверные параметры прогноза")
)

// MaxForecastDays ограничивает горизонт прогноза
const MaxForecastDays = 365

// Options - параметры прогноза
type Options struct {
	Days   int
	Period int
	Method string
}

// Validate проверяет параметры прогноза
func (o Options) Validate() error {
	if o.Days < 1 || o.Days > MaxForecastDays {
		return errors.Wrapf(ErrInvalidOptions, "forecast_days должен быть от 1 до %d, получено: %d", MaxForecastDays, o.Days)
	}
	if o.Period < 2 {
		return errors.Wrapf(ErrInvalidOptions, "seasonal_period должен быть не меньше 2, получено: %d", o.Period)
	}
	switch o.Method {
	case models.MethodAuto, models.MethodHoltWinters, models.MethodLinear:
	default:
		return errors.Wrapf(ErrInvalidOptions, "неизвестный метод %q", o.Method)
	}
	return nil
}

// model - общая часть моделей Хольта-Винтерса и линейной регрессии
type model interface {
	Forecast(steps int) []float64
}

// Forecaster строит прогноз выложенного, просроченного и чистого количества
type Forecaster struct {
	logger *utils.Logger
}

// NewForecaster создает новый экземпляр Forecaster
func NewForecaster(logger *utils.Logger) *Forecaster {
	return &Forecaster{logger: logger}
}

// Forecast строит дневной прогноз начиная с дня, следующего за последней датой ряда.
// Модели выложенного и просроченного количества подбираются параллельно.
// Значения округляются до целого по правилу банковского округления,
// чистый прогноз равен сумме округленных прогнозов.
func (f *Forecaster) Forecast(ctx context.Context, processed []models.ProcessedRecord, opts Options) (*models.ForecastResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(processed) == 0 {
		return nil, errors.Wrap(ErrInsufficientData, "после сдвига не осталось ни одного дня")
	}

	rows := make([]models.ProcessedRecord, len(processed))
	copy(rows, processed)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].BillingDate.Before(rows[j].BillingDate.Time)
	})

	dates := make([]time.Time, len(rows))
	shelved := make([]float64, len(rows))
	expired := make([]float64, len(rows))
	for i, r := range rows {
		dates[i] = r.BillingDate.Time
		shelved[i] = r.ShelvedSum
		expired[i] = r.ExpiredSum
	}

	method := opts.Method
	if method == models.MethodAuto {
		method = models.MethodHoltWinters
		if len(rows) < 2*opts.Period {
			method = models.MethodLinear
			f.logger.Debug("Наблюдений %d меньше %d, используется линейный тренд", len(rows), 2*opts.Period)
		}
	}

	fit := func(values []float64) (model, error) {
		if method == models.MethodLinear {
			return LinearRegression(pointsFromSeries(dates, values))
		}
		return FitHoltWinters(values, opts.Period)
	}

	var shelvedForecast, expiredForecast []float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := fit(shelved)
		if err != nil {
			return errors.Wrap(err, "модель shelved_sum")
		}
		shelvedForecast = m.Forecast(opts.Days)
		return gctx.Err()
	})
	g.Go(func() error {
		m, err := fit(expired)
		if err != nil {
			return errors.Wrap(err, "модель expired_sum")
		}
		expiredForecast = m.Forecast(opts.Days)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start := dates[len(dates)-1].AddDate(0, 0, 1)
	result := &models.ForecastResult{
		Method:            method,
		ForecastedExpired: make([]models.ExpiredForecast, opts.Days),
		ForecastedNet:     make([]models.NetForecast, opts.Days),
		ForecastedShelved: make([]models.ShelvedForecast, opts.Days),
	}
	for i := 0; i < opts.Days; i++ {
		day := models.NewDay(start.AddDate(0, 0, i))
		s := roundValue(shelvedForecast[i])
		e := roundValue(expiredForecast[i])
		result.ForecastedShelved[i] = models.ShelvedForecast{Date: day, Value: s}
		result.ForecastedExpired[i] = models.ExpiredForecast{Date: day, Value: e}
		result.ForecastedNet[i] = models.NetForecast{Date: day, Value: s + e}
	}

	f.logger.Info("Прогноз построен методом %s на %d дней начиная с %s", method, opts.Days, start.Format(models.DayLayout))
	return result, nil
}

// roundValue округляет до целого, половины - к четному; -0 заменяется на 0
func roundValue(v float64) float64 {
	r := math.RoundToEven(v)
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
