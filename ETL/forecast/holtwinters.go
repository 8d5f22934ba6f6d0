package forecast

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/optimize"
)

// HoltWinters - модель экспоненциального сглаживания с аддитивным трендом
// и аддитивной сезонностью
type HoltWinters struct {
	Alpha  float64
	Beta   float64
	Gamma  float64
	Period int
	SSE    float64

	level    float64
	trend    float64
	seasonal []float64
	n        int
}

// FitHoltWinters оценивает alpha, beta и gamma минимизацией суммы квадратов
// ошибок прогноза на один шаг (Nelder-Mead). Нужно не меньше 2*period наблюдений.
func FitHoltWinters(y []float64, period int) (*HoltWinters, error) {
	if period < 2 {
		return nil, errors.Errorf("сезонный период должен быть не меньше 2, получено: %d", period)
	}
	if len(y) < 2*period {
		return nil, errors.Wrapf(ErrInsufficientData,
			"для модели Хольта-Винтерса нужно минимум %d наблюдений, получено: %d", 2*period, len(y))
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			m := smooth(y, period, sigmoid(x[0]), sigmoid(x[1]), sigmoid(x[2]))
			return m.SSE
		},
	}
	init := []float64{logit(0.3), logit(0.1), logit(0.1)}
	settings := &optimize.Settings{
		MajorIterations: 2000,
		FuncEvaluations: 10000,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Iterations: 200},
	}

	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil && result == nil {
		return nil, errors.Wrap(err, "не удалось подобрать параметры модели")
	}

	x := init
	if result != nil && !math.IsNaN(result.F) && !math.IsInf(result.F, 0) {
		x = result.X
	}
	return smooth(y, period, sigmoid(x[0]), sigmoid(x[1]), sigmoid(x[2])), nil
}

// smooth прогоняет рекурсию Хольта-Винтерса с заданными параметрами
func smooth(y []float64, period int, alpha, beta, gamma float64) *HoltWinters {
	level := mean(y[:period])
	trend := (mean(y[period:2*period]) - level) / float64(period)
	seasonal := make([]float64, period)
	for i := range seasonal {
		seasonal[i] = y[i] - level
	}

	var sse float64
	for t, v := range y {
		s := seasonal[t%period]
		e := v - (level + trend + s)
		sse += e * e

		prev := level
		level = alpha*(v-s) + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
		seasonal[t%period] = gamma*(v-level) + (1-gamma)*s
	}

	return &HoltWinters{
		Alpha:    alpha,
		Beta:     beta,
		Gamma:    gamma,
		Period:   period,
		SSE:      sse,
		level:    level,
		trend:    trend,
		seasonal: seasonal,
		n:        len(y),
	}
}

// Forecast возвращает прогноз на steps шагов после последнего наблюдения
func (m *HoltWinters) Forecast(steps int) []float64 {
	out := make([]float64, steps)
	for h := 1; h <= steps; h++ {
		out[h-1] = m.level + float64(h)*m.trend + m.seasonal[(m.n+h-1)%m.Period]
	}
	return out
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
