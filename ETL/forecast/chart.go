package forecast

import (
	"bytes"
	"image/color"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// ChartContentType - тип содержимого графика прогноза
const ChartContentType = "image/png"

var (
	shelvedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	expiredColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	netColor     = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

type series struct {
	name   string
	xys    plotter.XYs
	color  color.Color
	dashed bool
}

// RenderChart строит PNG-график истории и прогноза
func RenderChart(title string, history []models.ProcessedRecord, result *models.ForecastResult) ([]byte, error) {
	if result == nil {
		return nil, errors.New("нет прогноза для построения графика")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Дата"
	p.Y.Label.Text = "Количество"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	histShelved := make(plotter.XYs, len(history))
	histExpired := make(plotter.XYs, len(history))
	for i, r := range history {
		x := unixDay(r.BillingDate.Time)
		histShelved[i] = plotter.XY{X: x, Y: r.ShelvedSum}
		histExpired[i] = plotter.XY{X: x, Y: r.ExpiredSum}
	}

	fShelved := make(plotter.XYs, len(result.ForecastedShelved))
	for i, v := range result.ForecastedShelved {
		fShelved[i] = plotter.XY{X: unixDay(v.Date.Time), Y: v.Value}
	}
	fExpired := make(plotter.XYs, len(result.ForecastedExpired))
	for i, v := range result.ForecastedExpired {
		fExpired[i] = plotter.XY{X: unixDay(v.Date.Time), Y: v.Value}
	}
	fNet := make(plotter.XYs, len(result.ForecastedNet))
	for i, v := range result.ForecastedNet {
		fNet[i] = plotter.XY{X: unixDay(v.Date.Time), Y: v.Value}
	}

	all := []series{
		{name: "shelved_sum", xys: histShelved, color: shelvedColor},
		{name: "expired_sum", xys: histExpired, color: expiredColor},
		{name: "forecast_shelved_sum", xys: fShelved, color: shelvedColor, dashed: true},
		{name: "forecast_expired_sum", xys: fExpired, color: expiredColor, dashed: true},
		{name: "forecast_net", xys: fNet, color: netColor, dashed: true},
	}
	for _, s := range all {
		if len(s.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, errors.Wrapf(err, "линия %s", s.name)
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		if s.dashed {
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	w, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, errors.Wrap(err, "не удалось подготовить график")
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "не удалось записать график")
	}
	return buf.Bytes(), nil
}

func unixDay(t time.Time) float64 {
	return float64(t.Unix())
}
