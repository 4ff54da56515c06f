package dashboard

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/processor"
)

const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 5 * vg.Inch
)

// Charts 生成PNG图表
type Charts struct {
	store *Store
}

func NewCharts(store *Store) *Charts {
	return &Charts{store: store}
}

func (ch *Charts) Register(g *echo.Group) {
	g.GET("/charts/series.png", ch.Series)
	g.GET("/charts/compare.png", ch.Compare)
	g.GET("/charts/distribution.png", ch.Distribution)
	g.GET("/charts/rolling.png", ch.Rolling)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func png(c echo.Context, p *plot.Plot) error {
	w, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return fail(c, err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return fail(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func addLine(p *plot.Plot, i int, name string, pts plotter.XYs) error {
	if len(pts) == 0 {
		return nil
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(i)
	line.Width = vg.Points(2)
	points.Color = plotutil.Color(i)
	points.Shape = plotutil.Shape(i)
	p.Add(line, points)
	p.Legend.Add(name, line, points)
	return nil
}

// Series 每个选中大区一条折线
func (ch *Charts) Series(c echo.Context) error {
	snap, err := snapshot(ch.store)
	if err != nil {
		return fail(c, err)
	}
	metric, err := metricParam(c)
	if err != nil {
		return fail(c, err)
	}

	title, yLabel := "Évolution du taux (‰) par région", "Taux (‰)"
	if metric == models.MetricVariation {
		title, yLabel = "Variation annuelle (‰) par région", "Variation (‰)"
	}
	p := newPlot(title, "Année", yLabel)
	for i, s := range processor.SeriesFor(snap.Metrics, regionsParam(c)) {
		var pts plotter.XYs
		for _, pt := range s.Points {
			switch {
			case metric == models.MetricVariation:
				pts = append(pts, plotter.XY{X: float64(pt.Annee), Y: pt.Variation})
			case pt.Taux != nil:
				pts = append(pts, plotter.XY{X: float64(pt.Annee), Y: *pt.Taux})
			}
		}
		if err := addLine(p, i, s.NomRegion, pts); err != nil {
			return fail(c, err)
		}
	}
	return png(c, p)
}

// Compare 某年各大区柱状图, 按比率排序
func (ch *Charts) Compare(c echo.Context) error {
	snap, err := snapshot(ch.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}

	var values plotter.Values
	var names []string
	for _, m := range processor.Compare(snap.Metrics, year) {
		if !m.HasTaux {
			continue
		}
		values = append(values, m.TauxRegion)
		names = append(names, m.NomRegion)
	}
	p := newPlot(fmt.Sprintf("Comparaison des régions (%d)", year), "Région", "Taux (‰)")
	if len(values) > 0 {
		bars, err := plotter.NewBarChart(values, vg.Points(18))
		if err != nil {
			return fail(c, err)
		}
		bars.Color = plotutil.Color(0)
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalX(names...)
		p.X.Tick.Label.Rotation = 0.6
		p.X.Tick.Label.XAlign = -1
	}
	return png(c, p)
}

// Distribution 每年一个箱线图
func (ch *Charts) Distribution(c echo.Context) error {
	snap, err := snapshot(ch.store)
	if err != nil {
		return fail(c, err)
	}

	byYear := map[int]plotter.Values{}
	for _, m := range snap.Metrics {
		if m.HasTaux {
			byYear[m.Annee] = append(byYear[m.Annee], m.TauxRegion)
		}
	}
	p := newPlot("Distribution du taux (‰) par année", "Année", "Taux (‰)")
	var names []string
	for i, y := range snap.Years {
		vals, ok := byYear[y]
		if !ok {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(len(names)), vals)
		if err != nil {
			return fail(c, err)
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
		names = append(names, fmt.Sprint(y))
	}
	if len(names) > 0 {
		p.NominalX(names...)
	}
	return png(c, p)
}

// Rolling 单个大区的比率及移动平均
func (ch *Charts) Rolling(c echo.Context) error {
	snap, err := snapshot(ch.store)
	if err != nil {
		return fail(c, err)
	}
	window, err := intParam(c, "window", 3)
	if err != nil {
		return fail(c, err)
	}
	region := regionParam(c, snap)
	rows, err := processor.Rolling(snap.Metrics, region, window)
	if err != nil {
		return fail(c, err)
	}

	var raw, smooth plotter.XYs
	for _, r := range rows {
		if r.Taux != nil {
			raw = append(raw, plotter.XY{X: float64(r.Annee), Y: *r.Taux})
		}
		if r.TauxLisse != nil {
			smooth = append(smooth, plotter.XY{X: float64(r.Annee), Y: *r.TauxLisse})
		}
	}
	p := newPlot("Tendance lissée — "+region, "Année", "Taux (‰)")
	if err := addLine(p, 0, "taux", raw); err != nil {
		return fail(c, err)
	}
	if err := addLine(p, 1, fmt.Sprintf("moyenne mobile (%d ans)", window), smooth); err != nil {
		return fail(c, err)
	}
	return png(c, p)
}
