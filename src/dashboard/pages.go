package dashboard

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ObservatoireDelinquance/src/datasource/geo"
	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/processor"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	mapWidth  = 640
	mapHeight = 600
)

// Pages 渲染三个HTML页面
type Pages struct {
	store *Store
	tmpl  map[string]*template.Template
}

var funcs = template.FuncMap{
	"num": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"deref": func(v *float64) string {
		if v == nil {
			return "–"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"join": strings.Join,
}

func NewPages(store *Store) (*Pages, error) {
	p := &Pages{store: store, tmpl: map[string]*template.Template{}}
	for _, name := range []string{"index.html", "carte.html", "tableau.html"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p.tmpl[name] = t
	}
	return p, nil
}

func (p *Pages) Register(e *echo.Echo) {
	e.GET("/", p.Index)
	e.GET("/carte", p.Carte)
	e.GET("/tableau", p.Tableau)
}

func (p *Pages) render(c echo.Context, status int, name string, data map[string]interface{}) error {
	var buf strings.Builder
	if err := p.tmpl[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	return c.HTML(status, buf.String())
}

// renderError 在页面中显示错误而不是返回JSON
func (p *Pages) renderError(c echo.Context, name string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, processor.ErrInvalidParam):
		status = http.StatusBadRequest
	case errors.Is(err, errNotLoaded):
		status = http.StatusServiceUnavailable
	}
	return p.render(c, status, name, map[string]interface{}{
		"Page":  strings.TrimSuffix(name, ".html"),
		"Error": err.Error(),
	})
}

func (p *Pages) Index(c echo.Context) error {
	snap, err := snapshot(p.store)
	if err != nil {
		return p.renderError(c, "index.html", err)
	}
	return p.render(c, http.StatusOK, "index.html", map[string]interface{}{
		"Page":     "index",
		"Overview": snap.Overview,
		"Source":   snap.Source,
		"LoadedAt": snap.LoadedAt.Format("2006-01-02 15:04:05"),
	})
}

func (p *Pages) Carte(c echo.Context) error {
	snap, err := snapshot(p.store)
	if err != nil {
		return p.renderError(c, "carte.html", err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return p.renderError(c, "carte.html", err)
	}
	metric, err := metricParam(c)
	if err != nil {
		return p.renderError(c, "carte.html", err)
	}

	yearMetrics := processor.MetricsForYear(snap.Metrics, year)
	fc, _ := geo.Join(snap.Geo, yearMetrics, metric)
	return p.render(c, http.StatusOK, "carte.html", map[string]interface{}{
		"Page":        "carte",
		"Year":        year,
		"Years":       snap.Years,
		"MinYear":     snap.Years[0],
		"Metric":      metric,
		"IsVariation": metric == models.MetricVariation,
		"Paths":       geo.SVGPaths(fc, snap.GeoKey, mapWidth, mapHeight),
		"Width":       mapWidth,
		"Height":      mapHeight,
		"Table":       processor.Compare(snap.Metrics, year),
		"Diagnostics": geo.MatchingDiagnostics(yearMetrics, snap.Geo),
	})
}

func (p *Pages) Tableau(c echo.Context) error {
	snap, err := snapshot(p.store)
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}
	metric, err := metricParam(c)
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}
	top, err := intParam(c, "top", 13)
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}
	heat, err := processor.HeatmapFor(snap.Metrics, metric, top)
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}
	level := stringParam(c, "level", processor.LevelDetail)
	breakdown, err := processor.BreakdownFor(snap.Records, year, c.QueryParam("region"), level, 10)
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}
	region := regionParam(c, snap)
	communes, err := processor.TopCommunes(snap.Records, year, region, stringParam(c, "by", processor.RankByTaux))
	if err != nil {
		return p.renderError(c, "tableau.html", err)
	}

	data := map[string]interface{}{
		"Page":      "tableau",
		"Year":      year,
		"Years":     snap.Years,
		"Regions":   snap.Regions,
		"Region":    region,
		"Level":     level,
		"Metric":    metric,
		"Selected":  strings.Join(regionsParam(c), ","),
		"Heatmap":   heatmapRows(heat),
		"HeatYears": heat.Years,
		"Breakdown": breakdown,
		"Communes":  communes,
		"Query":     c.QueryParam("q"),
	}

	if _, ok := c.QueryParams()["q"]; ok {
		data["Search"] = snap.Index.Search(c.QueryParam("q"))
	}
	if code := c.QueryParam("code"); code != "" {
		// sheet_year 优先, 其次是显式的 year, 都没有时取该市镇最近一年
		def := 0
		if c.QueryParam("year") != "" {
			def = year
		}
		sheet, err := communeSheet(c, snap, code, def)
		if err != nil {
			data["SheetError"] = err.Error()
		} else {
			data["Sheet"] = sheet
		}
	}
	return p.render(c, http.StatusOK, "tableau.html", data)
}

func communeSheet(c echo.Context, snap *Snapshot, code string, def int) (processor.CommuneSheet, error) {
	year, err := intParam(c, "sheet_year", def)
	if err != nil {
		return processor.CommuneSheet{}, err
	}
	return snap.Index.Sheet(code, year)
}

type heatCell struct {
	Value string
	Fill  string
}

type heatRow struct {
	Region string
	Cells  []heatCell
}

func heatmapRows(h processor.Heatmap) []heatRow {
	var values []float64
	for _, line := range h.Values {
		for _, v := range line {
			if v != nil {
				values = append(values, *v)
			}
		}
	}
	scale := geo.NewScale(h.Metric, values)

	rows := make([]heatRow, len(h.Regions))
	for i, r := range h.Regions {
		rows[i].Region = r
		for _, v := range h.Values[i] {
			cell := heatCell{Value: "–", Fill: geo.NoDataColor}
			if v != nil {
				cell = heatCell{Value: fmt.Sprintf("%.2f", *v), Fill: scale.Hex(*v)}
			}
			rows[i].Cells = append(rows[i].Cells, cell)
		}
	}
	return rows
}
