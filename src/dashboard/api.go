package dashboard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ObservatoireDelinquance/src/datasource/geo"
	"ObservatoireDelinquance/src/processor"
)

// API /api/v1 下的JSON接口
type API struct {
	store *Store
}

func NewAPI(store *Store) *API {
	return &API{store: store}
}

func (a *API) Register(g *echo.Group) {
	g.GET("/overview", a.GetOverview)
	g.GET("/years", a.GetYears)
	g.GET("/regions", a.GetRegions)
	g.GET("/regions/metrics", a.GetRegionMetrics)

	g.GET("/map", a.GetMap)
	g.GET("/map/diagnostics", a.GetDiagnostics)
	g.GET("/map/shapes", a.GetShapes)

	g.GET("/analytics/series", a.GetSeries)
	g.GET("/analytics/compare", a.GetCompare)
	g.GET("/analytics/heatmap", a.GetHeatmap)
	g.GET("/analytics/distribution", a.GetDistribution)
	g.GET("/analytics/rolling", a.GetRolling)
	g.GET("/analytics/breakdown", a.GetBreakdown)
	g.GET("/analytics/composition", a.GetComposition)

	g.GET("/communes/top", a.GetTopCommunes)
	g.GET("/communes/search", a.SearchCommunes)
	g.GET("/communes/:code", a.GetCommune)
}

func (a *API) GetOverview(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"overview":  snap.Overview,
		"source":    snap.Source,
		"loaded_at": snap.LoadedAt.Format(time.RFC3339),
	})
}

func (a *API) GetYears(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap.Years)
}

func (a *API) GetRegions(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap.Regions)
}

// GetRegionMetrics 返回全部大区-年份, 带 ?year= 时只返回该年
func (a *API) GetRegionMetrics(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	if c.QueryParam("year") == "" {
		return c.JSON(http.StatusOK, snap.Metrics)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, processor.MetricsForYear(snap.Metrics, year))
}

// MapResponse 某年的分级统计地图
type MapResponse struct {
	Year    int         `json:"annee"`
	Metric  string      `json:"metric"`
	Key     string      `json:"geojson_key"`
	Bounds  []float64   `json:"bounds"` // 经度最小, 纬度最小, 经度最大, 纬度最大
	GeoJSON interface{} `json:"geojson"`
	Table   interface{} `json:"table"`
}

func (a *API) GetMap(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}
	metric, err := metricParam(c)
	if err != nil {
		return fail(c, err)
	}

	metrics := processor.MetricsForYear(snap.Metrics, year)
	fc, bounds := geo.Join(snap.Geo, metrics, metric)
	resp := MapResponse{
		Year:    year,
		Metric:  metric,
		Key:     snap.GeoKey,
		GeoJSON: fc,
		Table:   processor.Compare(snap.Metrics, year),
	}
	if bounds != nil {
		resp.Bounds = []float64{bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1)}
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *API) GetDiagnostics(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, geo.MatchingDiagnostics(processor.MetricsForYear(snap.Metrics, year), snap.Geo))
}

func (a *API) GetShapes(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, geo.Shapes(snap.Geo, snap.GeoKey))
}

func (a *API) GetSeries(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, processor.SeriesFor(snap.Metrics, regionsParam(c)))
}

func (a *API) GetCompare(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, processor.Compare(snap.Metrics, year))
}

func (a *API) GetHeatmap(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	metric, err := metricParam(c)
	if err != nil {
		return fail(c, err)
	}
	top, err := intParam(c, "top", 13)
	if err != nil {
		return fail(c, err)
	}
	h, err := processor.HeatmapFor(snap.Metrics, metric, top)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h)
}

func (a *API) GetDistribution(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, processor.Distribution(snap.Metrics))
}

func (a *API) GetRolling(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	window, err := intParam(c, "window", 3)
	if err != nil {
		return fail(c, err)
	}
	pts, err := processor.Rolling(snap.Metrics, regionParam(c, snap), window)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, pts)
}

func (a *API) GetBreakdown(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}
	top, err := intParam(c, "top", 10)
	if err != nil {
		return fail(c, err)
	}
	b, err := processor.BreakdownFor(snap.Records, year, c.QueryParam("region"), stringParam(c, "level", processor.LevelDetail), top)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (a *API) GetComposition(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	top, err := intParam(c, "top", 6)
	if err != nil {
		return fail(c, err)
	}
	pts, err := processor.CompositionFor(snap.Records, c.QueryParam("region"), stringParam(c, "level", processor.LevelDetail), top)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, pts)
}

func (a *API) GetTopCommunes(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}
	top, err := processor.TopCommunes(snap.Records, year, regionParam(c, snap), stringParam(c, "by", processor.RankByTaux))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, top)
}

// SearchCommunes 无匹配时不报错, 返回空结果和可能的建议
func (a *API) SearchCommunes(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap.Index.Search(c.QueryParam("q")))
}

func (a *API) GetCommune(c echo.Context) error {
	snap, err := snapshot(a.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := intParam(c, "year", 0)
	if err != nil {
		return fail(c, err)
	}
	sheet, err := snap.Index.Sheet(c.Param("code"), year)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sheet)
}
