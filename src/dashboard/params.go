package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/processor"
)

var errNotLoaded = errors.New("données non chargées")

// fail 把业务错误映射为HTTP状态码
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, processor.ErrInvalidParam):
		status = http.StatusBadRequest
	case errors.Is(err, processor.ErrNoCommune):
		status = http.StatusNotFound
	case errors.Is(err, errNotLoaded):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func snapshot(store *Store) (*Snapshot, error) {
	snap := store.Snapshot()
	if snap == nil {
		return nil, errNotLoaded
	}
	return snap, nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w : %s=%q", processor.ErrInvalidParam, name, raw)
	}
	return v, nil
}

// yearParam 默认最新年份, 无数据的年份报错
func yearParam(c echo.Context, snap *Snapshot) (int, error) {
	year, err := intParam(c, "year", snap.LatestYear())
	if err != nil {
		return 0, err
	}
	for _, y := range snap.Years {
		if y == year {
			return year, nil
		}
	}
	return 0, fmt.Errorf("%w : year=%d absente des données", processor.ErrInvalidParam, year)
}

func metricParam(c echo.Context) (string, error) {
	switch m := c.QueryParam("metric"); m {
	case "":
		return models.MetricTaux, nil
	case models.MetricTaux, models.MetricVariation:
		return m, nil
	default:
		return "", fmt.Errorf("%w : metric=%q", processor.ErrInvalidParam, m)
	}
}

// regionsParam 支持 ?regions=a,b 和重复参数
func regionsParam(c echo.Context) []string {
	var out []string
	for _, v := range c.QueryParams()["regions"] {
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
	}
	return out
}

// regionParam 默认第一个大区
func regionParam(c echo.Context, snap *Snapshot) string {
	if r := strings.TrimSpace(c.QueryParam("region")); r != "" {
		return r
	}
	if len(snap.Regions) > 0 {
		return snap.Regions[0]
	}
	return ""
}

func stringParam(c echo.Context, name, def string) string {
	if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
		return v
	}
	return def
}
