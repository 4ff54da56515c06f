package dashboard

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"ObservatoireDelinquance/src/datasource/geo"
	"ObservatoireDelinquance/src/processor"
	"ObservatoireDelinquance/src/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export 导出大区表格为工作簿
type Export struct {
	store *Store
}

func NewExport(store *Store) *Export {
	return &Export{store: store}
}

func (x *Export) Register(g *echo.Group) {
	g.GET("/export/regions.xlsx", x.Regions)
}

// Regions 导出全部大区-年份; 另按 ?year= (默认最新年) 导出各大区比率最高的市镇和匹配诊断
func (x *Export) Regions(c echo.Context) error {
	snap, err := snapshot(x.store)
	if err != nil {
		return fail(c, err)
	}
	year, err := yearParam(c, snap)
	if err != nil {
		return fail(c, err)
	}

	metrics := utils.Table{
		Sheet:  "Régions",
		Header: []string{"nom_region", "annee", "nb_region", "pop_region", "taux_region_pour_mille", "variation_region"},
	}
	for _, m := range snap.Metrics {
		var taux interface{}
		if m.HasTaux {
			taux = m.TauxRegion
		}
		metrics.Rows = append(metrics.Rows, []interface{}{m.NomRegion, m.Annee, m.NbRegion, m.PopRegion, taux, m.VariationRegion})
	}

	top := utils.Table{
		Sheet:  fmt.Sprintf("Top communes %d", year),
		Header: []string{"nom_region", "CODGEO_2025", "nom_commune", "nb_commune", "pop_commune", "taux_commune_pour_mille"},
	}
	for _, region := range snap.Regions {
		ranks, err := processor.TopCommunes(snap.Records, year, region, processor.RankByTaux)
		if err != nil {
			return fail(c, err)
		}
		for _, r := range ranks {
			top.Rows = append(top.Rows, []interface{}{region, r.Codgeo, r.NomCommune, r.NbCommune, r.PopCommune, r.TauxCommune})
		}
	}

	d := geo.MatchingDiagnostics(processor.MetricsForYear(snap.Metrics, year), snap.Geo)
	diag := utils.Table{Sheet: "Diagnostic", Header: []string{"cote", "region_norm"}}
	for _, r := range d.MissingInGeo {
		diag.Rows = append(diag.Rows, []interface{}{"absente du GeoJSON", r})
	}
	for _, r := range d.MissingInData {
		diag.Rows = append(diag.Rows, []interface{}{"absente du CSV", r})
	}

	var buf bytes.Buffer
	if err := utils.WriteExcel(&buf, metrics, top, diag); err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="regions.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
