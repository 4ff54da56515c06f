package models

import "encoding/json"

// RegionMetric 某大区某年的汇总
type RegionMetric struct {
	NomRegion       string  `json:"nom_region"`
	NomRegionNorm   string  `json:"nom_region_norm"`
	Annee           int     `json:"annee"`
	NbRegion        float64 `json:"nb_region"`
	PopRegion       float64 `json:"pop_region"`
	TauxRegion      float64 `json:"taux_region_pour_mille"`
	HasTaux         bool    `json:"-"`
	VariationRegion float64 `json:"variation_region"`
}

// Value 按名称取指标 ("taux" 或 "variation")
func (m RegionMetric) Value(metric string) float64 {
	if metric == MetricVariation {
		return m.VariationRegion
	}
	return m.TauxRegion
}

const (
	MetricTaux      = "taux"
	MetricVariation = "variation"
)

// MarshalJSON 人口为0时比率输出 null
func (m RegionMetric) MarshalJSON() ([]byte, error) {
	type plain RegionMetric
	out := struct {
		plain
		TauxRegion *float64 `json:"taux_region_pour_mille"`
	}{plain: plain(m)}
	if m.HasTaux {
		v := m.TauxRegion
		out.TauxRegion = &v
	}
	return json.Marshal(out)
}
