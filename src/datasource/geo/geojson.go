// Package geo 读取大区边界文件并与大区指标合并
package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"ObservatoireDelinquance/src/datasource/file"
	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/utils"
)

// NormKey 合并时给每个要素添加的属性名
const NormKey = "region_norm"

// DefaultKeys 依次尝试的大区名属性
var DefaultKeys = []string{
	"nom", "Nom", "NOM",
	"name", "Name", "NAME",
	"region", "REGION",
	"libelle", "LIBELLE",
	"nom_region", "NOM_REGION",
}

// LoadGeoJSON 从文件读取 FeatureCollection
func LoadGeoJSON(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w : %s\n(téléchargez le fichier puis placez-le dans le dossier Data/)", file.ErrDataFileMissing, path)
	}
	if err != nil {
		return nil, err
	}
	return ParseGeoJSON(data)
}

func ParseGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}
	return &fc, nil
}

// GuessRegionKey 找出大区名所在属性: 先看第一个要素上的候选属性,
// 其次是第一个非空字符串属性, 再次是第一个属性, 都没有时用 "nom"
func GuessRegionKey(fc *geojson.FeatureCollection, candidates []string) string {
	if fc == nil || len(fc.Features) == 0 {
		return "nom"
	}
	if len(candidates) == 0 {
		candidates = DefaultKeys
	}

	props := fc.Features[0].Properties
	for _, k := range candidates {
		if _, ok := props[k]; ok {
			return k
		}
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := props[k].(string); ok && strings.TrimSpace(s) != "" {
			return k
		}
	}
	if len(keys) > 0 {
		return keys[0]
	}
	return "nom"
}

// WithNormNames 返回带 properties[NormKey] 的副本及识别出的属性名, 几何数据共享
func WithNormNames(fc *geojson.FeatureCollection, candidates []string) (*geojson.FeatureCollection, string) {
	if fc == nil {
		fc = &geojson.FeatureCollection{}
	}
	key := GuessRegionKey(fc, candidates)
	out := &geojson.FeatureCollection{BBox: fc.BBox}

	for _, feat := range fc.Features {
		props := make(map[string]interface{}, len(feat.Properties)+1)
		for k, v := range feat.Properties {
			props[k] = v
		}
		name, _ := props[key].(string)
		props[NormKey] = utils.NormStr(name)

		out.Features = append(out.Features, &geojson.Feature{
			ID:         feat.ID,
			Geometry:   feat.Geometry,
			BBox:       feat.BBox,
			Properties: props,
		})
	}
	return out, key
}

func normName(feat *geojson.Feature) string {
	s, _ := feat.Properties[NormKey].(string)
	return s
}

// Shape 单个边界的概要
type Shape struct {
	Name     string     `json:"name"`
	Norm     string     `json:"region_norm"`
	Centroid [2]float64 `json:"centroid"` // 经度, 纬度
	Area     float64    `json:"area"`     // 平方度
}

// Shapes 列出规范化后的边界
func Shapes(fc *geojson.FeatureCollection, key string) []Shape {
	var shapes []Shape
	for _, feat := range fc.Features {
		if feat.Geometry == nil {
			continue
		}
		name, _ := feat.Properties[key].(string)
		s := Shape{Name: name, Norm: normName(feat), Area: area(feat.Geometry)}
		if c, err := xy.Centroid(feat.Geometry); err == nil && len(c) >= 2 {
			s.Centroid = [2]float64{c[0], c[1]}
		}
		shapes = append(shapes, s)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].Norm < shapes[j].Norm })
	return shapes
}

func area(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.Area()
	case *geom.MultiPolygon:
		return t.Area()
	}
	return 0
}

// Diagnostics CSV 与 GeoJSON 的匹配情况
type Diagnostics struct {
	NRegionsData  int      `json:"n_regions_data"`
	NRegionsGeo   int      `json:"n_regions_geo"`
	MissingInGeo  []string `json:"missing_in_geo"`
	MissingInData []string `json:"missing_in_data"`
}

// MatchingDiagnostics 比较两边规范化后的大区名
func MatchingDiagnostics(metrics []models.RegionMetric, fc *geojson.FeatureCollection) Diagnostics {
	geoRegions := map[string]bool{}
	for _, feat := range fc.Features {
		if n := normName(feat); n != "" {
			geoRegions[n] = true
		}
	}
	dataRegions := map[string]bool{}
	for _, m := range metrics {
		if m.NomRegionNorm != "" {
			dataRegions[m.NomRegionNorm] = true
		}
	}

	d := Diagnostics{
		NRegionsData:  len(dataRegions),
		NRegionsGeo:   len(geoRegions),
		MissingInGeo:  []string{},
		MissingInData: []string{},
	}
	for r := range dataRegions {
		if !geoRegions[r] {
			d.MissingInGeo = append(d.MissingInGeo, r)
		}
	}
	for r := range geoRegions {
		if !dataRegions[r] {
			d.MissingInData = append(d.MissingInData, r)
		}
	}
	sort.Strings(d.MissingInGeo)
	sort.Strings(d.MissingInData)
	return d
}

// Join 按 NormKey 把某年指标合并到 fc 的副本并按指标着色;
// bounds 只覆盖匹配上的要素, 全部未匹配时为 nil
func Join(fc *geojson.FeatureCollection, metrics []models.RegionMetric, metric string) (*geojson.FeatureCollection, *geom.Bounds) {
	byNorm := make(map[string]models.RegionMetric, len(metrics))
	values := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		byNorm[m.NomRegionNorm] = m
		if metric == models.MetricVariation || m.HasTaux {
			values = append(values, m.Value(metric))
		}
	}
	scale := NewScale(metric, values)

	out := &geojson.FeatureCollection{}
	var bounds *geom.Bounds
	for _, feat := range fc.Features {
		props := make(map[string]interface{}, len(feat.Properties)+8)
		for k, v := range feat.Properties {
			props[k] = v
		}

		props["fill"] = NoDataColor
		if m, ok := byNorm[normName(feat)]; ok {
			props["nom_region"] = m.NomRegion
			props["annee"] = m.Annee
			props["nb_region"] = m.NbRegion
			props["pop_region"] = m.PopRegion
			props["variation_region"] = m.VariationRegion
			if m.HasTaux {
				props["taux_region_pour_mille"] = m.TauxRegion
			}
			if metric == models.MetricVariation || m.HasTaux {
				v := m.Value(metric)
				props["value"] = v
				props["fill"] = scale.Hex(v)
			}
			if feat.Geometry != nil {
				if bounds == nil {
					bounds = geom.NewBounds(geom.XY)
				}
				bounds.Extend(feat.Geometry)
			}
		}

		out.Features = append(out.Features, &geojson.Feature{
			ID:         feat.ID,
			Geometry:   feat.Geometry,
			Properties: props,
		})
	}
	return out, bounds
}
