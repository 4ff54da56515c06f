package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"ObservatoireDelinquance/src/models"
)

// ErrInvalidParam 参数超出允许范围
var ErrInvalidParam = errors.New("paramètre invalide")

// Others 合并后的"其他"类别
const Others = "Autres"

const (
	LevelDetail  = "detaille"
	LevelClasses = "classes"

	RankByTaux   = "taux"
	RankByNombre = "nombre"

	TopCommunesLimit = 20
)

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w : %s=%d (attendu %d..%d)", ErrInvalidParam, name, v, lo, hi)
	}
	return nil
}

// SeriesPoint 区域某年的值, 无比率时 Taux 为 nil
type SeriesPoint struct {
	Annee     int      `json:"annee"`
	Taux      *float64 `json:"taux_region_pour_mille"`
	Variation float64  `json:"variation_region"`
}

type RegionSeries struct {
	NomRegion string        `json:"nom_region"`
	Points    []SeriesPoint `json:"points"`
}

func taux(m models.RegionMetric) *float64 {
	if !m.HasTaux {
		return nil
	}
	v := m.TauxRegion
	return &v
}

// SeriesFor 选定区域的时间序列, 保持选择顺序; 未选择时取前三个区域
func SeriesFor(metrics []models.RegionMetric, regions []string) []RegionSeries {
	if len(regions) == 0 {
		all := Regions(metrics)
		if len(all) > 3 {
			all = all[:3]
		}
		regions = all
	}
	byRegion := map[string][]SeriesPoint{}
	for _, m := range metrics {
		byRegion[m.NomRegion] = append(byRegion[m.NomRegion], SeriesPoint{Annee: m.Annee, Taux: taux(m), Variation: m.VariationRegion})
	}
	out := make([]RegionSeries, 0, len(regions))
	for _, r := range regions {
		pts, ok := byRegion[r]
		if !ok {
			continue
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].Annee < pts[j].Annee })
		out = append(out, RegionSeries{NomRegion: r, Points: pts})
	}
	return out
}

// Compare 某年各区域, 比率降序; 无比率的排在最后
func Compare(metrics []models.RegionMetric, year int) []models.RegionMetric {
	out := MetricsForYear(metrics, year)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HasTaux != out[j].HasTaux {
			return out[i].HasTaux
		}
		if out[i].TauxRegion != out[j].TauxRegion {
			return out[i].TauxRegion > out[j].TauxRegion
		}
		return out[i].NomRegion < out[j].NomRegion
	})
	return out
}

// Heatmap 区域 × 年份, Values[i][j] 为 nil 表示缺失
type Heatmap struct {
	Metric  string       `json:"metric"`
	Years   []int        `json:"years"`
	Regions []string     `json:"regions"`
	Values  [][]*float64 `json:"values"`
}

// HeatmapFor 透视表, 只保留均值最高的 top 个区域 (5..25)
func HeatmapFor(metrics []models.RegionMetric, metric string, top int) (Heatmap, error) {
	if metric != models.MetricTaux && metric != models.MetricVariation {
		return Heatmap{}, fmt.Errorf("%w : metric=%q", ErrInvalidParam, metric)
	}
	if err := checkRange("top", top, 5, 25); err != nil {
		return Heatmap{}, err
	}

	yearSet := map[int]bool{}
	cells := map[string]map[int]float64{}
	for _, m := range metrics {
		yearSet[m.Annee] = true
		if metric == models.MetricTaux && !m.HasTaux {
			continue
		}
		if cells[m.NomRegion] == nil {
			cells[m.NomRegion] = map[int]float64{}
		}
		cells[m.NomRegion][m.Annee] = m.Value(metric)
	}

	type ranked struct {
		name string
		mean float64
	}
	var rows []ranked
	for _, r := range Regions(metrics) {
		vals := make([]float64, 0, len(cells[r]))
		for _, v := range cells[r] {
			vals = append(vals, v)
		}
		mean := math.NaN()
		if len(vals) > 0 {
			mean = stat.Mean(vals, nil)
		}
		rows = append(rows, ranked{r, mean})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].mean, rows[j].mean
		if math.IsNaN(a) || math.IsNaN(b) {
			return !math.IsNaN(a) && math.IsNaN(b)
		}
		return a > b
	})
	if len(rows) > top {
		rows = rows[:top]
	}

	h := Heatmap{Metric: metric}
	for y := range yearSet {
		h.Years = append(h.Years, y)
	}
	sort.Ints(h.Years)
	for _, row := range rows {
		h.Regions = append(h.Regions, row.name)
		line := make([]*float64, len(h.Years))
		for j, y := range h.Years {
			if v, ok := cells[row.name][y]; ok {
				v := v
				line[j] = &v
			}
		}
		h.Values = append(h.Values, line)
	}
	return h, nil
}

// BoxStats 一年内各区域比率的分布
type BoxStats struct {
	Annee        int       `json:"annee"`
	N            int       `json:"n"`
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers"`
}

// Distribution 每年一个箱线图, 离群点为超出 1.5 IQR 的值
func Distribution(metrics []models.RegionMetric) []BoxStats {
	byYear := map[int][]float64{}
	for _, m := range metrics {
		if m.HasTaux {
			byYear[m.Annee] = append(byYear[m.Annee], m.TauxRegion)
		}
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]BoxStats, 0, len(years))
	for _, y := range years {
		out = append(out, boxStats(y, byYear[y]))
	}
	return out
}

func boxStats(year int, values []float64) BoxStats {
	sort.Float64s(values)
	b := BoxStats{
		Annee:    year,
		N:        len(values),
		Min:      values[0],
		Max:      values[len(values)-1],
		Q1:       stat.Quantile(0.25, stat.LinInterp, values, nil),
		Median:   stat.Quantile(0.5, stat.LinInterp, values, nil),
		Q3:       stat.Quantile(0.75, stat.LinInterp, values, nil),
		Outliers: []float64{},
	}
	iqr := b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerWhisker, b.UpperWhisker = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo || v > hi {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		b.LowerWhisker = math.Min(b.LowerWhisker, v)
		b.UpperWhisker = math.Max(b.UpperWhisker, v)
	}
	if math.IsInf(b.LowerWhisker, 1) {
		b.LowerWhisker, b.UpperWhisker = b.Q1, b.Q3
	}
	return b
}

// RollingPoint 原始比率与移动平均
type RollingPoint struct {
	Annee     int      `json:"annee"`
	Taux      *float64 `json:"taux_region_pour_mille"`
	TauxLisse *float64 `json:"taux_lisse"`
}

// Rolling 区域比率的移动平均, 窗口 2..5 年, 窗口内至少一个值即可
func Rolling(metrics []models.RegionMetric, region string, window int) ([]RollingPoint, error) {
	if err := checkRange("window", window, 2, 5); err != nil {
		return nil, err
	}
	var rows []models.RegionMetric
	for _, m := range metrics {
		if m.NomRegion == region {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w : région inconnue %q", ErrInvalidParam, region)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Annee < rows[j].Annee })

	out := make([]RollingPoint, len(rows))
	for i, m := range rows {
		var sum float64
		var n int
		for j := max(0, i-window+1); j <= i; j++ {
			if rows[j].HasTaux {
				sum += rows[j].TauxRegion
				n++
			}
		}
		out[i] = RollingPoint{Annee: m.Annee, Taux: taux(m)}
		if n > 0 {
			v := sum / float64(n)
			out[i].TauxLisse = &v
		}
	}
	return out, nil
}

// Share 一个类别的案件数
type Share struct {
	Label string  `json:"label"`
	Nb    float64 `json:"nb"`
	Pct   float64 `json:"pct"`
}

type Breakdown struct {
	Year   int     `json:"annee"`
	Region string  `json:"region"`
	Level  string  `json:"level"`
	Rows   []Share `json:"rows"` // 前 top 个加 "Autres"
	Full   []Share `json:"full"`
}

func groupLabel(r models.Record, level string) string {
	if level == LevelClasses {
		return r.Categorie
	}
	return r.Indicateur
}

func checkLevel(level string) error {
	if level != LevelDetail && level != LevelClasses {
		return fmt.Errorf("%w : level=%q", ErrInvalidParam, level)
	}
	return nil
}

// AllRegions 表示不按区域过滤
func AllRegions(region string) bool {
	return region == "" || region == "Toutes"
}

func sortShares(shares []Share) {
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Nb != shares[j].Nb {
			return shares[i].Nb > shares[j].Nb
		}
		return shares[i].Label < shares[j].Label
	})
}

func withPct(shares []Share) []Share {
	var total float64
	for _, s := range shares {
		total += s.Nb
	}
	for i := range shares {
		if total > 0 {
			shares[i].Pct = 100 * shares[i].Nb / total
		}
	}
	return shares
}

// BreakdownFor 某年 (可选区域) 按详细指标或五大类汇总案件数, 前 top (5..25) 个之外合并为 "Autres"
func BreakdownFor(records []models.Record, year int, region, level string, top int) (Breakdown, error) {
	if err := checkLevel(level); err != nil {
		return Breakdown{}, err
	}
	if err := checkRange("top", top, 5, 25); err != nil {
		return Breakdown{}, err
	}

	sums := map[string]float64{}
	for _, r := range records {
		if r.Annee != year || (!AllRegions(region) && r.NomRegion != region) {
			continue
		}
		sums[groupLabel(r, level)] += r.Nombre
	}
	full := make([]Share, 0, len(sums))
	for label, nb := range sums {
		full = append(full, Share{Label: label, Nb: nb})
	}
	sortShares(full)

	rows := append([]Share(nil), full...)
	if len(rows) > top {
		var rest float64
		for _, s := range rows[top:] {
			rest += s.Nb
		}
		rows = append(rows[:top:top], Share{Label: Others, Nb: rest})
	}
	return Breakdown{Year: year, Region: region, Level: level, Rows: withPct(rows), Full: withPct(full)}, nil
}

// CompositionPoint 某年某类别的案件数
type CompositionPoint struct {
	Annee int     `json:"annee"`
	Label string  `json:"label"`
	Nb    float64 `json:"nb"`
}

// CompositionFor 每年的类别构成; 详细模式只保留总量前 topK (3..12) 个指标, 其余为 "Autres"
func CompositionFor(records []models.Record, region, level string, topK int) ([]CompositionPoint, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	if level == LevelDetail {
		if err := checkRange("top", topK, 3, 12); err != nil {
			return nil, err
		}
	}

	type key struct {
		annee int
		label string
	}
	sums := map[key]float64{}
	totals := map[string]float64{}
	for _, r := range records {
		if !AllRegions(region) && r.NomRegion != region {
			continue
		}
		label := groupLabel(r, level)
		sums[key{r.Annee, label}] += r.Nombre
		totals[label] += r.Nombre
	}

	if level == LevelDetail {
		ranked := make([]Share, 0, len(totals))
		for label, nb := range totals {
			ranked = append(ranked, Share{Label: label, Nb: nb})
		}
		sortShares(ranked)
		keep := map[string]bool{}
		for i := 0; i < len(ranked) && i < topK; i++ {
			keep[ranked[i].Label] = true
		}
		merged := map[key]float64{}
		for k, nb := range sums {
			if !keep[k.label] {
				k.label = Others
			}
			merged[k] += nb
		}
		sums = merged
	}

	out := make([]CompositionPoint, 0, len(sums))
	for k, nb := range sums {
		out = append(out, CompositionPoint{Annee: k.annee, Label: k.label, Nb: nb})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Annee != out[j].Annee {
			return out[i].Annee < out[j].Annee
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// CommuneRank 区域内一个市镇的汇总
type CommuneRank struct {
	Codgeo      string  `json:"CODGEO_2025"`
	NomCommune  string  `json:"nom_commune"`
	NbCommune   float64 `json:"nb_commune"`
	PopCommune  float64 `json:"pop_commune"`
	TauxCommune float64 `json:"taux_commune_pour_mille"`
}

// TopCommunes 某区域某年的前 20 个市镇: 人口取各行最大值, 只保留人口 > 0, 按比率或案件数降序
func TopCommunes(records []models.Record, year int, region, by string) ([]CommuneRank, error) {
	if by != RankByTaux && by != RankByNombre {
		return nil, fmt.Errorf("%w : by=%q", ErrInvalidParam, by)
	}
	agg := map[string]*CommuneRank{}
	var order []string
	for _, r := range records {
		if r.Annee != year || r.NomRegion != region {
			continue
		}
		c, ok := agg[r.Codgeo]
		if !ok {
			c = &CommuneRank{Codgeo: r.Codgeo, NomCommune: r.NomCommune}
			agg[r.Codgeo] = c
			order = append(order, r.Codgeo)
		}
		c.NbCommune += r.Nombre
		c.PopCommune = math.Max(c.PopCommune, r.InseePop)
	}

	out := make([]CommuneRank, 0, len(agg))
	for _, code := range order {
		c := agg[code]
		if c.PopCommune <= 0 {
			continue
		}
		c.TauxCommune, _ = models.RatePerThousand(c.NbCommune, c.PopCommune)
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].TauxCommune, out[j].TauxCommune
		if by == RankByNombre {
			a, b = out[i].NbCommune, out[j].NbCommune
		}
		if a != b {
			return a > b
		}
		return out[i].NomCommune < out[j].NomCommune
	})
	if len(out) > TopCommunesLimit {
		out = out[:TopCommunesLimit]
	}
	return out, nil
}
