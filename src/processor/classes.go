package processor

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"ObservatoireDelinquance/src/config"
	"ObservatoireDelinquance/src/models"
)

const (
	NiveauFaible = "Faible"
	NiveauMoyen  = "Moyen"
	NiveauEleve  = "Élevé"
)

// SizeClass 人口所在的分档; Upper 为 0 的分档没有上限
func SizeClass(pop float64, brackets []config.SizeBracket) string {
	for _, b := range brackets {
		if b.Upper <= 0 || pop < b.Upper {
			return b.Label
		}
	}
	if len(brackets) > 0 {
		return brackets[len(brackets)-1].Label
	}
	return ""
}

// Terciles 经验分位数 1/3 与 2/3
func Terciles(values []float64) (q1, q2 float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(1.0/3, stat.Empirical, sorted, nil),
		stat.Quantile(2.0/3, stat.Empirical, sorted, nil)
}

// Level 按三分位给出等级
func Level(v, q1, q2 float64) string {
	switch {
	case v <= q1:
		return NiveauFaible
	case v <= q2:
		return NiveauMoyen
	default:
		return NiveauEleve
	}
}

type indicatorYear struct {
	indicateur string
	annee      int
}

// AssignLevels 在同一 (指标, 年份) 内按比率三分位设置 Niveau
func AssignLevels(records []models.Record) {
	groups := map[indicatorYear][]int{}
	for i, r := range records {
		k := indicatorYear{r.Indicateur, r.Annee}
		groups[k] = append(groups[k], i)
	}
	for _, idx := range groups {
		values := make([]float64, len(idx))
		for j, i := range idx {
			values[j] = records[i].Taux
		}
		q1, q2 := Terciles(values)
		for _, i := range idx {
			records[i].Niveau = Level(records[i].Taux, q1, q2)
		}
	}
}

// AssignSizes 设置 TailleCommune
func AssignSizes(records []models.Record, brackets []config.SizeBracket) {
	for i := range records {
		records[i].TailleCommune = SizeClass(records[i].InseePop, brackets)
	}
}

type communeIndicator struct {
	codgeo     string
	indicateur string
}

// AssignVariations 同一市镇同一指标按年份排序, 与上一可用年份的比率差; 第一年为 0
func AssignVariations(records []models.Record) {
	groups := map[communeIndicator][]int{}
	for i, r := range records {
		k := communeIndicator{r.Codgeo, r.Indicateur}
		groups[k] = append(groups[k], i)
	}
	for _, idx := range groups {
		sort.SliceStable(idx, func(a, b int) bool { return records[idx[a]].Annee < records[idx[b]].Annee })
		for j, i := range idx {
			if j == 0 {
				records[i].Variation = 0
				continue
			}
			records[i].Variation = records[i].Taux - records[idx[j-1]].Taux
		}
	}
}
