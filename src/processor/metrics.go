package processor

import (
	"sort"

	"ObservatoireDelinquance/src/models"
)

type regionYear struct {
	region string
	norm   string
	annee  int
}

// BuildRegionMetrics 按 (区域, 年份) 汇总: 案件数与人口求和, 比率 = 1000*nb/pop;
// 变化量为与该区域上一可用年份的差, 第一年为 0. 结果按区域、年份排序
func BuildRegionMetrics(records []models.Record) []models.RegionMetric {
	agg := map[regionYear]*models.RegionMetric{}
	for _, r := range records {
		if r.NomRegion == "" {
			continue
		}
		k := regionYear{r.NomRegion, r.NomRegionNorm, r.Annee}
		m, ok := agg[k]
		if !ok {
			m = &models.RegionMetric{NomRegion: r.NomRegion, NomRegionNorm: r.NomRegionNorm, Annee: r.Annee}
			agg[k] = m
		}
		m.NbRegion += r.Nombre
		m.PopRegion += r.InseePop
	}

	metrics := make([]models.RegionMetric, 0, len(agg))
	for _, m := range agg {
		m.TauxRegion, m.HasTaux = models.RatePerThousand(m.NbRegion, m.PopRegion)
		metrics = append(metrics, *m)
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].NomRegion != metrics[j].NomRegion {
			return metrics[i].NomRegion < metrics[j].NomRegion
		}
		return metrics[i].Annee < metrics[j].Annee
	})

	for i := range metrics {
		if i == 0 || metrics[i-1].NomRegion != metrics[i].NomRegion {
			continue
		}
		prev := metrics[i-1]
		if prev.HasTaux && metrics[i].HasTaux {
			metrics[i].VariationRegion = metrics[i].TauxRegion - prev.TauxRegion
		}
	}
	return metrics
}

// MetricsForYear 过滤某一年的区域指标
func MetricsForYear(metrics []models.RegionMetric, year int) []models.RegionMetric {
	out := make([]models.RegionMetric, 0)
	for _, m := range metrics {
		if m.Annee == year {
			out = append(out, m)
		}
	}
	return out
}

// Years 记录中出现的年份, 升序
func Years(records []models.Record) []int {
	seen := map[int]bool{}
	for _, r := range records {
		seen[r.Annee] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Regions 区域名, 升序
func Regions(metrics []models.RegionMetric) []string {
	seen := map[string]bool{}
	var regions []string
	for _, m := range metrics {
		if !seen[m.NomRegion] {
			seen[m.NomRegion] = true
			regions = append(regions, m.NomRegion)
		}
	}
	sort.Strings(regions)
	return regions
}
