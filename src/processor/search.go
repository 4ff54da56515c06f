package processor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/utils"
)

// ErrNoCommune 没有对应的市镇
var ErrNoCommune = errors.New("aucune commune trouvée")

const (
	maxQueryLen    = 100
	maxSuggestDist = 2
	maxSuggestions = 10
)

// CommuneHit 搜索结果项
type CommuneHit struct {
	models.Commune
	Label string `json:"label"`
}

type SearchResult struct {
	Query       string       `json:"query"`
	Communes    []CommuneHit `json:"communes"`
	Suggestions []CommuneHit `json:"suggestions"`
}

type indexedCommune struct {
	hit  CommuneHit
	norm string
}

// CommuneIndex 市镇列表与按代码的记录索引, 构建后只读
type CommuneIndex struct {
	communes []indexedCommune // 按名称排序
	rows     map[string][]int // 代码 -> records 下标
	records  []models.Record
	limit    int
}

// NewCommuneIndex 去重 (代码, 名称, 省, 区域); limit 为空查询时返回的数量
func NewCommuneIndex(records []models.Record, limit int) *CommuneIndex {
	idx := &CommuneIndex{rows: map[string][]int{}, records: records, limit: limit}
	seen := map[models.Commune]bool{}
	for i, r := range records {
		idx.rows[r.Codgeo] = append(idx.rows[r.Codgeo], i)
		c := models.Commune{Codgeo: r.Codgeo, NomCommune: r.NomCommune, NomDepartement: r.NomDepartement, NomRegion: r.NomRegion}
		if seen[c] {
			continue
		}
		seen[c] = true
		idx.communes = append(idx.communes, indexedCommune{
			hit:  CommuneHit{Commune: c, Label: c.Label()},
			norm: utils.NormStr(c.NomCommune),
		})
	}
	sort.SliceStable(idx.communes, func(i, j int) bool {
		a, b := idx.communes[i].hit, idx.communes[j].hit
		if a.NomCommune != b.NomCommune {
			return a.NomCommune < b.NomCommune
		}
		return a.Codgeo < b.Codgeo
	})
	return idx
}

func (idx *CommuneIndex) Len() int {
	return len(idx.communes)
}

// Search 名称包含查询串 (忽略大小写和重音); 空查询返回按名称排序的前 limit 个.
// 没有结果时按编辑距离给出建议, 仍视为无结果
func (idx *CommuneIndex) Search(q string) SearchResult {
	q = strings.TrimSpace(q)
	if r := []rune(q); len(r) > maxQueryLen {
		q = string(r[:maxQueryLen])
	}
	res := SearchResult{Query: q, Communes: []CommuneHit{}, Suggestions: []CommuneHit{}}

	nq := utils.NormStr(q)
	if nq == "" {
		for i := 0; i < len(idx.communes) && (idx.limit <= 0 || i < idx.limit); i++ {
			res.Communes = append(res.Communes, idx.communes[i].hit)
		}
		return res
	}

	for _, c := range idx.communes {
		if strings.Contains(c.norm, nq) {
			res.Communes = append(res.Communes, c.hit)
		}
	}
	if len(res.Communes) == 0 {
		res.Suggestions = idx.suggest(nq)
	}
	return res
}

func (idx *CommuneIndex) suggest(nq string) []CommuneHit {
	type scored struct {
		hit  CommuneHit
		dist int
	}
	var candidates []scored
	for _, c := range idx.communes {
		if d := levenshtein.ComputeDistance(nq, c.norm); d <= maxSuggestDist {
			candidates = append(candidates, scored{c.hit, d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	out := []CommuneHit{}
	for i := 0; i < len(candidates) && i < maxSuggestions; i++ {
		out = append(out, candidates[i].hit)
	}
	return out
}

// CodeFromLabel 标签末尾是INSEE代码; 不是标签时原样返回
func CodeFromLabel(s string) string {
	if i := strings.LastIndex(s, "INSEE "); i >= 0 {
		return strings.TrimSpace(s[i+len("INSEE "):])
	}
	return strings.TrimSpace(s)
}

// YearRate 某年各指标比率的平均
type YearRate struct {
	Annee int     `json:"annee"`
	Taux  float64 `json:"taux"`
}

// CommuneSheet 市镇概况
type CommuneSheet struct {
	CommuneHit
	Year          int             `json:"annee"`
	Years         []int           `json:"years"`
	TailleCommune string          `json:"taille_commune"`
	Population    float64         `json:"insee_pop"`
	Evolution     []YearRate      `json:"evolution"`
	Categories    []Share         `json:"categories"`
	Rows          []models.Record `json:"rows"`
}

// Sheet 市镇某年的概况; year 为 0 时取最近一年
func (idx *CommuneIndex) Sheet(code string, year int) (CommuneSheet, error) {
	code = utils.PadCode(CodeFromLabel(code))
	positions, ok := idx.rows[code]
	if !ok || len(positions) == 0 {
		return CommuneSheet{}, fmt.Errorf("%w : INSEE %s", ErrNoCommune, code)
	}

	rows := make([]models.Record, len(positions))
	for i, p := range positions {
		rows[i] = idx.records[p]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Annee != rows[j].Annee {
			return rows[i].Annee < rows[j].Annee
		}
		return rows[i].Indicateur < rows[j].Indicateur
	})

	years := Years(rows)
	if year == 0 {
		year = years[len(years)-1]
	}
	if !utils.Contains(years, year) {
		return CommuneSheet{}, fmt.Errorf("%w : annee=%d absente pour INSEE %s", ErrInvalidParam, year, code)
	}

	var inYear []models.Record
	for _, r := range rows {
		if r.Annee == year {
			inYear = append(inYear, r)
		}
	}
	first := inYear[0]
	c := models.Commune{Codgeo: code, NomCommune: first.NomCommune, NomDepartement: first.NomDepartement, NomRegion: first.NomRegion}

	sheet := CommuneSheet{
		CommuneHit:    CommuneHit{Commune: c, Label: c.Label()},
		Year:          year,
		Years:         years,
		TailleCommune: first.TailleCommune,
		Population:    first.InseePop,
		Rows:          rows,
	}

	sums := map[int]float64{}
	counts := map[int]int{}
	for _, r := range rows {
		if r.InseePop <= 0 {
			continue
		}
		sums[r.Annee] += r.Taux
		counts[r.Annee]++
	}
	for _, y := range years {
		if counts[y] > 0 {
			sheet.Evolution = append(sheet.Evolution, YearRate{Annee: y, Taux: sums[y] / float64(counts[y])})
		}
	}

	cats := map[string]float64{}
	for _, r := range inYear {
		cats[r.Categorie] += r.Nombre
	}
	for label, nb := range cats {
		sheet.Categories = append(sheet.Categories, Share{Label: label, Nb: nb})
	}
	sortShares(sheet.Categories)
	withPct(sheet.Categories)
	return sheet, nil
}
