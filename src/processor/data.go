// data.go
package processor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"

	"ObservatoireDelinquance/src/config"
	"ObservatoireDelinquance/src/datasource/file"
	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/storage"
	"ObservatoireDelinquance/src/utils"
)

// RequiredRawColumns 原始文件必需的列
var RequiredRawColumns = []string{"CODGEO_2025", "annee", "indicateur", "nombre", "insee_pop"}

// CreatedColumns 清洗时生成的变量
var CreatedColumns = []string{
	"categorie_indicateur", "taux_calcule_pour_mille", "variation_taux",
	"taille_commune", "niveau_delinquance",
}

// 丢弃原因
const (
	DropNotDiffused  = "non_diffuse"
	DropBadYear      = "annee_invalide"
	DropBadCode      = "code_invalide"
	DropMissingCount = "nombre_manquant"
	DropMissingPop   = "population_manquante"
	DropZeroPop      = "population_nulle"
)

// CleanReport 清洗报告
type CleanReport struct {
	RowsIn         int               `json:"rows_in"`
	RowsOut        int               `json:"rows_out"`
	Dropped        map[string]int    `json:"dropped"`
	Renamed        map[string]string `json:"renamed_columns"`
	Unmapped       []string          `json:"unmapped_indicators"` // 按默认类别处理的指标
	UnmatchedCodes int               `json:"unmatched_codes"`     // 参考表中找不到的代码
	CreatedColumns []string          `json:"created_columns"`
	Elapsed        time.Duration     `json:"elapsed"`
}

// DataProcessor 把原始SSMSI表清洗为合并后的记录
type DataProcessor struct {
	df       dataframe.DataFrame
	dc       *config.DataConfig
	communes []models.Commune
	logger   *storage.Logger

	records []models.Record
	report  CleanReport
}

func NewDataProcessor(df dataframe.DataFrame, dc *config.DataConfig) *DataProcessor {
	return &DataProcessor{df: df, dc: dc}
}

// WithCommunes 设置市镇参考表, 用于补充名称
func (p *DataProcessor) WithCommunes(communes []models.Commune) *DataProcessor {
	p.communes = communes
	return p
}

func (p *DataProcessor) WithLogger(l *storage.Logger) *DataProcessor {
	p.logger = l
	return p
}

func (p *DataProcessor) Records() []models.Record { return p.records }

func (p *DataProcessor) Report() CleanReport { return p.report }

// CleanData 执行清洗流程
func (p *DataProcessor) CleanData() error {
	start := time.Now()
	p.report = CleanReport{
		RowsIn:         p.df.Nrow(),
		Dropped:        map[string]int{},
		CreatedColumns: CreatedColumns,
	}

	df := p.df.Copy()
	for _, stage := range p.rawStages() {
		if err := stage.DataProcessFunc(&df); err != nil {
			return err
		}
	}

	records := p.typedRows(df)
	p.joinCommunes(records)
	p.categorize(records)

	AssignVariations(records)
	AssignSizes(records, p.dc.SizeBrackets)
	AssignLevels(records)
	SortRecords(records)

	p.records = records
	p.report.RowsOut = len(records)
	p.report.Elapsed = time.Since(start)

	p.logger.Info("清洗完成",
		zap.Int("rows_in", p.report.RowsIn),
		zap.Int("rows_out", p.report.RowsOut),
		zap.Any("dropped", p.report.Dropped),
		zap.Int("unmapped", len(p.report.Unmapped)),
		zap.Duration("elapsed", p.report.Elapsed))
	return nil
}

// typedRows 转换类型并丢弃无法计算比率的行
func (p *DataProcessor) typedRows(df dataframe.DataFrame) []models.Record {
	col := func(name string) []string {
		if !utils.HasColumn(df, name) {
			return make([]string, df.Nrow())
		}
		vals := df.Col(name).Records()
		for i, v := range vals {
			if utils.IsNA(v) {
				vals[i] = ""
			}
		}
		return vals
	}
	var (
		codes      = col("CODGEO_2025")
		years      = col("annee")
		indicators = col("indicateur")
		counts     = col("nombre")
		pops       = col("insee_pop")
		communes   = col("nom_commune")
		deps       = col("nom_departement")
		regions    = col("nom_region")
	)

	records := make([]models.Record, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		code := utils.PadCode(codes[i])
		if code == "" {
			p.report.Dropped[DropBadCode]++
			continue
		}
		year, ok := utils.ParseYear(years[i])
		if !ok {
			p.report.Dropped[DropBadYear]++
			continue
		}
		nombre, ok := utils.ParseNumber(counts[i])
		if !ok {
			p.report.Dropped[DropMissingCount]++
			continue
		}
		pop, ok := utils.ParseNumber(pops[i])
		if !ok {
			p.report.Dropped[DropMissingPop]++
			continue
		}
		rate, ok := models.RatePerThousand(nombre, pop)
		if !ok {
			p.report.Dropped[DropZeroPop]++
			continue
		}
		records = append(records, models.Record{
			Codgeo:         code,
			NomCommune:     strings.TrimSpace(communes[i]),
			NomDepartement: strings.TrimSpace(deps[i]),
			NomRegion:      strings.TrimSpace(regions[i]),
			Annee:          year,
			Indicateur:     utils.HarmonizeLabel(indicators[i]),
			Nombre:         nombre,
			InseePop:       pop,
			Taux:           rate,
		})
	}
	return records
}

// joinCommunes 左连接参考表 (按INSEE代码), 并计算区域规范名
func (p *DataProcessor) joinCommunes(records []models.Record) {
	ref := make(map[string]models.Commune, len(p.communes))
	for _, c := range p.communes {
		ref[c.Codgeo] = c
	}
	unmatched := map[string]bool{}
	for i := range records {
		r := &records[i]
		if c, ok := ref[r.Codgeo]; ok {
			r.NomCommune = firstNonEmpty(c.NomCommune, r.NomCommune)
			r.NomDepartement = firstNonEmpty(c.NomDepartement, r.NomDepartement)
			r.NomRegion = firstNonEmpty(c.NomRegion, r.NomRegion)
		} else if len(ref) > 0 {
			unmatched[r.Codgeo] = true
		}
		r.NomRegionNorm = utils.NormStr(r.NomRegion)
	}
	p.report.UnmatchedCodes = len(unmatched)
}

func (p *DataProcessor) categorize(records []models.Record) {
	cat := NewCategorizer(p.dc)
	cache := map[string]string{}
	unknown := map[string]bool{}
	for i := range records {
		label := records[i].Indicateur
		c, ok := cache[label]
		if !ok {
			var known bool
			c, known = cat.Categorize(label)
			cache[label] = c
			if !known {
				unknown[label] = true
			}
		}
		records[i].Categorie = c
	}
	p.report.Unmapped = make([]string, 0, len(unknown))
	for label := range unknown {
		p.report.Unmapped = append(p.report.Unmapped, label)
	}
	sort.Strings(p.report.Unmapped)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// SortRecords 按市镇、指标、年份排序
func SortRecords(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Codgeo != b.Codgeo {
			return a.Codgeo < b.Codgeo
		}
		if a.Indicateur != b.Indicateur {
			return a.Indicateur < b.Indicateur
		}
		return a.Annee < b.Annee
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

// ToDataFrame 合并后的CSV格式, 列顺序同 file.ConsolidatedColumns
func ToDataFrame(records []models.Record) dataframe.DataFrame {
	cols := make([][]string, len(file.ConsolidatedColumns))
	for i := range cols {
		cols[i] = make([]string, len(records))
	}
	for i, r := range records {
		row := []string{
			r.Codgeo, r.NomCommune, r.NomDepartement, r.NomRegion,
			strconv.Itoa(r.Annee), r.Indicateur, r.Categorie,
			formatFloat(r.Nombre), formatFloat(r.InseePop), formatFloat(r.Taux), formatFloat(r.Variation),
			r.TailleCommune, r.Niveau,
		}
		for j, v := range row {
			cols[j][i] = v
		}
	}
	list := make([]series.Series, len(cols))
	for j, name := range file.ConsolidatedColumns {
		list[j] = series.New(cols[j], series.String, name)
	}
	return dataframe.New(list...)
}

// DataFrame 清洗结果
func (p *DataProcessor) DataFrame() dataframe.DataFrame {
	return ToDataFrame(p.records)
}

// CalculateMetrics 清洗结果的概要指标
func (p *DataProcessor) CalculateMetrics() (map[string]interface{}, error) {
	if p.records == nil {
		return nil, fmt.Errorf("no cleaned data, call CleanData first")
	}
	communes := map[string]bool{}
	for _, r := range p.records {
		communes[r.Codgeo] = true
	}
	metrics := BuildRegionMetrics(p.records)
	return map[string]interface{}{
		"rows":         len(p.records),
		"communes":     len(communes),
		"regions":      len(Regions(metrics)),
		"years":        Years(p.records),
		"dropped":      p.report.Dropped,
		"last_updated": time.Now(),
	}, nil
}
