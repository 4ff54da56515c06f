// reader.go
package file

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"

	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/utils"
)

// ErrDataFileMissing 数据文件不存在 (文件过大未随仓库分发, 需手动下载)
var ErrDataFileMissing = errors.New("fichier de données introuvable")

// ErrMissingColumns 缺少必需列
var ErrMissingColumns = errors.New("colonnes manquantes")

// ConsolidatedColumns 清洗后CSV的列, 按输出顺序
var ConsolidatedColumns = []string{
	"CODGEO_2025", "nom_commune", "nom_departement", "nom_region",
	"annee", "indicateur", "categorie_indicateur",
	"nombre", "insee_pop", "taux_calcule_pour_mille", "variation_taux",
	"taille_commune", "niveau_delinquance",
}

// ReadOptions 原始文件读取参数
type ReadOptions struct {
	SheetName string // xlsx 工作表, 为空取第一个
	HeaderRow int    // xlsx 标题行下标
}

func missingFile(path string) error {
	return fmt.Errorf("%w : %s\n(téléchargez le fichier puis placez-le dans %s/)",
		ErrDataFileMissing, path, filepath.Dir(path))
}

func checkExists(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return missingFile(path)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s exists but is a directory", path)
	}
	return nil
}

// ReadRaw 读取SSMSI原始文件 (CSV 或 XLSX), 所有列为字符串
func ReadRaw(path string, opts ReadOptions) (dataframe.DataFrame, error) {
	if err := checkExists(path); err != nil {
		return dataframe.DataFrame{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, opts.SheetName, opts.HeaderRow)
	}
	return ReadCSV(path)
}

// ReadCSV 读取CSV, 自动识别分隔符 (; 或 ,) 并去除BOM
func ReadCSV(path string) (dataframe.DataFrame, error) {
	if err := checkExists(path); err != nil {
		return dataframe.DataFrame{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	df, err := ParseCSV(f)
	if err != nil {
		return df, fmt.Errorf("%s: %w", path, err)
	}
	return df, nil
}

// ParseCSV 从 reader 解析CSV
func ParseCSV(r io.Reader) (dataframe.DataFrame, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	header, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return dataframe.DataFrame{}, err
	}
	if len(bytes.TrimSpace(header)) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("empty csv")
	}

	delim := detectDelimiter(header)
	// 只有表头时 gota 报 empty DataFrame, 按零行处理
	if errors.Is(err, io.EOF) {
		if cols, ok := headerOnly(header, delim); ok {
			return emptyFrame(cols), nil
		}
	}

	df := dataframe.ReadCSV(br,
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return df, fmt.Errorf("parse csv: %w", df.Err)
	}
	return df, nil
}

// headerOnly 判断内容是否只有一行表头
func headerOnly(content []byte, delim rune) ([]string, bool) {
	cr := csv.NewReader(bytes.NewReader(content))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil || len(rows) != 1 {
		return nil, false
	}
	return rows[0], true
}

func emptyFrame(cols []string) dataframe.DataFrame {
	columns := make([]series.Series, len(cols))
	for i, name := range cols {
		columns[i] = series.New([]string{}, series.String, name)
	}
	return dataframe.New(columns...)
}

func detectDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// ReadXLSX 使用tealeg/xlsx打开Excel文件
func ReadXLSX(filePath, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.New(), fmt.Errorf("xlsx open file false: %w", err)
	}

	if len(xlFile.Sheets) == 0 {
		return dataframe.New(), fmt.Errorf("%s: aucune feuille", filePath)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.New(), fmt.Errorf("%s: feuille %q introuvable", filePath, sheetName)
		}
		sheet = s
	}

	return convertSheetToDataFrame(sheet, headerRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if len(sheet.Rows) <= headerRow {
		return dataframe.New(), fmt.Errorf("feuille %q vide", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-headerRow-1)
	}

	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil || len(row.Cells) == 0 {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	return df, df.Err
}

// WriteCSV 写出DataFrame (逗号分隔, 含标题行)
func WriteCSV(df dataframe.DataFrame, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadConsolidated 读取清洗后的CSV, 去掉未公布的行 (nombre 或 insee_pop 缺失)
func ReadConsolidated(path string) ([]models.Record, error) {
	df, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	return RecordsFromDataFrame(df)
}

// RecordsFromDataFrame 把字符串DataFrame转换为Record
func RecordsFromDataFrame(df dataframe.DataFrame) ([]models.Record, error) {
	required := []string{"CODGEO_2025", "annee", "nombre", "insee_pop"}
	if missing := utils.MissingColumns(df, required...); len(missing) > 0 {
		return nil, fmt.Errorf("%w dans le CSV : %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

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
		communes   = col("nom_commune")
		deps       = col("nom_departement")
		regions    = col("nom_region")
		years      = col("annee")
		indicators = col("indicateur")
		categories = col("categorie_indicateur")
		counts     = col("nombre")
		pops       = col("insee_pop")
		variations = col("variation_taux")
		sizes      = col("taille_commune")
		levels     = col("niveau_delinquance")
	)

	records := make([]models.Record, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		year, ok := utils.ParseYear(years[i])
		if !ok {
			continue
		}
		nombre, ok := utils.ParseNumber(counts[i])
		if !ok {
			continue
		}
		pop, ok := utils.ParseNumber(pops[i])
		if !ok {
			continue
		}
		variation, _ := utils.ParseNumber(variations[i])
		taux, _ := models.RatePerThousand(nombre, pop)

		records = append(records, models.Record{
			Codgeo:         utils.PadCode(codes[i]),
			NomCommune:     communes[i],
			NomDepartement: deps[i],
			NomRegion:      regions[i],
			NomRegionNorm:  utils.NormStr(regions[i]),
			Annee:          year,
			Indicateur:     indicators[i],
			Categorie:      categories[i],
			Nombre:         nombre,
			InseePop:       pop,
			Taux:           taux,
			Variation:      variation,
			TailleCommune:  sizes[i],
			Niveau:         levels[i],
		})
	}
	return records, nil
}

// NormalizeHeaders 去掉BOM和空白, 按别名表改为标准列名; 目标列已存在时不改名
func NormalizeHeaders(df dataframe.DataFrame, alias func(string) (string, bool)) (dataframe.DataFrame, map[string]string) {
	renamed := map[string]string{}
	taken := map[string]bool{}
	for _, name := range df.Names() {
		taken[name] = true
	}

	for _, name := range df.Names() {
		clean := strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		target := clean
		if alias != nil {
			if canonical, ok := alias(strings.ToLower(clean)); ok {
				target = canonical
			}
		}
		if target == name || taken[target] {
			continue
		}
		df = df.Rename(target, name)
		delete(taken, name)
		taken[target] = true
		renamed[name] = target
	}
	return df, renamed
}

// ReadCommuneRef 读取市镇参考表, 每个INSEE代码保留第一行
func ReadCommuneRef(path string, alias func(string) (string, bool)) ([]models.Commune, error) {
	df, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	df, _ = NormalizeHeaders(df, alias)
	if df.Err != nil {
		return nil, df.Err
	}
	if missing := utils.MissingColumns(df, "CODGEO_2025"); len(missing) > 0 {
		return nil, fmt.Errorf("%w dans %s : %s", ErrMissingColumns, path, strings.Join(missing, ", "))
	}

	col := func(name string) []string {
		if !utils.HasColumn(df, name) {
			return make([]string, df.Nrow())
		}
		vals := df.Col(name).Records()
		for i, v := range vals {
			if utils.IsNA(v) {
				vals[i] = ""
			}
			vals[i] = strings.TrimSpace(vals[i])
		}
		return vals
	}
	codes, names, deps, regions := col("CODGEO_2025"), col("nom_commune"), col("nom_departement"), col("nom_region")

	seen := make(map[string]bool, len(codes))
	communes := make([]models.Commune, 0, len(codes))
	for i, c := range codes {
		code := utils.PadCode(c)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		communes = append(communes, models.Commune{
			Codgeo:         code,
			NomCommune:     names[i],
			NomDepartement: deps[i],
			NomRegion:      regions[i],
		})
	}
	return communes, nil
}
