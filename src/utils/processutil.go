package utils

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn 判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// MissingColumns 返回缺失的列, 保持 required 的顺序
func MissingColumns(df dataframe.DataFrame, required ...string) []string {
	var missing []string
	for _, col := range required {
		if !HasColumn(df, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// NormStr 去重音、小写、合并空白
func NormStr(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(folded), " ")
}

// HarmonizeLabel 统一指标名称中的空白和引号
func HarmonizeLabel(s string) string {
	s = strings.NewReplacer("’", "'", "‘", "'", "`", "'", "\u00a0", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var naValues = map[string]bool{
	"": true, "na": true, "nan": true, "nd": true, "n/a": true, "null": true, "none": true, "<na>": true,
}

// IsNA 判断单元格是否为缺失值
func IsNA(s string) bool {
	return naValues[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber 解析法式数字 ("1 234,5"), 缺失值返回 false
func ParseNumber(s string) (float64, bool) {
	if IsNA(s) {
		return 0, false
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(s))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseYear 年份, 兼容 "2023.0"
func ParseYear(s string) (int, bool) {
	v, ok := ParseNumber(s)
	if !ok || v < 1900 || v > 2200 {
		return 0, false
	}
	return int(v), true
}

// PadCode 补齐INSEE代码前导零 ("1001" -> "01001"), 科西嘉 "2A004" 保持不变
func PadCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if i := strings.Index(code, "."); i > 0 && strings.Trim(code[i+1:], "0") == "" {
		code = code[:i]
	}
	if len(code) > 0 && len(code) < 5 && strings.IndexFunc(code, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		code = strings.Repeat("0", 5-len(code)) + code
	}
	return code
}

// Table 导出到Excel的一张表
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]interface{}
}

// TableFromDataFrame 把DataFrame转换为Table
func TableFromDataFrame(sheet string, df dataframe.DataFrame) Table {
	t := Table{Sheet: sheet, Header: df.Names()}
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		row := make([]interface{}, 0, df.Ncol())
		for _, colName := range t.Header {
			row = append(row, df.Col(colName).Val(rowIdx))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func buildWorkbook(tables ...Table) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(t.Sheet); err != nil {
			return nil, err
		}

		header := make([]interface{}, len(t.Header))
		for j, h := range t.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(t.Sheet, "A1", &header); err != nil {
			return nil, err
		}
		for rowIdx, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			r := row
			if err := f.SetSheetRow(t.Sheet, cell, &r); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// WriteExcel 写出xlsx到 w
func WriteExcel(w io.Writer, tables ...Table) error {
	f, err := buildWorkbook(tables...)
	if err != nil {
		return fmt.Errorf("生成Excel失败: %w", err)
	}
	defer f.Close()
	return f.Write(w)
}

// SaveToExcel 将DataFrame保存为Excel文件
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	f, err := buildWorkbook(TableFromDataFrame("Sheet1", df))
	if err != nil {
		return fmt.Errorf("生成Excel失败: %w", err)
	}
	defer f.Close()

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}
