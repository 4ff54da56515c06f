package processor

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"ObservatoireDelinquance/src/datasource/file"
	"ObservatoireDelinquance/src/utils"
)

// DataProcess 作用于原始DataFrame的一个清洗步骤
type DataProcess interface {
	DataProcessFunc(df *dataframe.DataFrame) error
}

// HeaderStep 列名规范化
type HeaderStep struct {
	Alias  func(string) (string, bool)
	Report *CleanReport
}

func (s *HeaderStep) DataProcessFunc(df *dataframe.DataFrame) error {
	out, renamed := file.NormalizeHeaders(*df, s.Alias)
	if out.Err != nil {
		return fmt.Errorf("normalize headers: %w", out.Err)
	}
	*df = out
	if s.Report != nil {
		s.Report.Renamed = renamed
	}
	return nil
}

// RequiredStep 检查必需列
type RequiredStep struct {
	Columns []string
}

func (s RequiredStep) DataProcessFunc(df *dataframe.DataFrame) error {
	if missing := utils.MissingColumns(*df, s.Columns...); len(missing) > 0 {
		return fmt.Errorf("%w : %s", file.ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// DiffusionStep 只保留 est_diffuse == "diff" 的行; 没有该列时不处理
type DiffusionStep struct {
	Report *CleanReport
}

func (s *DiffusionStep) DataProcessFunc(df *dataframe.DataFrame) error {
	if !utils.HasColumn(*df, "est_diffuse") {
		return nil
	}
	before := df.Nrow()
	out := df.Filter(dataframe.F{
		Colname:    "est_diffuse",
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return strings.EqualFold(strings.TrimSpace(el.String()), "diff")
		},
	})
	if out.Err != nil {
		return fmt.Errorf("filter est_diffuse: %w", out.Err)
	}
	*df = out
	if s.Report != nil {
		s.Report.Dropped[DropNotDiffused] += before - out.Nrow()
	}
	return nil
}

// MutateStep 逐个单元格改写一列
type MutateStep struct {
	Column string
	Fn     func(string) string
}

func (s MutateStep) DataProcessFunc(df *dataframe.DataFrame) error {
	if !utils.HasColumn(*df, s.Column) || df.Nrow() == 0 {
		return nil
	}
	vals := df.Col(s.Column).Records()
	for i, v := range vals {
		vals[i] = s.Fn(v)
	}
	out := df.Mutate(series.New(vals, series.String, s.Column))
	if out.Err != nil {
		return fmt.Errorf("mutate %s: %w", s.Column, out.Err)
	}
	*df = out
	return nil
}

// rawStages 类型转换之前的步骤
func (p *DataProcessor) rawStages() []DataProcess {
	return []DataProcess{
		&HeaderStep{Alias: p.dc.GetAlias, Report: &p.report},
		RequiredStep{Columns: RequiredRawColumns},
		&DiffusionStep{Report: &p.report},
		MutateStep{Column: "CODGEO_2025", Fn: utils.PadCode},
		MutateStep{Column: "indicateur", Fn: utils.HarmonizeLabel},
	}
}
