package geo

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/palette/moreland"

	"ObservatoireDelinquance/src/models"
)

// NoDataColor 无数据大区的填充色
const NoDataColor = "#d1d5db"

// Scale 指标值到填充色的映射; 比率用 [min, max] 上的 YlOrRd 色阶,
// 变化率用以0为中心的蓝红发散色阶
type Scale struct {
	min, max  float64
	steps     []color.Color
	diverging palette.DivergingColorMap
}

func NewScale(metric string, values []float64) Scale {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}

	if metric == models.MetricVariation {
		bound := math.Max(math.Abs(lo), math.Abs(hi))
		if bound == 0 {
			bound = 1
		}
		cm := moreland.SmoothBlueRed()
		cm.SetMin(-bound)
		cm.SetMax(bound)
		return Scale{min: -bound, max: bound, diverging: cm}
	}

	if hi <= lo {
		hi = lo + 1
	}
	s := Scale{min: lo, max: hi}
	if p, err := brewer.GetPalette(brewer.TypeSequential, "YlOrRd", 9); err == nil {
		s.steps = p.Colors()
	}
	return s
}

func (s Scale) Color(v float64) color.Color {
	if math.IsNaN(v) {
		return nil
	}
	v = math.Max(s.min, math.Min(s.max, v))
	if s.diverging != nil {
		c, err := s.diverging.At(v)
		if err != nil {
			return nil
		}
		return c
	}
	if len(s.steps) == 0 {
		return nil
	}
	idx := int((v - s.min) / (s.max - s.min) * float64(len(s.steps)))
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	return s.steps[idx]
}

// Hex 返回 #rrggbb, v 无值时返回 NoDataColor
func (s Scale) Hex(v float64) string {
	c := s.Color(v)
	if c == nil {
		return NoDataColor
	}
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
