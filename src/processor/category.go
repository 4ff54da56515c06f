package processor

import (
	"sort"
	"strings"

	"ObservatoireDelinquance/src/config"
	"ObservatoireDelinquance/src/utils"
)

type keywordRule struct {
	keyword  string
	category string
}

// Categorizer 把SSMSI指标归入五大类
type Categorizer struct {
	dc    *config.DataConfig
	rules []keywordRule
}

func NewCategorizer(dc *config.DataConfig) *Categorizer {
	rules := make([]keywordRule, 0, len(dc.Keywords))
	for k, c := range dc.Keywords {
		rules = append(rules, keywordRule{keyword: utils.NormStr(k), category: c})
	}
	// 关键字越长越具体, 先匹配; 同长度按字母序, 保证结果与map遍历顺序无关
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].keyword) != len(rules[j].keyword) {
			return len(rules[i].keyword) > len(rules[j].keyword)
		}
		return rules[i].keyword < rules[j].keyword
	})
	return &Categorizer{dc: dc, rules: rules}
}

// Categorize 返回类别; known 为 false 表示没有规则识别该指标, 已归入"Atteintes aux biens"
func (c *Categorizer) Categorize(label string) (category string, known bool) {
	key := utils.NormStr(utils.HarmonizeLabel(label))
	if cat, ok := c.dc.GetCategory(key); ok {
		return cat, true
	}
	for _, r := range c.rules {
		if r.keyword != "" && strings.Contains(key, r.keyword) {
			return r.category, true
		}
	}
	return config.CategoryBiens, false
}
