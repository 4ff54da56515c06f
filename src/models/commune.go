package models

import "fmt"

// Commune 市镇参考信息, 即搜索列表中的一项
type Commune struct {
	Codgeo         string `json:"CODGEO_2025"`
	NomCommune     string `json:"nom_commune"`
	NomDepartement string `json:"nom_departement"`
	NomRegion      string `json:"nom_region"`
}

// Label 下拉框文本, INSEE 代码总在最后
func (c Commune) Label() string {
	return fmt.Sprintf("%s (%s, %s) — INSEE %s", c.NomCommune, c.NomDepartement, c.NomRegion, c.Codgeo)
}
