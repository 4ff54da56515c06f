package models

// Record 合并后的一行: 市镇 + 年份 + 一个 SSMSI 指标
type Record struct {
	ID             uint    `json:"-" gorm:"primaryKey"`
	Codgeo         string  `json:"CODGEO_2025" gorm:"column:codgeo;size:5;index;not null"`
	NomCommune     string  `json:"nom_commune" gorm:"column:nom_commune;size:255"`
	NomDepartement string  `json:"nom_departement" gorm:"column:nom_departement;size:255"`
	NomRegion      string  `json:"nom_region" gorm:"column:nom_region;size:255;index"`
	NomRegionNorm  string  `json:"nom_region_norm" gorm:"column:nom_region_norm;size:255"`
	Annee          int     `json:"annee" gorm:"column:annee;index;not null"`
	Indicateur     string  `json:"indicateur" gorm:"column:indicateur;size:255;not null"`
	Categorie      string  `json:"categorie_indicateur" gorm:"column:categorie_indicateur;size:64"`
	Nombre         float64 `json:"nombre" gorm:"column:nombre"`
	InseePop       float64 `json:"insee_pop" gorm:"column:insee_pop"`
	Taux           float64 `json:"taux_calcule_pour_mille" gorm:"column:taux_calcule_pour_mille"`
	Variation      float64 `json:"variation_taux" gorm:"column:variation_taux"`
	TailleCommune  string  `json:"taille_commune" gorm:"column:taille_commune;size:64"`
	Niveau         string  `json:"niveau_delinquance" gorm:"column:niveau_delinquance;size:16"`
}

func (Record) TableName() string {
	return "records"
}

// RatePerThousand 千人比率 count / population * 1000; 人口无效时返回 false
func RatePerThousand(count, population float64) (float64, bool) {
	if population <= 0 {
		return 0, false
	}
	return 1000 * count / population, true
}
