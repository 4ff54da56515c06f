package processor

import (
	"github.com/go-gota/gota/dataframe"

	"ObservatoireDelinquance/src/utils"
)

var columnDescriptions = map[string]string{
	"CODGEO_2025":             "Code INSEE de la commune",
	"nom_commune":             "Nom de la commune",
	"nom_departement":         "Département",
	"nom_region":              "Région",
	"annee":                   "Année du recensement",
	"indicateur":              "Indicateur SSMSI détaillé",
	"categorie_indicateur":    "Regroupement thématique des infractions",
	"nombre":                  "Nombre de faits enregistrés",
	"insee_pop":               "Population INSEE",
	"taux_calcule_pour_mille": "Ratio pour 1 000 hab. (Variable créée)",
	"variation_taux":          "Évolution annuelle (Variable créée)",
	"taille_commune":          "Tranche de population de la commune",
	"niveau_delinquance":      "Classement catégoriel (Faible, Moyen, Élevé)",
}

// ColumnInfo 变量字典的一行
type ColumnInfo struct {
	Name         string  `json:"variable"`
	Description  string  `json:"signification"`
	NonNull      int     `json:"non_null"`
	Completeness float64 `json:"completude_pct"`
}

// Overview 数据集概况
type Overview struct {
	Rows       int          `json:"rows"`
	Columns    int          `json:"columns"`
	Communes   int          `json:"communes"`
	Regions    int          `json:"regions"`
	Years      []int        `json:"years"`
	Created    []string     `json:"created_columns"`
	Dictionary []ColumnInfo `json:"dictionary"`
}

// DescribeColumns 每列的非空比例
func DescribeColumns(df dataframe.DataFrame) []ColumnInfo {
	infos := make([]ColumnInfo, 0, df.Ncol())
	for _, name := range df.Names() {
		info := ColumnInfo{Name: name, Description: "Donnée analytique"}
		if d, ok := columnDescriptions[name]; ok {
			info.Description = d
		}
		for _, v := range df.Col(name).Records() {
			if !utils.IsNA(v) {
				info.NonNull++
			}
		}
		if n := df.Nrow(); n > 0 {
			info.Completeness = 100 * float64(info.NonNull) / float64(n)
		}
		infos = append(infos, info)
	}
	return infos
}
