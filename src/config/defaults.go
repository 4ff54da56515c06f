package config

import "time"

// 五大类
const (
	CategoryPersonnes    = "Atteintes aux personnes"
	CategoryBiens        = "Atteintes aux biens"
	CategoryVehicules    = "Vols liés aux véhicules"
	CategoryStupefiants  = "Stupéfiants"
	CategoryEscroqueries = "Escroqueries et fraudes"
)

// Categories 五大类, 固定顺序
var Categories = []string{
	CategoryPersonnes,
	CategoryBiens,
	CategoryVehicules,
	CategoryStupefiants,
	CategoryEscroqueries,
}

func DefaultConfig() *Config {
	cfg := &Config{
		DataDir:        "Data",
		DataFile:       "communes_clean.csv",
		GeoJSONFile:    "regions.geojson",
		RawFile:        "donnee-comm-data.gouv-parquet-2024-geographie2025-produit-le2025-06-04.csv",
		CommuneRefFile: "communes_ref.csv",
		Source:         "csv",
		DBPath:         "Data/observatoire.db",
		LogName:        "app.log",
		LogMaxSize:     "10 * 1024 * 1024",
	}
	cfg.Server.Addr = ":8080"
	cfg.Server.ReloadInterval = Duration(10 * time.Minute)
	cfg.Server.RotateSpec = "@every 1m"
	cfg.Clean.HeaderRow = 0
	return cfg
}

// DefaultDataConfig 键均为规范化后的文本(小写, 去重音)
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		Categories: map[string]string{
			"homicides":                                      CategoryPersonnes,
			"tentatives d'homicide":                          CategoryPersonnes,
			"violences physiques intrafamiliales":            CategoryPersonnes,
			"violences physiques hors cadre familial":        CategoryPersonnes,
			"violences sexuelles":                            CategoryPersonnes,
			"vols avec armes":                                CategoryPersonnes,
			"vols violents sans arme":                        CategoryPersonnes,
			"vols sans violence contre des personnes":        CategoryBiens,
			"cambriolages de logement":                       CategoryBiens,
			"destructions et degradations volontaires":       CategoryBiens,
			"vols de vehicules":                              CategoryVehicules,
			"vols dans les vehicules":                        CategoryVehicules,
			"vols d'accessoires sur vehicules":               CategoryVehicules,
			"trafic de stupefiants":                          CategoryStupefiants,
			"usage de stupefiants":                           CategoryStupefiants,
			"usage de stupefiants (afd)":                     CategoryStupefiants,
			"escroqueries et fraudes aux moyens de paiement": CategoryEscroqueries,
		},
		Keywords: map[string]string{
			"escroquerie": CategoryEscroqueries,
			"fraude":      CategoryEscroqueries,
			"stupefiant":  CategoryStupefiants,
			"vehicule":    CategoryVehicules,
			"homicide":    CategoryPersonnes,
			"violen":      CategoryPersonnes,
			"sexuel":      CategoryPersonnes,
			"arme":        CategoryPersonnes,
			"cambriolage": CategoryBiens,
			"destruction": CategoryBiens,
			"degradation": CategoryBiens,
			"vol":         CategoryBiens,
		},
		SizeBrackets: []SizeBracket{
			{Label: "Commune rurale (< 2 000 hab.)", Upper: 2000},
			{Label: "Petite ville (2 000 - 10 000 hab.)", Upper: 10000},
			{Label: "Ville moyenne (10 000 - 50 000 hab.)", Upper: 50000},
			{Label: "Grande ville (50 000 - 200 000 hab.)", Upper: 200000},
			{Label: "Métropole (> 200 000 hab.)", Upper: 0},
		},
		ColumnAliases: map[string]string{
			"codgeo_2025":         "CODGEO_2025",
			"codgeo":              "CODGEO_2025",
			"code_insee":          "CODGEO_2025",
			"insee":               "CODGEO_2025",
			"com":                 "CODGEO_2025",
			"annee":               "annee",
			"year":                "annee",
			"indicateur":          "indicateur",
			"classe":              "indicateur",
			"nombre":              "nombre",
			"faits":               "nombre",
			"insee_pop":           "insee_pop",
			"population":          "insee_pop",
			"est_diffuse":         "est_diffuse",
			"nom_commune":         "nom_commune",
			"libelle":             "nom_commune",
			"libelle_commune":     "nom_commune",
			"commune":             "nom_commune",
			"nom_departement":     "nom_departement",
			"dep_name":            "nom_departement",
			"libelle_departement": "nom_departement",
			"nom_region":          "nom_region",
			"reg_name":            "nom_region",
			"libelle_region":      "nom_region",
			"region":              "nom_region",
		},
		GeoKeys: []string{
			"nom", "Nom", "NOM",
			"name", "Name", "NAME",
			"region", "REGION",
			"libelle", "LIBELLE",
			"nom_region", "NOM_REGION",
		},
		SearchLimit: 3000,
	}
}
