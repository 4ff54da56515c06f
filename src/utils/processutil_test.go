package utils

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNormStr(t *testing.T) {
	cases := map[string]string{
		"  Île-de-France ":           "ile-de-france",
		"PROVENCE-ALPES-CÔTE D'AZUR": "provence-alpes-cote d'azur",
		"Auvergne-Rhône-Alpes":       "auvergne-rhone-alpes",
		"Bourgogne-\tFranche-Comté":  "bourgogne- franche-comte",
		"Vols  de   véhicules":       "vols de vehicules",
		"":                           "",
		"   ":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormStr(in), "NormStr(%q)", in)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{"1,5", 1.5, true},
		{"1 234,5", 1234.5, true},
		{"1 234", 1234, true},
		{"NA", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, tc.in)
	}
}

func TestParseYear(t *testing.T) {
	y, ok := ParseYear("2023")
	assert.True(t, ok)
	assert.Equal(t, 2023, y)

	y, ok = ParseYear("2016.0")
	assert.True(t, ok)
	assert.Equal(t, 2016, y)

	_, ok = ParseYear("23")
	assert.False(t, ok)
}

func TestPadCode(t *testing.T) {
	assert.Equal(t, "01001", PadCode("1001"))
	assert.Equal(t, "01001", PadCode("1001.0"))
	assert.Equal(t, "75056", PadCode(" 75056 "))
	assert.Equal(t, "2A004", PadCode("2a004"))
	assert.Equal(t, "", PadCode(""))
}

func TestHarmonizeLabel(t *testing.T) {
	assert.Equal(t, "Vols d'accessoires sur véhicules", HarmonizeLabel("Vols d’accessoires  sur véhicules "))
}

func TestMissingColumns(t *testing.T) {
	df := dataframe.LoadRecords([][]string{{"annee", "nombre"}, {"2020", "1"}})
	assert.Equal(t, []string{"insee_pop"}, MissingColumns(df, "annee", "insee_pop", "nombre"))
	assert.True(t, HasColumn(df, "annee"))
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	err := WriteExcel(&buf,
		Table{Sheet: "Regions", Header: []string{"nom_region", "taux"}, Rows: [][]interface{}{{"Bretagne", 12.5}}},
		Table{Sheet: "Annees", Header: []string{"annee"}, Rows: [][]interface{}{{2023}}},
	)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Regions", "Annees"}, f.GetSheetList())
	v, err := f.GetCellValue("Regions", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Bretagne", v)
}

func TestSaveToExcel(t *testing.T) {
	df := dataframe.LoadRecords([][]string{{"nom_region", "annee"}, {"Normandie", "2022"}})
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, SaveToExcel(df, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Normandie", v)
}
