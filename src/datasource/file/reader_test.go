package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

const rawSample = "\ufeffCODGEO_2025;annee;indicateur;unite_de_compte;est_diffuse;nombre;taux_pour_mille;insee_pop\n" +
	"01001;2023;Cambriolages de logement;Logement;diff;3;3,8;771\n" +
	"01001;2023;Violences sexuelles;Victime;ndiff;NA;NA;771\n" +
	"2A004;2023;Vols de véhicules;Véhicule;diff;12;0,6;20 512\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadRaw_SemicolonCSV(t *testing.T) {
	path := writeFile(t, "raw.csv", rawSample)

	df, err := ReadRaw(path, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, "CODGEO_2025", df.Names()[0])
	assert.Equal(t, []string{"01001", "01001", "2A004"}, df.Col("CODGEO_2025").Records())
	assert.Equal(t, "20 512", df.Col("insee_pop").Records()[2])
}

func TestReadRaw_Missing(t *testing.T) {
	_, err := ReadRaw(filepath.Join(t.TempDir(), "absent.csv"), ReadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataFileMissing))
	assert.Contains(t, err.Error(), "téléchargez le fichier")
}

func TestReadRaw_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.xlsx")

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("communes")
	require.NoError(t, err)
	title := sheet.AddRow()
	title.AddCell().Value = "Base communale SSMSI"
	header := sheet.AddRow()
	for _, h := range []string{"CODGEO_2025", "annee", "nombre"} {
		header.AddCell().Value = h
	}
	row := sheet.AddRow()
	for _, v := range []string{"33063", "2022", "4518"} {
		row.AddCell().Value = v
	}
	require.NoError(t, wb.Save(path))

	df, err := ReadRaw(path, ReadOptions{SheetName: "communes", HeaderRow: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"CODGEO_2025", "annee", "nombre"}, df.Names())
	assert.Equal(t, []string{"4518"}, df.Col("nombre").Records())

	_, err = ReadRaw(path, ReadOptions{SheetName: "absente"})
	assert.Error(t, err)
}

func TestReadConsolidated(t *testing.T) {
	path := writeFile(t, "communes_clean.csv",
		"CODGEO_2025,nom_commune,nom_departement,nom_region,annee,indicateur,categorie_indicateur,nombre,insee_pop,taux_calcule_pour_mille,variation_taux,taille_commune,niveau_delinquance\n"+
			"1001,L'Abergement-Clémenciat,Ain,Auvergne-Rhône-Alpes,2023,Cambriolages de logement,Atteintes aux biens,3,771,999,0.5,Commune rurale,Moyen\n"+
			"01002,L'Abergement-de-Varey,Ain,Auvergne-Rhône-Alpes,2023,Cambriolages de logement,Atteintes aux biens,NA,256,,0,Commune rurale,\n")

	records, err := ReadConsolidated(path)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "01001", r.Codgeo)
	assert.Equal(t, "auvergne-rhone-alpes", r.NomRegionNorm)
	assert.Equal(t, 2023, r.Annee)
	// stored rate is ignored and recomputed
	assert.InDelta(t, 3.0/771*1000, r.Taux, 1e-9)
	assert.InDelta(t, 0.5, r.Variation, 1e-9)
}

func TestReadConsolidated_HeaderOnly(t *testing.T) {
	path := writeFile(t, "communes_clean.csv",
		"\ufeffCODGEO_2025,nom_commune,nom_region,annee,nombre,insee_pop\n")

	records, err := ReadConsolidated(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	df, err := ParseCSV(strings.NewReader("CODGEO_2025;annee;nombre"))
	require.NoError(t, err)
	assert.Equal(t, 0, df.Nrow())
	assert.Equal(t, []string{"CODGEO_2025", "annee", "nombre"}, df.Names())

	// 缺列仍然报错
	_, err = RecordsFromDataFrame(df)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestReadConsolidated_MissingColumns(t *testing.T) {
	path := writeFile(t, "bad.csv", "CODGEO_2025,annee\n01001,2023\n")
	_, err := ReadConsolidated(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))
	assert.Contains(t, err.Error(), "nombre, insee_pop")
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	src := writeFile(t, "in.csv", "a;b\n1;x\n2;y\n")
	df, err := ReadCSV(src)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "sub", "out.csv")
	require.NoError(t, WriteCSV(df, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,x\n2,y\n", string(data))
}

func TestFileMonitor_Watch(t *testing.T) {
	path := writeFile(t, "communes_clean.csv", "a\n1\n")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	m, err := NewFileMonitor(path)
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	go func() { _ = m.Watch(ctx, func(p string) { got <- p }) }()

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("a\n2\n"), 0o644))

	select {
	case p := <-got:
		abs, _ := filepath.Abs(path)
		assert.Equal(t, abs, p)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload notification")
	}
}
