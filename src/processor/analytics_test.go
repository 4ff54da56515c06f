package processor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ObservatoireDelinquance/src/models"
)

func metric(region string, year int, taux float64) models.RegionMetric {
	return models.RegionMetric{NomRegion: region, NomRegionNorm: region, Annee: year, TauxRegion: taux, HasTaux: true}
}

func TestSeriesFor(t *testing.T) {
	metrics := []models.RegionMetric{
		metric("d", 2022, 1), metric("c", 2022, 1), metric("b", 2023, 2), metric("b", 2022, 1), metric("a", 2022, 1),
	}
	got := SeriesFor(metrics, []string{"b", "zz"})
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].NomRegion)
	require.Len(t, got[0].Points, 2)
	assert.Equal(t, 2022, got[0].Points[0].Annee)

	def := SeriesFor(metrics, nil)
	require.Len(t, def, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{def[0].NomRegion, def[1].NomRegion, def[2].NomRegion})
}

func TestCompare(t *testing.T) {
	nodata := models.RegionMetric{NomRegion: "x", Annee: 2023}
	got := Compare([]models.RegionMetric{metric("a", 2023, 5), nodata, metric("b", 2023, 9), metric("c", 2022, 50)}, 2023)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].NomRegion)
	assert.Equal(t, "a", got[1].NomRegion)
	assert.Equal(t, "x", got[2].NomRegion)
}

func TestHeatmapFor(t *testing.T) {
	var metrics []models.RegionMetric
	for i := 0; i < 7; i++ {
		name := fmt.Sprintf("r%d", i)
		metrics = append(metrics, metric(name, 2022, float64(i)))
		if i != 6 {
			metrics = append(metrics, metric(name, 2023, float64(i)+1))
		}
	}

	h, err := HeatmapFor(metrics, models.MetricTaux, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023}, h.Years)
	assert.Equal(t, []string{"r6", "r5", "r4", "r3", "r2"}, h.Regions)
	require.Len(t, h.Values, 5)
	assert.Equal(t, 6.0, *h.Values[0][0])
	assert.Nil(t, h.Values[0][1])
	assert.Equal(t, 6.0, *h.Values[1][1])

	_, err = HeatmapFor(metrics, models.MetricTaux, 4)
	assert.True(t, errors.Is(err, ErrInvalidParam))
	_, err = HeatmapFor(metrics, "nope", 10)
	assert.True(t, errors.Is(err, ErrInvalidParam))
}

func TestDistribution(t *testing.T) {
	var metrics []models.RegionMetric
	for i, v := range []float64{1, 2, 3, 4, 100} {
		metrics = append(metrics, metric(fmt.Sprintf("r%d", i), 2023, v))
	}
	metrics = append(metrics, models.RegionMetric{NomRegion: "nodata", Annee: 2023})

	got := Distribution(metrics)
	require.Len(t, got, 1)
	b := got[0]
	assert.Equal(t, 5, b.N)
	assert.Equal(t, 1.0, b.Min)
	assert.Equal(t, 100.0, b.Max)
	assert.LessOrEqual(t, b.Q1, b.Median)
	assert.LessOrEqual(t, b.Median, b.Q3)
	assert.Equal(t, []float64{100}, b.Outliers)
	assert.Equal(t, 1.0, b.LowerWhisker)
	assert.Equal(t, 4.0, b.UpperWhisker)
}

func TestRolling(t *testing.T) {
	metrics := []models.RegionMetric{
		metric("a", 2022, 30), metric("a", 2020, 10), metric("a", 2021, 20),
		{NomRegion: "a", Annee: 2023}, metric("b", 2020, 99),
	}

	got, err := Rolling(metrics, "a", 2)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 10.0, *got[0].TauxLisse)
	assert.Equal(t, 15.0, *got[1].TauxLisse)
	assert.Equal(t, 25.0, *got[2].TauxLisse)
	assert.Nil(t, got[3].Taux)
	assert.Equal(t, 30.0, *got[3].TauxLisse)

	_, err = Rolling(metrics, "a", 6)
	assert.True(t, errors.Is(err, ErrInvalidParam))
	_, err = Rolling(metrics, "zz", 3)
	assert.True(t, errors.Is(err, ErrInvalidParam))
}

func breakdownRecords() []models.Record {
	var recs []models.Record
	for i := 1; i <= 12; i++ {
		cat := "Cat A"
		if i%2 == 0 {
			cat = "Cat B"
		}
		recs = append(recs, models.Record{
			NomRegion: "Bretagne", Annee: 2023,
			Indicateur: fmt.Sprintf("ind%02d", i), Categorie: cat, Nombre: float64(i),
		})
	}
	recs = append(recs,
		models.Record{NomRegion: "Corse", Annee: 2023, Indicateur: "ind01", Categorie: "Cat A", Nombre: 100},
		models.Record{NomRegion: "Bretagne", Annee: 2022, Indicateur: "ind01", Categorie: "Cat A", Nombre: 1000},
	)
	return recs
}

func TestBreakdownFor(t *testing.T) {
	b, err := BreakdownFor(breakdownRecords(), 2023, "Bretagne", LevelDetail, 10)
	require.NoError(t, err)
	require.Len(t, b.Full, 12)
	require.Len(t, b.Rows, 11)
	assert.Equal(t, "ind12", b.Rows[0].Label)
	assert.Equal(t, Others, b.Rows[10].Label)
	assert.Equal(t, 3.0, b.Rows[10].Nb)

	var pct float64
	for _, s := range b.Rows {
		pct += s.Pct
	}
	assert.InDelta(t, 100, pct, 1e-9)

	all, err := BreakdownFor(breakdownRecords(), 2023, "Toutes", LevelClasses, 5)
	require.NoError(t, err)
	require.Len(t, all.Rows, 2)
	assert.Equal(t, "Cat A", all.Rows[0].Label)
	assert.Equal(t, 136.0, all.Rows[0].Nb)

	_, err = BreakdownFor(breakdownRecords(), 2023, "", "x", 10)
	assert.True(t, errors.Is(err, ErrInvalidParam))
	_, err = BreakdownFor(breakdownRecords(), 2023, "", LevelDetail, 26)
	assert.True(t, errors.Is(err, ErrInvalidParam))
}

func TestCompositionFor(t *testing.T) {
	got, err := CompositionFor(breakdownRecords(), "Bretagne", LevelDetail, 3)
	require.NoError(t, err)

	labels := map[string]bool{}
	var total2023 float64
	for _, p := range got {
		labels[p.Label] = true
		if p.Annee == 2023 {
			total2023 += p.Nb
		}
	}
	// ind01 leads thanks to 2022
	assert.Equal(t, map[string]bool{"ind01": true, "ind12": true, "ind11": true, Others: true}, labels)
	assert.Equal(t, 78.0, total2023)
	assert.Equal(t, 2022, got[0].Annee)

	classes, err := CompositionFor(breakdownRecords(), "", LevelClasses, 0)
	require.NoError(t, err)
	assert.Len(t, classes, 3)

	_, err = CompositionFor(breakdownRecords(), "", LevelDetail, 13)
	assert.True(t, errors.Is(err, ErrInvalidParam))
}

func TestTopCommunes(t *testing.T) {
	recs := []models.Record{
		{Codgeo: "1", NomCommune: "Grande", NomRegion: "R", Annee: 2023, Nombre: 100, InseePop: 10000},
		{Codgeo: "1", NomCommune: "Grande", NomRegion: "R", Annee: 2023, Nombre: 50, InseePop: 20000},
		{Codgeo: "2", NomCommune: "Petite", NomRegion: "R", Annee: 2023, Nombre: 20, InseePop: 100},
		{Codgeo: "3", NomCommune: "Vide", NomRegion: "R", Annee: 2023, Nombre: 500, InseePop: 0},
		{Codgeo: "4", NomCommune: "Ailleurs", NomRegion: "S", Annee: 2023, Nombre: 1, InseePop: 1},
	}

	byRate, err := TopCommunes(recs, 2023, "R", RankByTaux)
	require.NoError(t, err)
	require.Len(t, byRate, 2)
	assert.Equal(t, "Petite", byRate[0].NomCommune)
	assert.InDelta(t, 200.0, byRate[0].TauxCommune, 1e-9)
	assert.Equal(t, 20000.0, byRate[1].PopCommune)
	assert.InDelta(t, 7.5, byRate[1].TauxCommune, 1e-9)

	byCount, err := TopCommunes(recs, 2023, "R", RankByNombre)
	require.NoError(t, err)
	assert.Equal(t, "Grande", byCount[0].NomCommune)

	_, err = TopCommunes(recs, 2023, "R", "x")
	assert.True(t, errors.Is(err, ErrInvalidParam))

	var many []models.Record
	for i := 0; i < 25; i++ {
		many = append(many, models.Record{Codgeo: fmt.Sprint(i), NomRegion: "R", Annee: 2023, Nombre: float64(i), InseePop: 100})
	}
	top, err := TopCommunes(many, 2023, "R", RankByTaux)
	require.NoError(t, err)
	assert.Len(t, top, TopCommunesLimit)
	assert.Equal(t, 24.0, top[0].NbCommune)
}
