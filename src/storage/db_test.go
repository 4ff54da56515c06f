package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ObservatoireDelinquance/src/models"
)

func setupTestStore(t *testing.T) RecordStore {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	return NewRecordStore(db)
}

func TestRecordStore_Empty(t *testing.T) {
	s := setupTestStore(t)

	records, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	years, err := s.Years(context.Background())
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestRecordStore_SaveReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := []models.Record{
		{Codgeo: "01001", Annee: 2023, Indicateur: "Homicides", Nombre: 1, InseePop: 100, Taux: 10},
		{Codgeo: "01001", Annee: 2022, Indicateur: "Homicides", Nombre: 2, InseePop: 100, Taux: 20},
	}
	require.NoError(t, s.SaveRecords(ctx, first))
	// input is not mutated
	assert.Zero(t, first[0].ID)

	second := []models.Record{
		{Codgeo: "2A004", NomRegion: "Corse", Annee: 2024, Indicateur: "Vols de véhicules", Nombre: 3, InseePop: 1000, Taux: 3},
		first[1],
		first[0],
	}
	require.NoError(t, s.SaveRecords(ctx, second))

	records, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "01001", records[0].Codgeo)
	assert.Equal(t, 2022, records[0].Annee)
	assert.Equal(t, "2A004", records[2].Codgeo)
	assert.Equal(t, "Corse", records[2].NomRegion)

	years, err := s.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023, 2024}, years)
}
