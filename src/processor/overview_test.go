package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ObservatoireDelinquance/src/datasource/file"
)

func TestDescribeColumns(t *testing.T) {
	df, err := file.ParseCSV(strings.NewReader("CODGEO_2025,nombre,extra\n01001,NA,x\n01002,3,y\n01003,4,z\n75056,,w\n"))
	require.NoError(t, err)

	infos := DescribeColumns(df)
	require.Len(t, infos, 3)

	assert.Equal(t, "CODGEO_2025", infos[0].Name)
	assert.Equal(t, "Code INSEE de la commune", infos[0].Description)
	assert.Equal(t, 4, infos[0].NonNull)
	assert.InDelta(t, 100.0, infos[0].Completeness, 1e-9)

	assert.Equal(t, 2, infos[1].NonNull)
	assert.InDelta(t, 50.0, infos[1].Completeness, 1e-9)

	assert.Equal(t, "Donnée analytique", infos[2].Description)
}
