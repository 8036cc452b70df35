package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

func sampleMeta() *model.GridMetadata {
	return &model.GridMetadata{
		Dimensions: []model.Dimension{{Name: "lat", Size: 3}, {Name: "lon", Size: 4}},
		Global:     model.Attributes{"title": model.StringAttr("sst"), "version": model.IntAttr(2)},
		Variables: []model.Variable{
			{Name: "sst", Dimensions: []string{"lat", "lon"}, Attributes: model.Attributes{"scale": model.FloatAttr(0.5)}},
		},
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst.parquet")
	rows := model.InventoryRows(9, sampleMeta())

	require.NoError(t, WriteFile(path, rows))

	got, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteFile(path, nil))

	got, err := ReadAll(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteFile_BadDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "x.parquet"), nil)
	assert.Error(t, err)
}

type otherRow struct {
	Description string `parquet:"description"`
}

func TestOpen_RejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[otherRow](f)
	_, err = w.Write([]otherRow{{Description: "x"}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record_id")
}

func TestOpen_NotParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.parquet")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}
