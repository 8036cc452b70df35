package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "sea surface temp", NormalizeName("  Sea   Surface\tTemp "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestLayerName(t *testing.T) {
	cases := map[string]string{
		"Delta SST Mean":      "delta_sst_mean",
		"delta_sst_mean":      "delta_sst_mean",
		"--weird..name--":     "weird_name",
		"2024 monthly":        "l_2024_monthly",
		"   ":                 "",
		"Precipitação (mm/d)": "precipita_o_mm_d",
	}
	for in, want := range cases {
		assert.Equal(t, want, LayerName(in), "input %q", in)
	}
}

func TestLayerNameFromPath(t *testing.T) {
	assert.Equal(t, "sst_anomaly", LayerNameFromPath("/data/uploads/SST-Anomaly.nc"))
	assert.Equal(t, "sst_crsfixed", LayerNameFromPath("sst_crsfixed.netcdf"))
}

func TestAlternate(t *testing.T) {
	assert.Equal(t, "geonode:sst", Alternate("geonode", "sst"))
	assert.Equal(t, "sst", Alternate("", "sst"))
}

func TestFileHashSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	sum, n, err := FileHashSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	_, err = FileHash(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
