package repair

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNCOArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-O", "-s", "crs=0", "in.nc", "out.nc"},
		ncap2Args("in.nc", "out.nc", "crs", "0"))

	args := ncattedArgs("in.nc", "out.nc", []AttrEdit{
		{Var: "crs", Name: "grid_mapping_name", Type: TypeChar, Value: "latitude_longitude"},
		{Var: "crs", Name: "semi_major_axis", Type: TypeDouble, Value: "6378137.0"},
	})
	assert.Equal(t, []string{
		"-O",
		"-a", "grid_mapping_name,crs,c,c,latitude_longitude",
		"-a", "semi_major_axis,crs,c,d,6378137.0",
		"in.nc", "out.nc",
	}, args)
}

func TestNewNCO_BadCommand(t *testing.T) {
	_, err := NewNCO("", "ncatted", time.Second, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewNCO("ncap2 'unterminated", "ncatted", time.Second, zerolog.Nop())
	assert.Error(t, err)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestNCO_RunsCommand(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.nc")
	out := filepath.Join(dir, "out.nc")
	require.NoError(t, os.WriteFile(in, []byte("data"), 0o644))

	// ncap2 receives -O -s crs=0 in out.
	n, err := NewNCO(`sh -c 'cp "$4" "$5"' sh`, "false", 5*time.Second, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, n.AddVariable(context.Background(), in, out, "crs", "0"))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
}

func TestNCO_FailureCarriesStderr(t *testing.T) {
	requireShell(t)
	n, err := NewNCO(`sh -c 'echo "ERROR: bad file" >&2; exit 3' sh`, "false", 5*time.Second, zerolog.Nop())
	require.NoError(t, err)

	err = n.AddVariable(context.Background(), "a.nc", "b.nc", "crs", "0")
	require.Error(t, err)
	var toolErr *Error
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "ncap2", toolErr.Op)
	assert.Contains(t, err.Error(), "ERROR: bad file")
}

func TestNCO_Timeout(t *testing.T) {
	requireShell(t)
	n, err := NewNCO("sleep 5", `sh -c "exec sleep 5" sh`, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	err = n.SetAttributes(context.Background(), "a.nc", "b.nc", WGS84Edits("crs"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
