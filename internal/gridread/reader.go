package gridread

import (
	"os"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/cockroachdb/errors"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Reader wraps an open NetCDF group for read-only metadata access.
type Reader struct {
	path  string
	group api.Group
}

// Open opens a NetCDF file (classic CDF or NetCDF-4) read-only.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "stat grid file")
	}
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open netcdf %s", path)
	}
	return &Reader{path: path, group: g}, nil
}

// Metadata returns dimensions, variables and attributes. Variable data is
// never loaded.
func (r *Reader) Metadata() (*model.GridMetadata, error) {
	meta := &model.GridMetadata{
		Path:   r.path,
		Global: convertAttrs(r.group.Attributes()),
	}

	for _, name := range r.group.ListDimensions() {
		size, _ := r.group.GetDimension(name)
		meta.Dimensions = append(meta.Dimensions, model.Dimension{Name: name, Size: size})
	}

	for _, name := range r.group.ListVariables() {
		vg, err := r.group.GetVarGetter(name)
		if err != nil {
			return nil, errors.Wrapf(err, "read variable %s", name)
		}
		meta.Variables = append(meta.Variables, model.Variable{
			Name:       name,
			Dimensions: vg.Dimensions(),
			Attributes: convertAttrs(vg.Attributes()),
		})
	}
	return meta, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	r.group.Close()
	return nil
}

// ReadMetadata opens path, reads its metadata and closes it again.
func ReadMetadata(path string) (*model.GridMetadata, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Metadata()
}

// MetadataSource is anything that can describe a grid file.
type MetadataSource interface {
	ReadMetadata(path string) (*model.GridMetadata, error)
}

// FileSource reads metadata from files on disk.
type FileSource struct{}

func (FileSource) ReadMetadata(path string) (*model.GridMetadata, error) {
	return ReadMetadata(path)
}

func convertAttrs(am api.AttributeMap) model.Attributes {
	attrs := make(model.Attributes)
	if am == nil {
		return attrs
	}
	for _, key := range am.Keys() {
		raw, ok := am.Get(key)
		if !ok {
			continue
		}
		attrs[key] = model.AttrFromNative(raw)
	}
	return attrs
}
