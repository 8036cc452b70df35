// Package inventory exports and re-reads grid attribute inventories as
// Parquet files.
package inventory

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// WriteFile writes rows to path, replacing any existing file.
func WriteFile(path string, rows []model.AttributeRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create parquet file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close parquet file")
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w := parquet.NewGenericWriter[model.AttributeRow](f)
	if _, err := w.Write(rows); err != nil {
		return errors.Wrap(err, "write parquet rows")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "flush parquet writer")
	}
	return nil
}
