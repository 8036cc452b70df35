package inventory

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Reader wraps a parquet GenericReader for streaming AttributeRow records.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[model.AttributeRow]
}

// Open opens an inventory file and checks its schema.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet file")
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat parquet file")
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "open parquet")
	}
	if err := ValidateSchema(pf.Schema()); err != nil {
		f.Close()
		return nil, err
	}

	r := parquet.NewGenericReader[model.AttributeRow](pf)
	return &Reader{file: f, reader: r}, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Read reads up to len(rows) records. Returns io.EOF when done.
func (r *Reader) Read(rows []model.AttributeRow) (int, error) {
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return n, errors.Wrap(err, "read parquet rows")
	}
	return n, err
}

// ReadAll reads every row of the file at path.
func ReadAll(path string) ([]model.AttributeRow, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rows := make([]model.AttributeRow, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return rows[:n], nil
}

// Close releases all resources.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
