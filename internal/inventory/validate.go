package inventory

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ValidateSchema checks that the file carries every inventory column.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}

	var missing []string
	for _, col := range model.AttributeColumns() {
		if !columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("not an attribute inventory: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}
