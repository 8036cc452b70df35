package model

import "strconv"

// EntityGlobal is the entity name of file-level attributes in the
// attribute inventory.
const EntityGlobal = "global"

// AttributeRow is one attribute of a grid file, flattened for bulk loading
// and export. Dimensions are listed with Kind "dimension" and the size as
// value.
type AttributeRow struct {
	RecordID int64  `parquet:"record_id"`
	Entity   string `parquet:"entity"`
	Name     string `parquet:"name"`
	Kind     string `parquet:"kind"`
	Value    string `parquet:"value"`
}

// AttributeColumns returns the COPY column list matching CopyValues.
func AttributeColumns() []string {
	return []string{"record_id", "entity", "name", "kind", "value"}
}

// CopyValues returns the values in COPY column order.
func (r *AttributeRow) CopyValues() []any {
	return []any{r.RecordID, r.Entity, r.Name, r.Kind, r.Value}
}

// InventoryRows flattens meta into attribute rows: dimensions first, then
// global attributes, then every variable's attributes, each sorted by name.
func InventoryRows(recordID int64, meta *GridMetadata) []AttributeRow {
	if meta == nil {
		return nil
	}
	var rows []AttributeRow
	for _, d := range meta.Dimensions {
		rows = append(rows, AttributeRow{
			RecordID: recordID,
			Entity:   EntityGlobal,
			Name:     d.Name,
			Kind:     "dimension",
			Value:    strconv.FormatUint(d.Size, 10),
		})
	}
	rows = appendAttrs(rows, recordID, EntityGlobal, meta.Global)
	for _, v := range meta.Variables {
		rows = appendAttrs(rows, recordID, v.Name, v.Attributes)
	}
	return rows
}

func appendAttrs(rows []AttributeRow, recordID int64, entity string, attrs Attributes) []AttributeRow {
	for _, k := range attrs.Keys() {
		v := attrs[k]
		rows = append(rows, AttributeRow{
			RecordID: recordID,
			Entity:   entity,
			Name:     k,
			Kind:     v.Kind.String(),
			Value:    v.String(),
		})
	}
	return rows
}
