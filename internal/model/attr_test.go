package model

import "testing"

func TestAttrFromNative(t *testing.T) {
	cases := []struct {
		in   any
		want AttrValue
	}{
		{nil, Absent()},
		{"EPSG:4326", StringAttr("EPSG:4326")},
		{int32(4326), IntAttr(4326)},
		{int16(-3), IntAttr(-3)},
		{uint16(7), IntAttr(7)},
		{float32(0.5), FloatAttr(0.5)},
		{[]int32{3857}, IntAttr(3857)},
		{[]float64{1, 2}, Absent()},
		{[]string{"x"}, StringAttr("x")},
		{struct{}{}, Absent()},
	}
	for _, tc := range cases {
		if got := AttrFromNative(tc.in); got != tc.want {
			t.Errorf("AttrFromNative(%#v) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestAttrValueString(t *testing.T) {
	if got := FloatAttr(298.257223563).String(); got != "298.257223563" {
		t.Errorf("float string: %s", got)
	}
	if got := IntAttr(4326).String(); got != "4326" {
		t.Errorf("int string: %s", got)
	}
	if n, ok := FloatAttr(4326).IntegralFloat(); !ok || n != 4326 {
		t.Errorf("IntegralFloat: %d %v", n, ok)
	}
	if _, ok := FloatAttr(1.5).IntegralFloat(); ok {
		t.Error("1.5 is not integral")
	}
}

func TestExecutionCompleted(t *testing.T) {
	e := &PipelineExecution{
		Stages:  []StageID{StageStartImport, StageImportResource, StagePublishResource},
		Current: 1,
	}
	if got := e.Completed(); len(got) != 1 || got[0] != StageStartImport {
		t.Errorf("Completed = %v", got)
	}
	if e.CurrentStage() != StageImportResource {
		t.Errorf("CurrentStage = %s", e.CurrentStage())
	}
	e.Current = 3
	if e.CurrentStage() != "" || len(e.Completed()) != 3 {
		t.Errorf("past end: %q %v", e.CurrentStage(), e.Completed())
	}
	if !StateRollbackFailed.Terminal() || StateFailed.Terminal() {
		t.Error("terminal states")
	}
}

func TestExecutionTouched(t *testing.T) {
	e := &PipelineExecution{
		Stages:  []StageID{StageStartImport, StageImportResource, StagePublishResource},
		Current: 1,
	}
	if got := e.Touched(); len(got) != 2 || got[1] != StageImportResource {
		t.Errorf("Touched = %v", got)
	}
	e.Current = 3
	if got := e.Touched(); len(got) != 3 {
		t.Errorf("Touched past end = %v", got)
	}
}

func TestInventoryRows(t *testing.T) {
	meta := &GridMetadata{
		Dimensions: []Dimension{{Name: "lat", Size: 180}},
		Global:     Attributes{"title": StringAttr("sst"), "epsg": IntAttr(4326)},
		Variables: []Variable{
			{Name: "sst", Attributes: Attributes{"scale_factor": FloatAttr(0.01)}},
		},
	}
	rows := InventoryRows(7, meta)
	want := []AttributeRow{
		{7, EntityGlobal, "lat", "dimension", "180"},
		{7, EntityGlobal, "epsg", "int", "4326"},
		{7, EntityGlobal, "title", "string", "sst"},
		{7, "sst", "scale_factor", "float", "0.01"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
	if InventoryRows(1, nil) != nil {
		t.Error("nil metadata yields no rows")
	}
	if got := rows[0].CopyValues(); len(got) != len(AttributeColumns()) {
		t.Errorf("CopyValues has %d values", len(got))
	}
}
