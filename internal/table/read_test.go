package table

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	in := "symbol,Z,mass,stable,note\nH,1,1.008,true,\nHe,2,,true,x\nC,6,12,false,1.50\n"
	tbl, err := ReadCSV(strings.NewReader(in), CSVOptions{Index: "isotope", DTypes: map[string]DType{"symbol": Category}})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	want := map[string]DType{"symbol": Category, "Z": Int64, "mass": Float64, "stable": Bool, "note": String}
	if got := tbl.DTypes(); !reflect.DeepEqual(got, want) {
		t.Errorf("DTypes() = %v, want %v", got, want)
	}
	if tbl.IndexName() != "isotope" {
		t.Errorf("IndexName() = %q", tbl.IndexName())
	}
	if v, _ := tbl.Value("mass", 1); !math.IsNaN(v.(float64)) {
		t.Errorf("missing mass = %v, want NaN", v)
	}
	if v, _ := tbl.Value("note", 2); v != "1.50" {
		t.Errorf("note = %v, want raw text", v)
	}
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name   string
		orient string
		in     string
		names  []string
		cols   []string
	}{
		{"values", "values", `[["H",1,1.008],["He",2,4.0026]]`, []string{"symbol", "Z", "mass"}, []string{"symbol", "Z", "mass"}},
		{"values unnamed", "values", `[["H",1],["He",2]]`, nil, []string{"0", "1"}},
		{"records", "records", `[{"symbol":"H","Z":1,"mass":1.008},{"symbol":"He","Z":2}]`, nil, []string{"symbol", "Z", "mass"}},
		{"columns", "columns", `{"symbol":["H","He"],"Z":[1,2]}`, nil, []string{"symbol", "Z"}},
		{"columns labelled", "", `{"symbol":{"1":"He","0":"H"},"Z":{"0":1,"1":2}}`, nil, []string{"symbol", "Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadJSON(strings.NewReader(tt.in), tt.orient, tt.names...)
			if err != nil {
				t.Fatalf("ReadJSON failed: %v", err)
			}
			if got := tbl.Columns(); !reflect.DeepEqual(got, tt.cols) {
				t.Errorf("Columns() = %v, want %v", got, tt.cols)
			}
			if tbl.NumRows() != 2 {
				t.Errorf("NumRows() = %d, want 2", tbl.NumRows())
			}
			first := tbl.Column(tt.cols[0])
			if first.Value(0) != "H" {
				t.Errorf("first value = %v, want H", first.Value(0))
			}
			if tbl.DType(tt.cols[1]) != Int64 {
				t.Errorf("dtype = %s, want int64", tbl.DType(tt.cols[1]))
			}
		})
	}
	if _, err := ReadJSON(strings.NewReader(`[]`), "split"); err == nil {
		t.Error("expected error for unknown orient")
	}
}

func TestFromRecordsMissingKeys(t *testing.T) {
	tbl, err := FromRecords([]map[string]any{{"a": 1}, {"b": "x"}})
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}
	if tbl.DType("a") != Float64 {
		t.Errorf("dtype(a) = %s, want float64 for an int column with gaps", tbl.DType("a"))
	}
	if got := tbl.Columns(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Columns() = %v", got)
	}
}

func TestJSONLines(t *testing.T) {
	sym, _ := NewColumn("symbol", []string{"H", "He", "H"}).Cast(Category)
	tbl, err := New(
		NewColumn("Z", []int64{1, 2, 1}),
		sym,
		NewColumn("mass", []float64{1.008, math.NaN(), 2.014}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteJSONLines(&buf, tbl); err != nil {
		t.Fatalf("WriteJSONLines failed: %v", err)
	}
	if first, _, _ := strings.Cut(buf.String(), "\n"); first != `{"Z":1,"symbol":"H","mass":1.008}` {
		t.Errorf("first line = %s", first)
	}
	got, err := ReadJSON(strings.NewReader(buf.String()+"\n"), "lines")
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if err := got.Cast("symbol", Category); err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if !got.Equal(tbl) {
		t.Errorf("lines round trip = %v, want %v", got, tbl)
	}
}
