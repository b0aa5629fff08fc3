package table

import (
	"math"
	"reflect"
	"testing"
)

func TestDuplicated(t *testing.T) {
	tbl, err := New(
		NewColumn("a", []int64{1, 1, 2, 1}),
		NewColumn("b", []string{"x", "x", "x", "y"}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tests := []struct {
		cols []string
		want []bool
	}{
		{[]string{"a"}, []bool{false, true, false, true}},
		{[]string{"a", "b"}, []bool{false, true, false, false}},
		{nil, []bool{false, true, false, false}},
		{[]string{"b"}, []bool{false, true, true, false}},
	}
	for _, tt := range tests {
		got, err := tbl.Duplicated(tt.cols...)
		if err != nil {
			t.Fatalf("Duplicated(%v) failed: %v", tt.cols, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Duplicated(%v) = %v, want %v", tt.cols, got, tt.want)
		}
	}
	if n, _ := tbl.CountDuplicated("a"); n != 2 {
		t.Errorf("CountDuplicated(a) = %d, want 2", n)
	}
	if _, err := tbl.Duplicated("c"); err == nil {
		t.Error("expected error for missing column")
	}
}

func TestDuplicatedCategorical(t *testing.T) {
	tbl, err := New(NewCategorical("s", []string{"a", "b", "a"}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := tbl.Duplicated("s")
	if err != nil {
		t.Fatalf("Duplicated failed: %v", err)
	}
	if !reflect.DeepEqual(got, []bool{false, false, true}) {
		t.Errorf("Duplicated() = %v", got)
	}
}

func TestGroupBy(t *testing.T) {
	tbl, err := New(
		NewColumn("a", []int64{2, 1, 2, 1, 3}),
		NewColumn("b", []float64{3, 4, 3, 5, math.NaN()}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	g, err := tbl.GroupBy("a")
	if err != nil {
		t.Fatalf("GroupBy failed: %v", err)
	}
	if g.NGroups() != 3 {
		t.Fatalf("NGroups() = %d, want 3", g.NGroups())
	}
	if !reflect.DeepEqual(g.Key(0), []any{int64(1)}) || !reflect.DeepEqual(g.Indices(0), []int{1, 3}) {
		t.Errorf("group 0 = %v %v", g.Key(0), g.Indices(0))
	}
	if !reflect.DeepEqual(g.Sizes(), []int{2, 2, 1}) {
		t.Errorf("Sizes() = %v", g.Sizes())
	}
	if sub := g.Group(1); sub.NumRows() != 2 {
		t.Errorf("Group(1) rows = %d", sub.NumRows())
	}

	g, err = tbl.GroupBy("a", "b")
	if err != nil {
		t.Fatalf("GroupBy failed: %v", err)
	}
	// The NaN key row is dropped.
	if g.NGroups() != 3 {
		t.Errorf("NGroups() = %d, want 3", g.NGroups())
	}
	if _, err := tbl.GroupBy(); err == nil {
		t.Error("expected error without columns")
	}
}

func TestSortBy(t *testing.T) {
	tbl, err := New(
		NewColumn("symbol", []string{"O", "H", "H"}),
		NewColumn("A", []int64{16, 2, 1}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sorted, err := tbl.SortBy("symbol", "A")
	if err != nil {
		t.Fatalf("SortBy failed: %v", err)
	}
	got, _ := Values[int64](sorted.Column("A"))
	if !reflect.DeepEqual(got, []int64{1, 2, 16}) {
		t.Errorf("A = %v, want [1 2 16]", got)
	}
}

func TestSignedZeroKeys(t *testing.T) {
	tbl, err := New(NewColumn("x", []float64{0, math.Copysign(0, -1), math.NaN(), math.NaN(), 1}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := tbl.Duplicated("x")
	if err != nil {
		t.Fatalf("Duplicated failed: %v", err)
	}
	if want := []bool{false, true, false, true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("Duplicated(x) = %v, want %v", got, want)
	}
	g, err := tbl.GroupBy("x")
	if err != nil {
		t.Fatalf("GroupBy failed: %v", err)
	}
	if g.NGroups() != 2 || !reflect.DeepEqual(g.Sizes(), []int{2, 1}) {
		t.Errorf("GroupBy(x) sizes = %v, want [2 1]", g.Sizes())
	}
}
