package dataset

import (
	"errors"
	"slices"
	"strings"
	"testing"

	exaerrors "github.com/exa-analytics/exa/internal/errors"
)

func loadConstants(args []any, kws map[string]any) (Payload, error) {
	return Opaque("constants"), nil
}

func loadUnits(args []any, kws map[string]any) (Payload, error) {
	return Opaque("units"), nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("exa.reference.load_constants", loadConstants)
	r.MustRegister("exa.reference.load_units", loadUnits)

	tests := []struct {
		name    string
		wantErr error
	}{
		{"exa.reference.load_constants", nil},
		{"exa.reference.load_units", nil},
		{"exa.nowhere.load_units", ErrUnknownModule},
		{"exa.reference.dne", ErrUnknownAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := r.Resolve(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && fn == nil {
				t.Error("Resolve() returned a nil function")
			}
		})
	}
	for _, bad := range []string{"", "noDot", ".attr", "mod."} {
		if _, err := r.Resolve(bad); err == nil {
			t.Errorf("Resolve(%q) succeeded", bad)
		}
	}
	if err := r.Register("x.y", nil); err == nil {
		t.Error("Register(nil) succeeded")
	}
	want := []string{"exa.reference.load_constants", "exa.reference.load_units"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistryNameOf(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("exa.reference.load_units", loadUnits)
	if got := r.NameOf(loadUnits); got != "exa.reference.load_units" {
		t.Errorf("NameOf() = %q", got)
	}
	if got := r.NameOf(loadConstants); !strings.HasSuffix(got, "loadConstants") {
		t.Errorf("NameOf(unregistered) = %q, want Go symbol", got)
	}
	if got := r.NameOf(nil); got != "" {
		t.Errorf("NameOf(nil) = %q", got)
	}

	d, err := New(WithResolver(r), WithSource(loadUnits))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.SourceName() != "exa.reference.load_units" {
		t.Errorf("SourceName() = %q", d.SourceName())
	}
	if d.Manifest().Source != "exa.reference.load_units" {
		t.Errorf("Manifest().Source = %q", d.Manifest().Source)
	}
}

func TestMultiResolver(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.MustRegister("pkg.constants", loadConstants)
	b.MustRegister("script.units", loadUnits)
	m := MultiResolver{a, b}
	for _, name := range []string{"pkg.constants", "script.units"} {
		if _, err := m.Resolve(name); err != nil {
			t.Errorf("Resolve(%q) failed: %v", name, err)
		}
	}
	_, err := m.Resolve("other.fn")
	if !errors.Is(err, ErrUnknownModule) {
		t.Errorf("Resolve() = %v, want unknown module", err)
	}

	d, err := New(WithResolver(m))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = d.SetSourceName("other.fn")
	if !errors.Is(err, exaerrors.ErrConfiguration) || !errors.Is(err, ErrUnknownModule) {
		t.Errorf("SetSourceName() = %v, want configuration error wrapping unknown module", err)
	}
	if err := d.SetSourceName("script.units"); err != nil {
		t.Fatalf("SetSourceName failed: %v", err)
	}
	p, err := d.Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if p.Value() != "units" {
		t.Errorf("Data() = %v", p.Value())
	}
	if _, err := (MultiResolver{}).Resolve("a.b"); !errors.Is(err, ErrUnknownModule) {
		t.Errorf("empty MultiResolver Resolve() = %v", err)
	}
}

func TestRegistryNameOfSharedEntry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"m.one", "m.two"} {
		r.MustRegister(name, Adapt(func([]any, map[string]any) (any, error) { return name, nil }))
	}
	one, err := r.Resolve("m.one")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := r.NameOf(one); got != "" {
		t.Errorf("NameOf(shared entry) = %q, want \"\"", got)
	}

	d, err := New(WithResolver(r), WithSource(one))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.Manifest().Source != "" {
		t.Errorf("Manifest().Source = %q, want unset", d.Manifest().Source)
	}
	if err := d.SetSourceName("m.one"); err != nil {
		t.Fatalf("SetSourceName failed: %v", err)
	}
	if d.Manifest().Source != "m.one" {
		t.Errorf("Manifest().Source = %q, want m.one", d.Manifest().Source)
	}
	p, err := d.Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if p.Value() != "m.one" {
		t.Errorf("Data() = %v, want m.one", p.Value())
	}

	// Replacing a name releases it from the old entry point.
	r.MustRegister("m.two", loadUnits)
	if got := r.NameOf(one); got != "m.one" {
		t.Errorf("NameOf() after replace = %q, want m.one", got)
	}
	if got := r.NameOf(loadUnits); got != "m.two" {
		t.Errorf("NameOf(loadUnits) = %q, want m.two", got)
	}
}
