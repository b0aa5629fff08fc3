// Package script registers functions of interpreted Go files as dataset
// sources.
//
// A script is a single non-main Go file. Every exported top-level function
// with the signature
//
//	func(args []interface{}, kws map[string]interface{}) (interface{}, error)
//
// becomes a source named "<package>.<Func>". Scripts may import the
// standard library and "exa/table" to build tables.
package script

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/table"
)

// Symbols are the packages exposed to scripts in addition to the standard
// library.
var Symbols = interp.Exports{
	"exa/table/table": {
		"Table":       reflect.ValueOf((*table.Table)(nil)),
		"Column":      reflect.ValueOf((*table.Column)(nil)),
		"New":         reflect.ValueOf(table.New),
		"FromValues":  reflect.ValueOf(table.FromValues),
		"FromRecords": reflect.ValueOf(table.FromRecords),
		"FromColumns": reflect.ValueOf(table.FromColumns),
		"Int64s":      reflect.ValueOf(table.NewColumn[int64]),
		"Float64s":    reflect.ValueOf(table.NewColumn[float64]),
		"Strings":     reflect.ValueOf(table.NewColumn[string]),
		"Bools":       reflect.ValueOf(table.NewColumn[bool]),
	},
}

type sourceFunc = func([]any, map[string]any) (any, error)

// Interpreter evaluates scripts and resolves their functions.
type Interpreter struct {
	i   *interp.Interpreter
	reg *dataset.Registry
	out bytes.Buffer
}

// New returns an interpreter with the standard library and Symbols loaded.
func New() (*Interpreter, error) {
	s := &Interpreter{reg: dataset.NewRegistry()}
	s.i = interp.New(interp.Options{Stdout: &s.out, Stderr: &s.out})
	if err := s.i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if err := s.i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("failed to load exa symbols: %w", err)
	}
	return s, nil
}

// LoadFile evaluates the script at path. See LoadSource.
func (s *Interpreter) LoadFile(path string) ([]string, error) {
	src, err := os.ReadFile(path) //nolint:gosec // G304: caller supplied script
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return s.LoadSource(path, string(src))
}

// LoadSource evaluates src and registers its source functions. It returns
// their dotted names.
func (s *Interpreter) LoadSource(filename, src string) ([]string, error) {
	pkg, funcs, err := discover(filename, src)
	if err != nil {
		return nil, err
	}
	if pkg == "main" {
		return nil, fmt.Errorf("script %s: package main cannot provide sources", filename)
	}
	if _, err := s.i.Eval(src); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", filename, err)
	}
	names := make([]string, 0, len(funcs))
	for _, fn := range funcs {
		v, err := s.i.Eval(pkg + "." + fn)
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s.%s: %w", pkg, fn, err)
		}
		f, ok := v.Interface().(sourceFunc)
		if !ok {
			slog.Warn("skipping script function", "func", pkg+"."+fn, "type", v.Type().String())
			continue
		}
		name := pkg + "." + fn
		if err := s.reg.Register(name, dataset.Adapt(f)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	slog.Debug("loaded script", "file", filename, "sources", names)
	return names, nil
}

// Resolve resolves a dotted name among the loaded sources.
func (s *Interpreter) Resolve(name string) (dataset.Func, error) {
	return s.reg.Resolve(name)
}

// Names lists the loaded sources.
func (s *Interpreter) Names() []string {
	return s.reg.Names()
}

// Output returns and clears what scripts printed.
func (s *Interpreter) Output() string {
	defer s.out.Reset()
	return s.out.String()
}

// WriteOutput copies what scripts printed to w and clears it.
func (s *Interpreter) WriteOutput(w io.Writer) error {
	_, err := s.out.WriteTo(w)
	return err
}

// discover returns the package name and the exported functions of src that
// have the source signature shape.
func discover(filename, src string) (string, []string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	var funcs []string
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || !fd.Name.IsExported() {
			continue
		}
		if fd.Type.Params.NumFields() != 2 || fd.Type.Results.NumFields() != 2 {
			continue
		}
		funcs = append(funcs, fd.Name.Name)
	}
	return f.Name.Name, funcs, nil
}
