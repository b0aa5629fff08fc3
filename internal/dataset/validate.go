package dataset

import (
	"errors"
	"fmt"
	"slices"

	exaerrors "github.com/exa-analytics/exa/internal/errors"
	"github.com/exa-analytics/exa/internal/table"
)

// validate checks p against the schema and applies categorical encoding in
// the direction given by natural. Opaque payloads pass through unchanged.
func (d *Dataset) validate(p Payload, natural bool) (Payload, error) {
	t, ok := p.Table()
	if !ok {
		if p.Kind() == KindOpaque {
			d.log().Warn("data not a table, skipping validation", "type", fmt.Sprintf("%T", p.Value()))
		}
		return p, nil
	}
	if d.cardinal != "" && len(d.Indexes) > 0 && !slices.Contains(d.Indexes, d.cardinal) {
		return Payload{}, exaerrors.Configuration("cardinal", fmt.Sprintf("%s not in %v", d.cardinal, d.Indexes))
	}
	var missing []string
	for _, c := range d.Columns {
		if !t.HasColumn(c) && !slices.Contains(missing, c) {
			missing = append(missing, c)
		}
	}
	for _, c := range d.Indexes {
		if !t.HasColumn(c) && !slices.Contains(missing, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return Payload{}, exaerrors.RequiredColumn(missing, d.Name)
	}
	if err := d.setCategories(t, natural); err != nil {
		return Payload{}, err
	}
	if d.Index != "" {
		t.SetIndexName(d.Index)
	}
	if len(d.Indexes) > 0 {
		n, err := t.CountDuplicated(d.Indexes...)
		if err != nil {
			return Payload{}, err
		}
		if n > 0 {
			return Payload{}, exaerrors.Uniqueness(slices.Clone(d.Indexes), d.Name, n)
		}
	}
	return p, nil
}

// setCategories casts every declared categorical column present in t to its
// natural type when natural is set, or to its categorical encoding
// otherwise. Columns are visited in sorted order.
func (d *Dataset) setCategories(t *table.Table, natural bool) error {
	cols := make([]string, 0, len(d.Categories))
	for c := range d.Categories {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	var errs []error
	for _, col := range cols {
		typ := d.Categories[col]
		if !typ.IsNatural() {
			errs = append(errs, exaerrors.Configuration("categories", fmt.Sprintf("%s: %q is not a natural type", col, typ)))
			continue
		}
		c := t.Column(col)
		if c == nil {
			d.log().Debug("categorical column not in data", "column", col)
			continue
		}
		if natural {
			if err := t.Cast(col, typ); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if c.IsCategorical() && c.NaturalType() == typ {
			continue
		}
		// Levels take the natural type so that a round trip through the
		// natural view restores the same encoding.
		if err := t.Cast(col, typ); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := t.Cast(col, table.Category); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to set categories: %w", err)
	}
	return nil
}

// UnsetCategories calls fn with the table in its natural view: declared
// categorical columns hold their natural type. When fn returns, errors or
// panics, the categorical encoding is restored and the table re-cached.
func (d *Dataset) UnsetCategories(fn func(Payload) error) (err error) {
	p, err := d.Data()
	if err != nil {
		return err
	}
	t, isTable := p.Table()
	defer func() {
		r := recover()
		if isTable {
			if serr := d.setCategories(t, false); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		if !p.IsEmpty() {
			if _, serr := d.SetData(p); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		if r != nil {
			panic(r)
		}
	}()
	if isTable {
		if err := d.setCategories(t, true); err != nil {
			return err
		}
	}
	return fn(p)
}
