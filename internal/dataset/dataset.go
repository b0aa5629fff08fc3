package dataset

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/exa-analytics/exa/internal/config"
	exaerrors "github.com/exa-analytics/exa/internal/errors"
	"github.com/exa-analytics/exa/internal/table"
)

// Dataset wraps a table with the schema it must satisfy and the source it is
// produced by. The table is produced lazily on first access and cached.
//
// Dataset is not safe for concurrent use.
type Dataset struct {
	// Name is the base file name used for persistence.
	Name string
	// Meta is free-form metadata, persisted but never validated.
	Meta map[string]any
	// CallArgs and CallKws are passed to the source.
	CallArgs []any
	CallKws  map[string]any
	// Index names the row index of the table.
	Index string
	// Indexes lists the columns whose combined values must be unique. Use
	// SetIndexes to keep the cardinal among them.
	Indexes []string
	// Columns lists the columns the table must contain.
	Columns []string
	// Categories maps columns to their natural type. Those columns are
	// cached with a categorical encoding.
	Categories map[string]table.DType

	cardinal   string
	source     Func
	sourceName string

	cfg      *config.Config
	resolver Resolver
	logger   *slog.Logger

	cache Payload
}

// Option configures a Dataset built by New.
type Option func(*builder)

type builder struct {
	d        *Dataset
	setters  []func(*Dataset) error
	cardinal *string
	payload  *Payload
}

// New creates a Dataset. Options are applied in order, then the cardinal is
// validated and finally any initial table is validated and cached.
func New(opts ...Option) (*Dataset, error) {
	b := &builder{d: &Dataset{
		Meta:       map[string]any{},
		CallArgs:   []any{},
		CallKws:    map[string]any{},
		Indexes:    []string{},
		Columns:    []string{},
		Categories: map[string]table.DType{},
	}}
	for _, opt := range opts {
		opt(b)
	}
	d := b.d
	for _, set := range b.setters {
		if err := set(d); err != nil {
			return nil, err
		}
	}
	if b.cardinal != nil {
		if err := d.SetCardinal(*b.cardinal); err != nil {
			return nil, err
		}
	}
	if b.payload != nil {
		if _, err := d.SetData(*b.payload); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// WithName sets the dataset name.
func WithName(name string) Option {
	return func(b *builder) { b.d.Name = name }
}

// WithMeta sets the metadata.
func WithMeta(meta map[string]any) Option {
	return func(b *builder) { b.d.Meta = meta }
}

// WithSource sets the source function.
func WithSource(fn Func) Option {
	return func(b *builder) {
		b.setters = append(b.setters, func(d *Dataset) error {
			d.SetSource(fn)
			return nil
		})
	}
}

// WithSourceName sets the source by dotted name.
func WithSourceName(name string) Option {
	return func(b *builder) {
		b.setters = append(b.setters, func(d *Dataset) error { return d.SetSourceName(name) })
	}
}

// WithCallArgs sets the positional source arguments.
func WithCallArgs(args ...any) Option {
	return func(b *builder) { b.d.CallArgs = args }
}

// WithCallKws sets the keyword source arguments.
func WithCallKws(kws map[string]any) Option {
	return func(b *builder) { b.d.CallKws = kws }
}

// WithCardinal sets the cardinal column. It is validated after every other
// option.
func WithCardinal(c string) Option {
	return func(b *builder) { b.cardinal = &c }
}

// WithIndex sets the row index name.
func WithIndex(index string) Option {
	return func(b *builder) { b.d.Index = index }
}

// WithIndexes sets the uniqueness key columns.
func WithIndexes(cols ...string) Option {
	return func(b *builder) {
		b.setters = append(b.setters, func(d *Dataset) error { return d.SetIndexes(cols...) })
	}
}

// WithColumns sets the required columns.
func WithColumns(cols ...string) Option {
	return func(b *builder) { b.d.Columns = cols }
}

// WithCategories sets the categorical columns and their natural types.
func WithCategories(cats map[string]table.DType) Option {
	return func(b *builder) { b.d.Categories = cats }
}

// WithTable sets an initial table, validated once the dataset is
// configured.
func WithTable(t *table.Table) Option {
	return func(b *builder) {
		p := TablePayload(t)
		b.payload = &p
	}
}

// WithPayload sets an initial payload.
func WithPayload(p Payload) Option {
	return func(b *builder) { b.payload = &p }
}

// WithConfig overrides the process-wide configuration.
func WithConfig(c *config.Config) Option {
	return func(b *builder) { b.d.cfg = c }
}

// WithResolver sets the resolver used for dotted source names.
func WithResolver(r Resolver) Option {
	return func(b *builder) { b.d.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *builder) { b.d.logger = l }
}

func (d *Dataset) config() *config.Config {
	if d.cfg != nil {
		return d.cfg
	}
	return config.Default()
}

func (d *Dataset) resolve() Resolver {
	if d.resolver != nil {
		return d.resolver
	}
	return DefaultRegistry
}

func (d *Dataset) log() *slog.Logger {
	l := d.logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("dataset", d.Name)
}

// Source returns the source function, or nil.
func (d *Dataset) Source() Func {
	return d.source
}

// SourceName returns the dotted name of the source, or "".
func (d *Dataset) SourceName() string {
	return d.sourceName
}

// SetSource sets the source function. A nil fn clears the cache and the
// call arguments. The persisted name is looked up in the resolver; when fn
// has no unambiguous name it is left empty and SetSourceName should be used
// instead.
func (d *Dataset) SetSource(fn Func) {
	if fn == nil {
		d.source = nil
		d.sourceName = ""
		d.cache = Empty()
		d.CallArgs = []any{}
		d.CallKws = map[string]any{}
		return
	}
	d.source = fn
	if n, ok := d.resolve().(interface{ NameOf(Func) string }); ok {
		d.sourceName = n.NameOf(fn)
	} else {
		d.sourceName = DefaultRegistry.NameOf(fn)
	}
	if d.sourceName == "" {
		d.log().Warn("source has no unambiguous name and will not be persisted")
	}
}

// SetSourceName resolves name and sets it as the source.
func (d *Dataset) SetSourceName(name string) error {
	d.log().Debug("resolving source", "source", name)
	fn, err := d.resolve().Resolve(name)
	if err != nil {
		d.log().Error("could not resolve source", "source", name, "err", err)
		return exaerrors.Configuration("source", "source must be importable").Wrap(err)
	}
	d.source = fn
	d.sourceName = name
	return nil
}

// SetSourceValue sets the source from a loosely typed value: nil, a dotted
// name, a Func, or a function returning a plain value.
func (d *Dataset) SetSourceValue(v any) error {
	switch x := v.(type) {
	case nil:
		d.SetSource(nil)
		return nil
	case string:
		return d.SetSourceName(x)
	case Func:
		d.SetSource(x)
		return nil
	case func([]any, map[string]any) (Payload, error):
		d.SetSource(x)
		return nil
	case func([]any, map[string]any) (any, error):
		d.SetSource(Adapt(x))
		return nil
	default:
		return exaerrors.Configuration("source", "source must be callable")
	}
}

// Cardinal returns the cardinal column.
func (d *Dataset) Cardinal() string {
	return d.cardinal
}

// SetCardinal sets the column shared as a join key across datasets. When
// Indexes is non-empty it must be one of them.
// An empty c unsets it.
func (d *Dataset) SetCardinal(c string) error {
	if c != "" && len(d.Indexes) > 0 && !slices.Contains(d.Indexes, c) {
		return exaerrors.Configuration("cardinal", fmt.Sprintf("%s not in %v", c, d.Indexes))
	}
	d.cardinal = c
	return nil
}

// SetIndexes sets the uniqueness key columns. A cardinal that is set must be
// one of them.
func (d *Dataset) SetIndexes(cols ...string) error {
	if d.cardinal != "" && len(cols) > 0 && !slices.Contains(cols, d.cardinal) {
		return exaerrors.Configuration("indexes", fmt.Sprintf("cardinal %s not in %v", d.cardinal, cols))
	}
	if cols == nil {
		cols = []string{}
	}
	d.Indexes = cols
	return nil
}

// Set assigns a configuration field by its manifest key. Values are
// converted from their decoded YAML form. Unknown keys are logged and
// ignored.
func (d *Dataset) Set(key string, value any) error {
	var err error
	switch key {
	case "name":
		d.Name, err = asString(key, value)
	case "meta":
		d.Meta, err = asMap(key, value)
	case "source":
		err = d.SetSourceValue(value)
	case "call_args":
		d.CallArgs, err = asList(key, value)
	case "call_kws":
		d.CallKws, err = asMap(key, value)
	case "cardinal":
		var c string
		if c, err = asString(key, value); err == nil {
			err = d.SetCardinal(c)
		}
	case "index":
		d.Index, err = asString(key, value)
	case "indexes":
		var cols []string
		if cols, err = asStrings(key, value); err == nil {
			err = d.SetIndexes(cols...)
		}
	case "columns":
		d.Columns, err = asStrings(key, value)
	case "categories":
		d.Categories, err = asCategories(value)
	default:
		d.log().Warn("ignoring unknown attribute", "key", key)
	}
	return err
}

// Data returns the cached payload, calling the source when nothing is
// cached. The payload is validated on every call.
func (d *Dataset) Data() (Payload, error) {
	return d.data(nil, true)
}

// Refresh discards the cache and calls the source again.
func (d *Dataset) Refresh() (Payload, error) {
	return d.data(nil, false)
}

// SetData validates p and caches it. An empty p behaves like Data.
func (d *Dataset) SetData(p Payload) (Payload, error) {
	return d.data(&p, true)
}

// SetTable validates t and caches it.
func (d *Dataset) SetTable(t *table.Table) (*table.Table, error) {
	p, err := d.SetData(TablePayload(t))
	if err != nil {
		return nil, err
	}
	out, _ := p.Table()
	return out, nil
}

// Table returns the cached table, or nil when the payload is not a table.
func (d *Dataset) Table() (*table.Table, error) {
	p, err := d.Data()
	if err != nil {
		return nil, err
	}
	t, _ := p.Table()
	return t, nil
}

// Cached reports whether a payload is cached.
func (d *Dataset) Cached() bool {
	return !d.cache.IsEmpty()
}

func (d *Dataset) data(p *Payload, cache bool) (Payload, error) {
	cur := d.cache
	if !cache {
		cur = Empty()
	}
	if p != nil && !p.IsEmpty() {
		cur = *p
	}
	if cur.IsEmpty() {
		var err error
		if cur, err = d.call(); err != nil {
			return Payload{}, err
		}
	}
	v, err := d.validate(cur, false)
	if err != nil {
		return Payload{}, err
	}
	d.cache = v
	return v, nil
}

// call invokes the source, or logs when there is none.
func (d *Dataset) call() (Payload, error) {
	if d.source == nil {
		d.log().Warn("no source to call")
		return Empty(), nil
	}
	d.log().Debug("calling source", "source", d.sourceName)
	p, err := d.source(d.CallArgs, d.CallKws)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to call source %s: %w", d.sourceName, err)
	}
	return p, nil
}

// GroupBy groups the table by cols, defaulting to Indexes. It returns nil
// when there is no table or nothing to group by.
func (d *Dataset) GroupBy(cols ...string) (*table.Groups, error) {
	if len(cols) == 0 {
		cols = d.Indexes
	}
	t, err := d.Table()
	if err != nil {
		return nil, err
	}
	if t == nil {
		d.log().Warn("no table to group by")
		return nil, nil
	}
	if len(cols) == 0 {
		d.log().Warn("no columns to group by")
		return nil, nil
	}
	return t.GroupBy(cols...)
}

// Memory returns the approximate bytes held by the table, or 0.
func (d *Dataset) Memory() (int64, error) {
	t, err := d.Table()
	if err != nil || t == nil {
		return 0, err
	}
	return t.Memory(), nil
}

// MemoryUsage returns the approximate bytes held by each column, or nil.
func (d *Dataset) MemoryUsage() (map[string]int64, error) {
	t, err := d.Table()
	if err != nil || t == nil {
		return nil, err
	}
	return t.MemoryUsage(), nil
}

// Copy returns a dataset with a deep copy of the configuration and of the
// payload. The copy is validated like a fresh dataset.
func (d *Dataset) Copy() (*Dataset, error) {
	p, err := d.Data()
	if err != nil {
		return nil, err
	}
	c := d.cloneConfig()
	if _, err := c.SetData(p.copy()); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *Dataset) cloneConfig() *Dataset {
	return &Dataset{
		Name:       d.Name,
		Meta:       deepCopyMap(d.Meta),
		CallArgs:   deepCopyList(d.CallArgs),
		CallKws:    deepCopyMap(d.CallKws),
		Index:      d.Index,
		Indexes:    slices.Clone(d.Indexes),
		Columns:    slices.Clone(d.Columns),
		Categories: maps.Clone(d.Categories),
		cardinal:   d.cardinal,
		source:     d.source,
		sourceName: d.sourceName,
		cfg:        d.cfg,
		resolver:   d.resolver,
		logger:     d.logger,
	}
}

// Equal reports whether both datasets share every configuration field. The
// source is compared by name and the cache is ignored. Meta and the call
// arguments are compared in their persisted form, so []string and []any
// holding the same strings are equal.
func (d *Dataset) Equal(o *Dataset) bool {
	return d.Name == o.Name &&
		samePersisted(orEmptyMap(d.Meta), orEmptyMap(o.Meta)) &&
		samePersisted(orEmptyList(d.CallArgs), orEmptyList(o.CallArgs)) &&
		samePersisted(orEmptyMap(d.CallKws), orEmptyMap(o.CallKws)) &&
		d.cardinal == o.cardinal &&
		d.Index == o.Index &&
		slices.Equal(d.Indexes, o.Indexes) &&
		sameSet(d.Columns, o.Columns) &&
		maps.Equal(d.Categories, o.Categories) &&
		d.sourceName == o.sourceName
}

// String returns the name and the shape of the cached table. It never calls
// the source.
func (d *Dataset) String() string {
	var b strings.Builder
	b.WriteString(d.Name)
	if t, ok := d.cache.Table(); ok {
		r, c := t.Shape()
		fmt.Fprintf(&b, "(%d, %d)", r, c)
	}
	return b.String()
}

func sameSet(a, b []string) bool {
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(slices.Compact(x), slices.Compact(y))
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyList(l []any) []any {
	if l == nil {
		return nil
	}
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		return deepCopyList(x)
	case []string:
		return slices.Clone(x)
	default:
		return v
	}
}
