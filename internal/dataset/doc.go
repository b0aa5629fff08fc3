// Package dataset wraps tables with a schema contract, a lazily invoked
// source and a two-file on-disk form.
//
// A [Dataset] is configured with the columns its table must contain, the
// columns that must be unique together, and the columns to cache with a
// categorical encoding. Its table comes from a source function, resolved
// from a dotted name through a [Registry] or set directly, and is produced
// on the first call to [Dataset.Data]. Every access validates the cached
// payload.
//
// # Persistence
//
// [Dataset.Save] writes <name>.qet, the table as Parquet, and <name>.yml,
// the configuration as a YAML [Manifest]. [Dataset.Load] reads both back
// without validating. [FromTarball] does the same from two streams.
//
// # Payloads
//
// A Dataset may hold values other than tables. The [Payload] tag decides
// whether validation, categorical encoding, grouping and memory accounting
// apply.
package dataset
