// Package table provides an in-memory columnar table with named, typed
// columns and ordered rows.
//
// # Column types
//
// Columns hold one of four natural types ([Int64], [Float64], [String],
// [Bool]) or the [Category] encoding, a dictionary of sorted levels in their
// natural type plus one int32 code per row. Missing numeric values are NaN;
// a categorical code of -1 marks a missing level.
//
// # Casting
//
// [Column.Cast] converts between natural types following SQLite-like
// affinity rules (numbers to text, numeric text to numbers, booleans to 0/1)
// and between a natural type and its categorical encoding. Casting to
// Category and back is lossless.
//
// # File formats
//
// [WriteParquet] and [ReadParquet] persist a table as a Parquet file through
// Arrow. Categorical columns, natural types and the index name are recorded
// in the file's key/value metadata so that a round-trip restores the table
// exactly. [ReadCSV] and [ReadJSON] load tables from text formats with
// per-column type inference.
package table
