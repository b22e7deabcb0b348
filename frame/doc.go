// Package frame provides the tabular value returned by queries and its
// compressed, self-describing byte encoding.
//
// A Frame is a set of equally sized, typed columns plus an index column.
// Encode and Decode round-trip a Frame exactly: column names, kinds, values,
// row order and index survive unchanged. The encoding (gzip over canonical
// CBOR) is what the disk cache stores and what isolated workers return.
package frame
