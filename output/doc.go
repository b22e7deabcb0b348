// Package output renders encoded query results for callers: CSV (the
// default), column-oriented JSON, an HTML table, or the binary frame payload
// itself. Parse reads each text form back into a frame.
package output
