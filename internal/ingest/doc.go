// Package ingest implements the local half of the bulk order import
// pipeline: turning a raw uploaded file into validated order-creation
// records ready for submission to the fleet API.
//
// The pipeline runs in three stages, each a pure function of its inputs:
//
//  1. [Decode] converts the file's bytes into text, detecting byte-order
//     marks and falling back to Windows-1252 when UTF-8 decoding shows
//     replacement characters (common for files exported from legacy
//     Windows spreadsheet tools).
//  2. [ParseTable] splits the text into rows, sniffs the field delimiter,
//     normalizes header names so decorated headers like "Dirección" resolve
//     to their canonical keys, and checks the required column set against
//     the tenant's [CapabilityProfile].
//  3. [MapRow] converts one raw row into an [ImportCandidate] or a
//     [SkipRecord] with a human-readable reason.
//
// Nothing in this package performs I/O or holds state between calls. The
// CapabilityProfile is always an explicit parameter; the required-column
// computation is a pure function of it.
//
// # Skip records
//
// Every row that does not become an ImportCandidate produces a SkipRecord,
// including rows the parser drops for having too few columns. Skip reasons
// are written in Spanish because they are shown verbatim to dispatch
// operators ("PE1234: faltan coordenadas").
package ingest
