// Package arscwriter builds and serializes Android binary resource tables
// (resources.arsc). It takes an in-memory table of packages, types and
// per-configuration values and flattens it into the chunk stream the
// runtime loader maps and indexes without full deserialization, including
// sparse and compact entry encodings, entry deduplication, shared-library
// maps, overlayable policies and staged-id aliases.
//
// The package also ships a conformant reader (ParseTable) and helpers to
// pull a table straight out of an APK, including archives that are broken
// in ways Android tolerates.
package arscwriter
