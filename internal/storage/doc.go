// Package storage provides JSON-based persistence for the match snapshot.
//
// The snapshot is a single file (snapshot.json) in the data directory,
// replaced atomically on every save by writing a temporary file and renaming
// it over the old one. A missing file means no baseline has been recorded
// yet; a corrupt file is treated the same way and reported as a warning.
package storage
