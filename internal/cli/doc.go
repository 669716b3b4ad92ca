// Package cli implements the command-line interface for ticketwatch.
//
// The cli package provides the Cobra-based commands: run starts the
// watcher loop together with the Telegram bot and the HTTP server, check
// performs a single read-only check and reports the differences as text or
// JSON, and version prints the build version. It wires configuration,
// scraping, storage, subscribers and notification delivery together.
package cli
