// Package server exposes the watcher over HTTP for uptime monitors and
// calendar clients, and hosts the Telegram webhook route in webhook mode.
package server
