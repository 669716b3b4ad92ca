// Package subscribers keeps the set of chats that receive match notifications.
//
// A Registry is keyed by chat ID: subscribing twice is a no-op and removing an
// unknown chat is not an error. Three backends are provided: a JSON file in
// the data directory (the default), a SQLite table through gorm, and a Redis
// hash. Display names can be encrypted at rest with internal/crypto.
package subscribers
