// Package simplefile provides file ingestion and lookup on top of pluggable
// storage drivers.
//
// A Service acquires bytes from a local path or an http(s) URL into a temp
// file, enforces the upload ceiling, sniffs the MIME type from content and
// hands the temp file to the active Driver. Drivers (memory, Postgres,
// Badger, S3) are provided under subpackages and are selected by name through
// a Registry; the chosen driver is constructed once, on first use.
//
// Records
//
// Drivers return a Handle exposing persisted fields through GetField and
// SetField. The service wraps each handle into a Record: a *File, or an
// *Image when the driver detected image content. File adds the computed url
// and thumb_url fields and the client-facing AsJSONable view; fields a
// backend does not implement are left out of that view. The uid is assigned
// by the driver at creation and cannot be changed afterwards. Setter calls
// are not durable until Save.
package simplefile
