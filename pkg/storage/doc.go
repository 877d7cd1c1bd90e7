// Package storage owns the output directory. Callers pass slash-separated
// paths such as "series/chapter/3.jpg"; the manager resolves them under the
// root, creates parent directories on demand and replaces existing files
// atomically.
package storage
