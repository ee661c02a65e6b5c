// Package textutil provides text processing utilities for filename
// sanitization and job identity slugs.
//
// Job identities embed a sanitized form of the source filename, so the
// sanitizers here must produce stable, filesystem-safe, ASCII-only tokens
// regardless of the source language. Diacritics are folded via Unicode
// decomposition before tokenization.
package textutil
