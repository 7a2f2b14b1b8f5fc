// Package urlkeep imports web pages into a personal knowledge base as
// first-class URL records. It canonicalizes URLs for deduplication, extracts
// page metadata through pluggable extractors, merges the result into the
// record store without clobbering existing records, and reconciles a durable
// batch of pending imports.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, goquery/, http/).
package urlkeep
