// Package scanner reconciles the persistent file registry against the file
// system.
//
// Reconcile enumerates project files minus the configured ignore sets, removes
// registry records for paths that no longer exist, and inserts or updates a
// record for every live file. Change detection relies exclusively on a SHA-256
// content hash; modification time is tracked as metadata but never decides
// whether a file needs re-annotation.
//
// Files whose extension is in the AIExtensions set get the needs_ai_update
// flag raised when first seen or when their hash changes; everything else is
// tracked for metadata and graph purposes only.
package scanner
