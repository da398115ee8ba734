// Package annotator runs the annotation pipeline: pending files are annotated
// concurrently under a small cap, then three sequential synthesis rounds
// produce the project-level module graph. Per-file failures are recorded on
// the file record and never abort sibling work; a run's overall progress
// counts every pending file plus one synthesis unit.
package annotator
