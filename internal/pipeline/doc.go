// Package pipeline orchestrates scene processing stages against the scene
// store. Each stage scans the store for eligible scenes, fans work out to a
// bounded worker pool, and commits per-scene results atomically so an
// interrupted run resumes where it stopped.
package pipeline
