// Package main hosts the terrapipe CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the pipeline
// stages, scene store maintenance, database export/import, and configuration
// scaffolding. Configuration resolution and logger construction are
// centralized in commandContext so subcommands stay declarative; the heavy
// lifting lives in the internal packages.
package main
