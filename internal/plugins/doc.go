// Package plugins runs user-configured analysis steps against processed
// scenes. Plugins are resolved from a static registry at startup, configured
// from free-form parameter maps, and executed outside the main stage
// pipeline. A plugin failure is recorded against the scene, never propagated.
package plugins
