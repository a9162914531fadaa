// Package main hosts the beatcut CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into runs of the internal
// packages: analyzing a track into a reusable project, generating a
// beat-synchronized video, inspecting the clip library and its usage
// history, browsing past runs, and checking the environment. Configuration
// is resolved once per invocation and shared by every subcommand.
//
// Keep this package thin. New behaviour belongs in internal packages first
// and is surfaced here as a command or flag.
package main
