package main

import (
	"mrms-pull/cmd" // Import the cmd package which contains the CLI command and execution logic
)

// main is the program entry point.
// It delegates to cmd.Execute() which handles command line argument parsing and execution.
//
// mrms-pull is the pull client of the Micro Release Management System:
//   - `mrms-pull --init` writes a default JSON config (server, port, project, version,
//     profile, target directory and auth token) to edit by hand
//   - `mrms-pull` reads that config, asks the server for the release manifest and
//     downloads every listed file under the target directory, one after the other
//
// Error handling strategy:
//   - A missing or unparsable config is reported and the process exits cleanly
//   - Any network or filesystem failure during a pull stops it and exits non-zero
func main() {
	cmd.Execute()
}
