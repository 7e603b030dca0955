// Package command provides the framesync-cli commands, built with
// urfave/cli/v2:
//
//   - root.go: application, global flags and CLI config defaults
//   - status.go: coordinator status over the admin API
//   - journal.go: offline inspection of a coordinator round journal
//   - node.go: headless node harness driving the frame lifecycle
//
// Commands write results to App.Writer so they can be captured in tests.
package command
