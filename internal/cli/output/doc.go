// Package output renders framesync-cli results as a table, JSON or YAML.
//
// Values that know how to lay themselves out implement Tabler; the
// table formatter falls back to YAML for anything else.
package output
