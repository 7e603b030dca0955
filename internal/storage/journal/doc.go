// Package journal records every Authoritative Event List the
// coordinator merges, keyed by server round, in a Badger database.
//
// The journal is append-only and bounded: entries older than the
// configured retention are pruned as new rounds are written. Operators
// read it back with `framesync-cli journal`.
package journal
