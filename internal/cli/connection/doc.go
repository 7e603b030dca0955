// Package connection provides the framesync-cli client of the
// coordinator admin API.
package connection
