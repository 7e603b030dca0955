// Package buildinfo provides build information for framesync binaries.
//
// Usage:
//
//	go build -ldflags "-X github.com/yndnr/framesync-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
