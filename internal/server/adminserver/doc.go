// Package adminserver serves the coordinator's operator surface over
// HTTP: a connect-rpc Status procedure with a JSON codec, Prometheus
// metrics on /metrics and a liveness probe on /healthz.
package adminserver
