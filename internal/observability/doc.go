// Package observability builds the zap loggers shared by the gateway
// server and the gatewayctl CLI.
package observability
