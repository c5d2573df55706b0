// Package client implements the xwork CLI commands for talking to a running
// server.
//
// Admin commands (create, list, get, error, deadletter) use the HTTP API at
// the base URL supplied by the caller (XWORK_HTTP). The worker protocol
// commands (acquire, complete, terminate, fail, unacquire, unacquire-all)
// accept --transport=http|grpc; gRPC dials XWORK_GRPC.
//
// Examples:
//
//	xwork job create --topic orders --scope-id p1 --var amount=42
//	xwork job acquire --topic orders --worker w1 --max 5 --wait 30s
//	xwork job complete <id> --worker w1 --var approved=true
//	xwork job fail <id> --worker w1 --retries 2 --retry-timeout 1m --message boom
//	xwork deadletter list --topic orders
//	xwork deadletter requeue <id> --retries 3
package client
