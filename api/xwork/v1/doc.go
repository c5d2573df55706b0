// Package xworkv1 defines the xwork.v1.ExternalWorker gRPC service: its
// messages, a JSON codec and a typed client. Messages travel as JSON under
// the "json" content subtype.
package xworkv1
