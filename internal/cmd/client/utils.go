package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rzbill/xwork/internal/cmd/client/transports"
)

// BaseURLFunc returns the HTTP API base URL, e.g. http://127.0.0.1:8080.
type BaseURLFunc func() string

// grpcAddrFromEnv returns the gRPC server address from XWORK_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("XWORK_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext dials the xwork gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// workerTransport picks the worker protocol transport from --transport.
func workerTransport(cmd *cobra.Command, baseURL BaseURLFunc) (transports.WorkerTransport, error) {
	name, _ := cmd.Flags().GetString("transport")
	switch name {
	case "", "http":
		return transports.NewHTTPTransport(baseURL), nil
	case "grpc":
		return transports.NewGrpcTransport(dialGRPCContext), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want http or grpc)", name)
	}
}

func defaultWorkerID() string {
	return "worker-" + uuid.NewString()
}

// parseVars turns k=v pairs into a variable map. Values that parse as JSON
// keep their type; anything else is a string.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, raw, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid variable %q (want name=value)", p)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[k] = v
	}
	return out, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
