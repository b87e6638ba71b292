// Package component holds the clients of the external stores used by
// mhire: MongoDB, Redis and Milvus.
package component

import "context"

// Pinger is implemented by every component client and drives /healthz.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}
