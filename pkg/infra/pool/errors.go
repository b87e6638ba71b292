// Package pool wraps ants worker pools for bounded fan-out work such as
// document parsing during ingestion.
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool: closed")
	// ErrPoolOverload 池已满（非阻塞模式）
	ErrPoolOverload = errors.New("pool: overloaded")
)
