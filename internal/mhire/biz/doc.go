// Package biz implements the mhire use cases: batch embedding,
// retrieval, conversations, resume parsing and face verification.
//
// Services return *errors.Errno values (or errors wrapping one) so the
// handler layer can map them to HTTP responses without inspecting causes.
package biz
