// Package transport defines the interfaces for pluggable request transports.
//
// Each transport (HTTP, gRPC) exposes the same Service to its clients. The
// service doesn't care how requests arrive; it only works with the Transport
// contract.
package transport

import (
	"context"

	"github.com/nadzzz/cadence/internal/message"
	"github.com/nadzzz/cadence/internal/ssml"
)

// Service is the operation set served by every transport. The dispatcher
// implements it.
type Service interface {
	// Speak renders a response to SSML and, when requested, audio.
	Speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error)

	// Validate checks a document.
	Validate(ctx context.Context, req *message.ValidateRequest) (*ssml.Report, error)

	// Rules exports the active rule set.
	Rules(ctx context.Context) (*message.RulesResult, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and serves them with svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
