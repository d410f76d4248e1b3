// Package transport defines the ports to the chat transport. The engine
// never depends on transport-specific framing: inbound traffic is an owner
// id plus text, outbound traffic is text or an image.
package transport

import (
	"context"

	"duit/internal/core"
	"duit/internal/log"
)

type (
	// Inbound is one message received from the chat transport.
	Inbound struct {
		OwnerID core.OwnerID `json:"owner_id"`
		Text    string       `json:"text"`
	}

	// Outbound is one message bound for the chat transport.
	Outbound struct {
		OwnerID core.OwnerID `json:"owner_id"`
		Text    string       `json:"text,omitempty"`
		Image   []byte       `json:"image,omitempty"`
	}

	// Sender delivers outbound messages.
	Sender interface {
		SendText(ctx context.Context, owner core.OwnerID, text string) error
		SendImage(ctx context.Context, owner core.OwnerID, image []byte) error
	}
)

// LogSender writes outbound messages to the log instead of a transport.
// Used by the one-shot digest CLI when no broker is configured.
type LogSender struct {
	Logger *log.Logger
}

var _ Sender = (*LogSender)(nil)

func (s *LogSender) SendText(_ context.Context, owner core.OwnerID, text string) error {
	s.Logger.Info("outbound text", log.FieldOwnerID, int64(owner), "text", text)
	return nil
}

func (s *LogSender) SendImage(_ context.Context, owner core.OwnerID, image []byte) error {
	s.Logger.Info("outbound image", log.FieldOwnerID, int64(owner), "bytes", len(image))
	return nil
}
