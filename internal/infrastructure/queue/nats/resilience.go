package nats

import (
	"errors"

	"github.com/kirillkom/file-intake/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const publishOperation = "nats.publish"

// classifyNATSError retries connection-level failures only. A rejected
// subject or payload fails the same way on every attempt.
func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, isConnectionError)
}

func isConnectionError(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionReconnecting)
}
