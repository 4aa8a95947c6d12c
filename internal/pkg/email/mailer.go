package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
)

const releaseTimeout = 5 * time.Second

// MessageSender delivers one rendered message
type MessageSender interface {
	Send(ctx context.Context, msg Message) error
}

// DigestMailer renders a digest, guards against double sends and hands the
// message to the sender
type DigestMailer struct {
	sender   MessageSender
	renderer *DigestRenderer
	guard    *DeliveryGuard
	logger   zerolog.Logger
}

// NewDigestMailer creates a new DigestMailer
func NewDigestMailer(sender MessageSender, renderer *DigestRenderer, guard *DeliveryGuard, logger zerolog.Logger) *DigestMailer {
	return &DigestMailer{
		sender:   sender,
		renderer: renderer,
		guard:    guard,
		logger:   logger.With().Str("component", "digest_mailer").Logger(),
	}
}

// SendDigest delivers the payload at most once per school, date and user.
// If the guard store is unreachable the digest is still sent.
func (m *DigestMailer) SendDigest(ctx context.Context, school *models.School, payload *models.DigestPayload) error {
	msg, err := m.renderer.Render(school, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPermanentDelivery, err)
	}

	key := GuardKey(school.ID, payload.RecipientID, payload.AsOf)
	claimed, err := m.guard.Acquire(ctx, key)
	switch {
	case err != nil:
		m.logger.Warn().Err(err).Str("key", key).Msg("Delivery guard unavailable, sending without it")
		claimed = false
	case !claimed:
		return fmt.Errorf("%w: %s", apperrors.ErrAlreadyDelivered, key)
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		if claimed {
			// The run context may already be done; release on a fresh one
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if relErr := m.guard.Release(releaseCtx, key); relErr != nil {
				m.logger.Error().Err(relErr).Str("key", key).Msg("Failed to release delivery guard")
			}
		}
		return err
	}

	return nil
}
