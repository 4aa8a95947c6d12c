package email

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
)

func TestClassifySMTPError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"mailbox unavailable", &textproto.Error{Code: 550, Msg: "no such user"}, true},
		{"syntax error", &textproto.Error{Code: 501, Msg: "bad address"}, true},
		{"greylisted", &textproto.Error{Code: 451, Msg: "try again later"}, false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifySMTPError(tt.err)
			if tt.permanent {
				assert.ErrorIs(t, got, apperrors.ErrPermanentDelivery)
			} else {
				assert.ErrorIs(t, got, apperrors.ErrTransientDelivery)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	raw, err := buildMessage("noreply@unisphere.app", Message{
		FromName: "Test School",
		To:       "student@example.com",
		Subject:  "Test School Daily Digest – Jul 16, 2019",
		Text:     "plain body",
		HTML:     "<p>html body</p>",
	})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "From: \"Test School\" <noreply@unisphere.app>\r\n")
	assert.Contains(t, s, "To: <student@example.com>\r\n")
	assert.Contains(t, s, "Subject: =?utf-8?q?")
	assert.Contains(t, s, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, s, "@unisphere.app>")
	assert.Contains(t, s, "plain body")
	assert.Contains(t, s, "<p>html body</p>")
	assert.Less(t, strings.Index(s, "text/plain"), strings.Index(s, "text/html"))
}

func TestSender_Send(t *testing.T) {
	t.Run("invalid recipient is permanent", func(t *testing.T) {
		s := NewSender(SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "noreply@unisphere.app"}, logger.Nop())
		err := s.Send(context.Background(), Message{To: "not an address"})
		assert.ErrorIs(t, err, apperrors.ErrPermanentDelivery)
	})

	t.Run("without a host the message is only logged", func(t *testing.T) {
		s := NewSender(SMTPConfig{FromEmail: "noreply@unisphere.app"}, logger.Nop())
		assert.False(t, s.Enabled())
		assert.NoError(t, s.Send(context.Background(), Message{To: "student@example.com", Subject: "hi"}))
	})
}
