package mailer

import (
	"bytes"
	"context"
	"io"
	"testing"

	"busticket/internal/config"
	"busticket/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIncludesAttachments(t *testing.T) {
	s := NewSMTP(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 2525, SMTPUsername: "noreply@busticket.vn"}, logger.NewWithWriter(io.Discard))
	m := s.build(Message{
		To:      "rider@example.com",
		Subject: "Vé xe V000001",
		HTML:    "<p>Cảm ơn</p>",
		Attachments: []Attachment{
			{Name: "ve-V000001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
			{Name: "qr.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		},
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "From: noreply@busticket.vn")
	assert.Contains(t, raw, "To: rider@example.com")
	assert.Contains(t, raw, `filename="ve-V000001.pdf"`)
	assert.Contains(t, raw, "Content-Type: image/png")
}

func TestNewPicksNoopWhenDisabled(t *testing.T) {
	s := New(config.EmailConfig{}, logger.NewWithWriter(io.Discard))
	_, ok := s.(*Noop)
	require.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{To: "x@example.com"}))
}
