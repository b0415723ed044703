package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
)

func TestNewWithoutHostIsNop(t *testing.T) {
	m := New(config.MailConfig{})
	assert.IsType(t, Nop{}, m)
	assert.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com"}}))
}

func TestNewWithHostIsSMTP(t *testing.T) {
	m := New(config.MailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	s, ok := m.(*SMTP)
	assert.True(t, ok)
	assert.Equal(t, "noreply@example.com", s.from)

	// nothing to send, no dial
	assert.NoError(t, s.Send(context.Background(), Message{Subject: "empty"}))
}

func TestOwnershipRequestMessageEscapes(t *testing.T) {
	msg := OwnershipRequestMessage([]string{"admin@example.com"}, 7, "Knights & Dames", "<script>")
	assert.Equal(t, "Ownership request for Knights & Dames", msg.Subject)
	assert.Contains(t, msg.HTML, "Knights &amp; Dames")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.HTML, "#7")
}
