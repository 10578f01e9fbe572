package dispatch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func TestEmailDispatcher_Deliver(t *testing.T) {
	ctx := context.Background()
	cfg := EmailConfig{Host: "smtp.example.org", From: "office@example.org", FromName: "Grace Church"}

	t.Run("sends html with plain alternative", func(t *testing.T) {
		sender := &fakeSender{}
		d := &EmailDispatcher{cfg: cfg, sender: sender}

		out, err := d.Deliver(ctx, "ann@example.org", "Sunday service", "<p>Doors open at <b>9:30</b></p>")
		require.NoError(t, err)
		assert.True(t, out.Delivered)
		assert.False(t, out.Simulated)
		require.Len(t, sender.sent, 1)

		msg := sender.sent[0]
		rcpts, err := msg.GetRecipients()
		require.NoError(t, err)
		assert.Equal(t, []string{"ann@example.org"}, rcpts)
		assert.Equal(t, []string{"Sunday service"}, msg.GetGenHeader(mail.HeaderSubject))

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "text/plain")
		assert.Contains(t, buf.String(), "text/html")
	})

	t.Run("bad address fails", func(t *testing.T) {
		d := &EmailDispatcher{cfg: cfg, sender: &fakeSender{}}
		out, err := d.Deliver(ctx, "not an address", "s", "b")
		assert.Error(t, err)
		assert.False(t, out.Delivered)
		assert.Contains(t, out.Error, "recipient address")
	})

	t.Run("smtp error fails", func(t *testing.T) {
		d := &EmailDispatcher{cfg: cfg, sender: &fakeSender{err: errors.New("550 mailbox unavailable")}}
		out, err := d.Deliver(ctx, "ann@example.org", "s", "b")
		assert.Error(t, err)
		assert.Equal(t, "550 mailbox unavailable", out.Error)
	})

	t.Run("unconfigured follows policy", func(t *testing.T) {
		d, err := NewEmailDispatcher(EmailConfig{}, Policy{AllowSimulated: true})
		require.NoError(t, err)
		out, err := d.Deliver(ctx, "ann@example.org", "s", "b")
		require.NoError(t, err)
		assert.True(t, out.Simulated)

		d, err = NewEmailDispatcher(EmailConfig{}, Policy{})
		require.NoError(t, err)
		_, err = d.Deliver(ctx, "ann@example.org", "s", "b")
		assert.ErrorIs(t, err, ErrProviderNotConfigured)
	})
}

func TestNewEmailDispatcher(t *testing.T) {
	for _, enc := range []string{"tls", "ssl", "none", ""} {
		d, err := NewEmailDispatcher(EmailConfig{Host: "smtp.example.org", Port: 587, From: "a@example.org", Username: "u", Password: "p", Encryption: enc}, Policy{})
		require.NoError(t, err, enc)
		assert.NotNil(t, d.sender, enc)
	}

	_, err := NewEmailDispatcher(EmailConfig{Host: "smtp.example.org", From: "a@example.org", Encryption: "starttls-maybe"}, Policy{})
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	text := PlainText("<p>Hello <b>church</b></p>")
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "church")
	assert.NotContains(t, text, "<")

	assert.Equal(t, "already plain", PlainText("already plain"))
}
