package emailsvc

import (
	"bytes"
	"io"
	"log"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/services/logger"
)

func setup(t *testing.T) (*core.Config, core.Logger) {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	require.NoError(t, core.ParseEmailTemplates(logger, true))
	ResetSentMessages()
	return conf, logger
}

func newMessage(t *testing.T) *core.EmailMessage {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Guardian", Address: "guardian@test.zm"}},
		Cc:      []mail.Address{{Address: "bursar@test.zm"}},
		Subject: "Statement",
		BodyStr: "Please find your statement attached.",
	}
	if err := msg.Attach(strings.NewReader("fee,balance\nTuition,100.00\n"), "statement.csv", "text/csv"); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	return msg
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf, logger := setup(t)
	svc := NewConsoleServiceMock(conf, logger)

	tests := []struct {
		name     string
		msg      *core.EmailMessage
		wantSent bool
	}{
		{name: "no recipient", msg: &core.EmailMessage{Subject: "lol", BodyStr: "lol"}},
		{name: "no content", msg: &core.EmailMessage{To: []mail.Address{{Address: "a@test.zm"}}}},
		{name: "text & attachment", msg: newMessage(t), wantSent: true},
		{
			name: "template",
			msg: &core.EmailMessage{
				To:           []mail.Address{{Address: "a@test.zm"}},
				TemplateName: "fee_reminder",
				TemplateData: map[string]interface{}{
					"StudentName": "Alice Banda",
					"StudentCode": "STU-001",
					"Currency":    "ZMW",
					"Balance":     "10.00",
					"DueDate":     "",
					"Sender":      "Accounts Office",
					"Lines":       nil,
				},
			},
			wantSent: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetSentMessages()
			svc.SendMessages(tt.msg)
			sent := SentMessages()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.NotEmpty(t, sent[0].TextContent)
		})
	}
}

func TestConsoleService_Wait(t *testing.T) {
	conf, logger := setup(t)
	svc := NewConsoleService(conf, logger).(*consoleService)
	svc.disableOutput = true

	svc.SendMessages(newMessage(t), newMessage(t))
	svc.Wait()
	assert.Len(t, SentMessages(), 2)
}

func TestSendgridService_prepare(t *testing.T) {
	conf, logger := setup(t)
	svc := NewSendgridService(conf, logger).(*sendgridService)

	msg := newMessage(t)
	require.NoError(t, msg.Render(conf.AppName, conf.FrontendBaseURL))

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] Statement", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "guardian@test.zm", p.To[0].Address)
	require.Len(t, p.CC, 1)

	// no html part for plain text messages
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "Please find your statement attached.", m.Content[0].Value)

	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "statement.csv", m.Attachments[0].Filename)
	assert.Equal(t, "attachment", m.Attachments[0].Disposition)
	assert.True(t, bytes.Equal([]byte(msg.Attachments[0].Content.String()), []byte(m.Attachments[0].Content)))
}
