package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())

	svc.SendMessages(
		&core.EmailMessage{
			To:      []mail.Address{{Name: "Jane", Address: "jane@test.com"}},
			Subject: "Hello",
			BodyStr: "plain body",
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "ignored"},
		&core.EmailMessage{To: []mail.Address{{Address: "empty@test.com"}}, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello", sent[0].Subject)
	assert.Equal(t, "plain body", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_send(t *testing.T) {
	conf := core.NewTestConfig()
	out := new(bytes.Buffer)
	svc := &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		out:              out,
		logger:           core.NewNopLogger(),
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "jane@test.com"}},
		Subject: "Report",
		BodyStr: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))
	require.True(t, svc.sendMessage(msg))

	body := out.String()
	assert.Contains(t, body, "Subject: [Academia] Report")
	assert.Contains(t, body, "To: <jane@test.com>")
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "see attached")
	assert.Contains(t, body, "filename=report.csv")
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig(), core.NewNopLogger()).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@test.com"}},
		Cc:          []mail.Address{{Address: "cc@test.com"}},
		Subject:     "Grades",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Academia] Grades", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@test.com", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "noreply@test.local", m.From.Address)
}
