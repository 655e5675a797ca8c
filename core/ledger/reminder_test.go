package ledger_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/services/email"
	"github.com/trezcool/bursar/tests"
)

func TestService_SendReminders(t *testing.T) {
	svc, repo := setup(t)
	seed(t, repo)

	// overdue by explicit status, but no guardian email
	mwila := testutil.CreateStudent(t, repo, "STU-004", "Mwila Zulu", "")
	testutil.CreateFeeAssignment(t, repo, mwila, "Boarding", "3000", "0", "3000", day(10), ledger.StatusOverdue)

	t.Run("dry run", func(t *testing.T) {
		report, err := svc.SendReminders(context.Background(), true)
		require.NoError(t, err)

		assert.True(t, report.DryRun)
		assert.Equal(t, []string{"STU-002"}, report.Sent)
		assert.Equal(t, []string{"STU-004"}, report.Skipped)
		assert.Empty(t, emailsvc.SentMessages())
	})

	t.Run("send", func(t *testing.T) {
		report, err := svc.SendReminders(context.Background(), false)
		require.NoError(t, err)

		_, err = uuid.Parse(report.BatchID)
		assert.NoError(t, err)
		assert.False(t, report.DryRun)
		assert.Equal(t, []string{"STU-002"}, report.Sent)
		assert.Equal(t, []string{"STU-004"}, report.Skipped)

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 1)
		msg := sent[0]

		require.Len(t, msg.To, 1)
		assert.Equal(t, "phiri@test.zm", msg.To[0].Address)
		assert.Equal(t, "Overdue school fees", msg.Subject)
		assert.Contains(t, msg.TextContent, "Bwalya Phiri (STU-002)")
		assert.Contains(t, msg.TextContent, "ZMW 2800.00")
		assert.Contains(t, msg.TextContent, "Tuition: 2000.00 (due 2023-09-14)")
		assert.Contains(t, msg.TextContent, "Transport: 800.00 (due 2023-10-05)")
		assert.Contains(t, msg.HTMLContent, "<strong>Bwalya Phiri</strong>")

		require.Len(t, msg.Attachments, 1)
		at := msg.Attachments[0]
		assert.Equal(t, "statement-STU-002.csv", at.Filename)
		assert.Equal(t, "text/csv", at.ContentType)
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "fee,net_amount,amount_paid,balance,due_date,status\n"))
	})
}

type logEntry struct {
	msg  string
	args []interface{}
}

type recordingLogger struct {
	core.Logger
	debug []logEntry
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) {
	l.debug = append(l.debug, logEntry{msg: msg, args: args})
}

func TestService_SendReminders_logsContact(t *testing.T) {
	_, repo := setup(t)
	seed(t, repo)

	conf := core.NewConfig()
	logger := &recordingLogger{Logger: testutil.NewLogger(conf)}
	svc := ledger.NewService(repo, emailsvc.NewConsoleServiceMock(conf, logger), logger, conf)

	_, err := svc.SendReminders(context.Background(), true)
	require.NoError(t, err)

	var prepared []logEntry
	for _, e := range logger.debug {
		if e.msg == "fee reminder prepared" {
			prepared = append(prepared, e)
		}
	}
	require.Len(t, prepared, 1)
	entry := prepared[0]
	require.Len(t, entry.args, 2)
	ref, ok := entry.args[1].(ledger.StudentRef)
	require.True(t, ok, "args[1] = %T, want ledger.StudentRef", entry.args[1])
	assert.Equal(t, "STU-002", ref.Code)
	assert.Equal(t, "phiri@test.zm", ref.Email)
}

func TestStatement(t *testing.T) {
	svc, repo := setup(t)
	seed(t, repo)

	summaries, err := svc.Summaries(context.Background(), ledger.Filter{Search: "STU-002"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	got, err := ledger.Statement(summaries[0])
	require.NoError(t, err)

	want := "fee,net_amount,amount_paid,balance,due_date,status\n" +
		"Tuition,5000.00,2500.00,2000.00,2023-09-14,\n" +
		"Transport,800.00,0.00,800.00,2023-10-05,\n" +
		"TOTAL,5800.00,2500.00,2800.00,2023-10-05,OVERDUE\n"
	assert.Equal(t, want, string(got))
}
