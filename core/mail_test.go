package core

import (
	"io"
	"io/fs"
	"log"
	"path"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/bursar/fs"
)

type discardLogger struct{ *log.Logger }

func (l discardLogger) Debug(msg string, args ...interface{}) { l.Println(msg) }
func (l discardLogger) Info(msg string, args ...interface{})  { l.Println(msg) }
func (l discardLogger) Warn(msg string, args ...interface{})  { l.Println(msg) }
func (l discardLogger) Error(msg string, args ...interface{}) { l.Println(msg) }
func (l discardLogger) Fatal(msg string, args ...interface{}) { l.Fatalln(msg) }

func TestEmbeddedLayouts(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		if _, err := fs.Stat(appfs.FS, path.Join(emailTemplatesDir, name)); err != nil {
			t.Errorf("fs.Stat(%s) error = %v", name, err)
		}
	}
}

func TestEmailMessage_Render(t *testing.T) {
	require.NoError(t, ParseEmailTemplates(discardLogger{log.New(io.Discard, "", 0)}, true))

	tests := []struct {
		name     string
		msg      EmailMessage
		wantErr  error
		wantText string
		wantHTML string
	}{
		{name: "body", msg: EmailMessage{BodyStr: "hello"}, wantText: "hello"},
		{
			name: "template",
			msg: EmailMessage{
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
			wantText: "Dear parent/guardian of Alice Banda (STU-001)",
			wantHTML: "<strong>Alice Banda</strong>",
		},
		{name: "unknown template", msg: EmailMessage{TemplateName: "lol"}, wantErr: ErrTemplateNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Render("Bursar", "http://localhost")
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("Render() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Contains(t, tt.msg.TextContent, tt.wantText)
			if tt.msg.TemplateName != "" {
				// rendered through the base layouts
				assert.Contains(t, tt.msg.TextContent, "Bursar - http://localhost")
				assert.Contains(t, tt.msg.HTMLContent, tt.wantHTML)
				assert.Contains(t, tt.msg.HTMLContent, `<a href="http://localhost">Bursar</a>`)
			}
		})
	}
}
