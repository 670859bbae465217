package core

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/darasa/fs"
)

func TestEmbeddedTemplates(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml", "password_reset.txt", "submission_graded.gohtml"} {
		_, err := fs.Stat(appfs.FS, emailTemplatesDir+"/"+name)
		assert.NoError(t, err, name)
	}
}

func TestEmailMessage_Render(t *testing.T) {
	conf := NewTestConfig("")
	conf.AppName = "Darasa"

	tests := []struct {
		name     string
		msg      EmailMessage
		wantText []string
		wantHTML []string
	}{
		{
			name: "password reset",
			msg: EmailMessage{
				TemplateName: "password_reset",
				TemplateData: map[string]string{"Name": "Jane", "UID": "the-uid", "Token": "the-token"},
			},
			wantText: []string{"Hi Jane,", "http://test.darasa/password-reset/the-uid/the-token", "Darasa"},
			wantHTML: []string{"Jane", "the-uid/the-token"},
		},
		{
			name: "submission graded",
			msg: EmailMessage{
				TemplateName: "submission_graded",
				TemplateData: map[string]interface{}{
					"Name":            "Jane",
					"AssignmentTitle": "Algebra",
					"Grade":           17.5,
					"MaxPoints":       20.0,
					"Feedback":        "well done",
					"SubmissionID":    "sub-1",
				},
			},
			wantText: []string{`"Algebra" has been graded: 17.5 / 20`, "well done", "/submissions/sub-1", "Darasa"},
			wantHTML: []string{"Algebra", "well done"},
		},
		{
			name:     "plain body",
			msg:      EmailMessage{BodyStr: "hello"},
			wantText: []string{"hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			require.NoError(t, msg.Render(conf))
			for _, want := range tt.wantText {
				assert.Contains(t, msg.TextContent, want)
			}
			for _, want := range tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, want)
			}
			if len(tt.wantHTML) == 0 {
				assert.Empty(t, msg.HTMLContent)
			}
			assert.True(t, msg.HasContent())
		})
	}
}
