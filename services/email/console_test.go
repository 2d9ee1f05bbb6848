package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/trezcool/masomo-lms/core"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := &core.Config{AppName: "Masomo", DefaultFromEmail: "Masomo <noreply@masomo.test>", FrontendBaseURL: "http://masomo.test"}
	to := mail.Address{Name: "Stu", Address: "stu@masomo.test"}
	data := map[string]interface{}{
		"StudentName":       "Stu",
		"AssignmentTitle":   "Essay",
		"Grade":             64.0,
		"PointsPossible":    100,
		"RawGrade":          80.0,
		"PenaltyApplied":    true,
		"PenaltyPercentage": 20,
		"Feedback":          "",
	}

	tests := []struct {
		name     string
		msg      *core.EmailMessage
		wantSent bool
		wantText []string
	}{
		{
			name:     "templated",
			msg:      core.NewEmailMessage(conf, "Graded", "submission_graded", data, to),
			wantSent: true,
			wantText: []string{"Hi Stu", "64/100", "late penalty of 20%", "http://masomo.test"},
		},
		{
			name:     "plain body",
			msg:      &core.EmailMessage{To: []mail.Address{to}, Subject: "Hi", BodyStr: "hello"},
			wantSent: true,
			wantText: []string{"hello"},
		},
		{
			name: "no recipients",
			msg:  &core.EmailMessage{Subject: "Hi", BodyStr: "hello"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewConsoleServiceMock(conf, logsvc.NewNopLogger())
			svc.SendMessages(tt.msg)

			sent := svc.SentMessages()
			if (len(sent) == 1) != tt.wantSent {
				t.Fatalf("sent %d messages; wantSent %v", len(sent), tt.wantSent)
			}
			for _, s := range tt.wantText {
				if !strings.Contains(tt.msg.TextContent, s) {
					t.Errorf("text content %q does not contain %q", tt.msg.TextContent, s)
				}
			}
		})
	}
}

func TestConsoleService_format(t *testing.T) {
	conf := &core.Config{AppName: "Masomo", DefaultFromEmail: "noreply@masomo.test"}
	svc := consoleService{defaultFromEmail: fromAddress(conf), subjPrefix: "[Masomo] "}

	body := svc.format(core.EmailMessage{
		To:          []mail.Address{{Address: "a@masomo.test"}},
		Subject:     "Hi",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})
	for _, s := range []string{"Subject: [Masomo] Hi", "To: <a@masomo.test>", "text/plain", "<p>html</p>"} {
		if !strings.Contains(body, s) {
			t.Errorf("body does not contain %q:\n%s", s, body)
		}
	}
}
