package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
)

const (
	reminderTemplate = "fee_reminder"
	reminderSubject  = "Overdue school fees"
	dateLayout       = "2006-01-02"
)

type (
	ReminderReport struct {
		BatchID string   `json:"batch_id"`
		DryRun  bool     `json:"dry_run"`
		Sent    []string `json:"sent"`    // student codes
		Skipped []string `json:"skipped"` // overdue students without a guardian email
	}

	reminderLine struct {
		FeeName string
		Balance string
		DueDate string
	}

	reminderData struct {
		StudentName string
		StudentCode string
		Currency    string
		Balance     string
		DueDate     string
		Sender      string
		Lines       []reminderLine
	}
)

// SendReminders emails the guardian of every OVERDUE student a reminder with their statement attached.
// Nothing is sent when dryRun is set; the report still lists who would have been reminded.
func (svc *Service) SendReminders(ctx context.Context, dryRun bool) (ReminderReport, error) {
	summaries, err := svc.Summaries(ctx, Filter{Status: StatusOverdue})
	if err != nil {
		return ReminderReport{}, errors.Wrap(err, "loading overdue summaries")
	}

	report := ReminderReport{
		BatchID: uuid.New().String(),
		DryRun:  dryRun,
		Sent:    make([]string, 0, len(summaries)),
		Skipped: make([]string, 0),
	}
	messages := make([]*core.EmailMessage, 0, len(summaries))
	for _, s := range summaries {
		contact, ok := s.Contact()
		if !ok {
			report.Skipped = append(report.Skipped, s.StudentCode)
			continue
		}
		msg, err := svc.newReminderMessage(s, contact)
		if err != nil {
			return ReminderReport{}, errors.Wrapf(err, "preparing reminder for %s", s.StudentCode)
		}
		messages = append(messages, msg)
		report.Sent = append(report.Sent, s.StudentCode)
		svc.logger.Debug("fee reminder prepared", map[string]interface{}{
			"batch_id":     report.BatchID,
			"student_code": s.StudentCode,
		}, contact)
	}

	if !dryRun && len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	svc.logger.Info("fee reminders processed", map[string]interface{}{
		"batch_id": report.BatchID,
		"dry_run":  dryRun,
		"sent":     len(report.Sent),
		"skipped":  len(report.Skipped),
	})
	return report, nil
}

func (svc *Service) newReminderMessage(s Summary, contact StudentRef) (*core.EmailMessage, error) {
	data := reminderData{
		StudentName: s.StudentName,
		StudentCode: s.StudentCode,
		Currency:    svc.conf.Ledger.Currency,
		Balance:     s.Balance.StringFixed(2),
		DueDate:     FormatDate(s.DueDate),
		Sender:      svc.conf.Ledger.ReminderSender,
	}
	for _, fa := range s.Assignments {
		if !fa.Balance.IsPositive() {
			continue
		}
		data.Lines = append(data.Lines, reminderLine{
			FeeName: fa.FeeName,
			Balance: fa.Balance.StringFixed(2),
			DueDate: FormatDate(fa.DueDate),
		})
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: contact.Name, Address: contact.Email}},
		Subject:      reminderSubject,
		TemplateName: reminderTemplate,
		TemplateData: data,
	}
	if err := msg.Render(svc.conf.AppName, svc.conf.FrontendBaseURL); err != nil {
		return nil, errors.Wrap(err, "rendering reminder")
	}

	statement, err := Statement(s)
	if err != nil {
		return nil, err
	}
	if err = msg.Attach(bytes.NewReader(statement), "statement-"+s.StudentCode+".csv", "text/csv"); err != nil {
		return nil, errors.Wrap(err, "attaching statement")
	}
	return msg, nil
}

// Statement renders the summary's assignments as CSV, one row per assignment.
func Statement(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"fee", "net_amount", "amount_paid", "balance", "due_date", "status"}}
	for _, fa := range s.Assignments {
		rows = append(rows, []string{
			fa.FeeName,
			fa.NetAmount.StringFixed(2),
			fa.AmountPaid.StringFixed(2),
			fa.Balance.StringFixed(2),
			FormatDate(fa.DueDate),
			fa.ExplicitStatus.String(),
		})
	}
	rows = append(rows, []string{"TOTAL", s.TotalAmount.StringFixed(2), s.TotalPaid.StringFixed(2), s.Balance.StringFixed(2), FormatDate(s.DueDate), s.Status.String()})

	if err := w.WriteAll(rows); err != nil {
		return nil, errors.Wrap(err, "writing statement")
	}
	return buf.Bytes(), nil
}
