package services

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"todohub/internal/events"
)

// EmailService sends reminder mail for consumed reminder events.
type EmailService interface {
	SendReminderEmail(to string, reminder events.ReminderEventData) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

func (s *emailService) SendReminderEmail(to string, reminder events.ReminderEventData) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Reminder: "+reminder.Title)

	due := "no due date set"
	if reminder.DueDate != nil {
		due = "due " + reminder.DueDate.Format("Mon, 02 Jan 2006 15:04 MST")
		if reminder.TimeUntilDue != "" && reminder.TimeUntilDue != "due soon" {
			due += " (" + reminder.TimeUntilDue + " from now)"
		}
	}

	body := fmt.Sprintf(`
		<h2>Reminder: %s</h2>
		<p>This task is %s.</p>
		<p>Open your task list to see the details.</p>
	`, reminder.Title, due)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	return nil
}
