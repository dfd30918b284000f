// Package notify delivers schedules and failure reports over SMTP.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"

	"showtimes/internal/model"
	"showtimes/internal/schedule"
)

// Mailer sends schedule emails to subscribers and failure reports to the
// operator address.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
	errorTo  string
	log      *slog.Logger
	send     func(*email.Email) error
	now      func() time.Time
}

// NewMailer creates a Mailer for the given SMTP account. errorTo receives
// operator failure reports.
func NewMailer(host string, port int, from, password, errorTo string, log *slog.Logger) *Mailer {
	m := &Mailer{
		host:     host,
		port:     port,
		from:     from,
		password: password,
		errorTo:  errorTo,
		log:      log,
		now:      time.Now,
	}
	m.send = m.sendSMTP
	return m
}

// SetSend overrides the delivery function (for testing).
func (m *Mailer) SetSend(send func(*email.Email) error) {
	m.send = send
}

// SetNow overrides the clock (for testing).
func (m *Mailer) SetNow(now func() time.Time) {
	m.now = now
}

func (m *Mailer) sendSMTP(mail *email.Email) error {
	return mail.Send(
		fmt.Sprintf("%s:%d", m.host, m.port),
		smtp.PlainAuth("", m.from, m.password, m.host),
	)
}

// DeliveryResult reports the outcome of one subscriber's delivery.
type DeliveryResult struct {
	Subscriber model.Subscriber
	Err        error
}

// SendSchedules delivers one email per schedule. A failure for one recipient
// is recorded and does not stop delivery to the others.
func (m *Mailer) SendSchedules(schedules []schedule.Schedule) []DeliveryResult {
	start := m.now()
	end := start.AddDate(0, 0, 7)
	subject := fmt.Sprintf("Movie Theater Schedule: %s - %s",
		start.Format("01/02/06"), end.Format("01/02/06"))

	results := make([]DeliveryResult, 0, len(schedules))
	for _, s := range schedules {
		mail := email.NewEmail()
		mail.From = m.from
		mail.To = []string{s.Subscriber.Email}
		mail.Subject = subject
		mail.Text = fmt.Appendf(nil, "Hi %s, here is your weekly movie theater rundown:\n\n%s",
			s.Subscriber.Name, schedule.FormatSimple(s))

		err := m.send(mail)
		if err != nil {
			m.log.Error("schedule delivery failed", "subscriber", s.Subscriber.Name, "error", err)
		} else {
			m.log.Info("schedule sent", "subscriber", s.Subscriber.Name)
		}
		results = append(results, DeliveryResult{Subscriber: s.Subscriber, Err: err})
	}
	return results
}

// SendFailureReport notifies the operator address that a pipeline step
// failed. This is the only failure class surfaced outside the logs.
func (m *Mailer) SendFailureReport(step string, runErr error) error {
	mail := email.NewEmail()
	mail.From = m.from
	mail.To = []string{m.errorTo}
	mail.Subject = fmt.Sprintf("Movie theater breakdown failed at step %s at %s",
		step, m.now().Format("01/02/2006 15:04:05"))
	mail.Text = fmt.Appendf(nil, "Error: %v\n\nPlease check logs for more information.", runErr)

	if err := m.send(mail); err != nil {
		return fmt.Errorf("send failure report: %w", err)
	}
	m.log.Info("failure notification sent", "step", step)
	return nil
}
