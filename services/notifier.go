package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"bursary-management-api/metrics"
	"bursary-management-api/models"
	"bursary-management-api/repository"

	"github.com/sirupsen/logrus"
)

// Notification describes one lifecycle event to report to the applicant.
type Notification struct {
	Event       string
	Application models.Application
	OldStatus   string
	NewStatus   string
	Reason      *string
}

// Notifier delivers a notification. Failures never affect the lifecycle
// operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Channel() string
}

// MailSender is satisfied by config.Mailer.
type MailSender interface {
	Configured() bool
	SendMail(to []string, subject, html string) error
}

var ErrMailerNotConfigured = errors.New("mailer not configured")

const emailLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8" /></head>
<body style="font-family:Arial,sans-serif;line-height:1.6;color:#333;">
<div style="max-width:640px;margin:0 auto;padding:20px;">
<div style="background:#006400;color:#fff;padding:16px 20px;text-align:center;">
<h2 style="margin:0;">{{.Office}} Bursary</h2>
</div>
<div style="background:#f9f9f9;border:1px solid #eee;border-radius:8px;padding:20px;margin-top:16px;">
{{template "body" .}}
<table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="margin:14px 0;background:#fff;border:1px solid #eee;border-radius:6px;">
<tbody>
{{range .Rows}}<tr><td style="padding:8px 14px;width:38%;color:#555;font-weight:bold;">{{.Label}}</td><td style="padding:8px 14px;color:#111;">{{.Value}}</td></tr>
{{end}}</tbody>
</table>
{{if .Contact}}<p style="margin-top:14px;color:#666;font-size:0.9rem;">Contact: {{.Contact}}</p>{{end}}
</div>
</div>
</body>
</html>{{end}}`

const createdBody = `{{define "body"}}<h3 style="margin-top:0;">Application Received</h3>
<p>Dear <strong>{{.Name}}</strong>, your bursary application has been received and is under review.</p>
<div style="background:#e6ffe6;border:2px solid #008000;padding:12px;border-radius:5px;text-align:center;margin:14px 0;"><strong>Reference:</strong> {{.Reference}}</div>
<p>Keep your reference number for tracking. You can correct your application within {{.EditWindow}} of submission.</p>{{end}}`

const statusBody = `{{define "body"}}<h3 style="margin-top:0;">Application Status: {{.StatusUpper}}</h3>
<p>Dear <strong>{{.Name}}</strong>,</p>
<p>Your bursary application status has been updated.</p>
{{if .Reason}}<p><strong>Note:</strong> {{.Reason}}</p>{{end}}
{{if eq .Status "approved"}}<p>Please contact the office for further instructions on fund disbursement.</p>{{end}}
{{if eq .Status "rejected"}}<p>If you have questions, please contact the office with your reference number.</p>{{end}}{{end}}`

type emailRow struct {
	Label string
	Value string
}

type emailData struct {
	Office      string
	Name        string
	Reference   string
	Status      string
	StatusUpper string
	Reason      string
	EditWindow  string
	Contact     string
	Rows        []emailRow
}

// EmailNotifier renders notifications with html/template and sends them
// through SMTP.
type EmailNotifier struct {
	mailer     MailSender
	office     string
	contact    string
	editWindow time.Duration
	created    *template.Template
	status     *template.Template
}

func NewEmailNotifier(mailer MailSender, office, contact string, editWindow time.Duration) *EmailNotifier {
	base := template.Must(template.New("email").Parse(emailLayout))
	return &EmailNotifier{
		mailer:     mailer,
		office:     office,
		contact:    contact,
		editWindow: editWindow,
		created:    template.Must(template.Must(base.Clone()).Parse(createdBody)),
		status:     template.Must(template.Must(base.Clone()).Parse(statusBody)),
	}
}

func (n *EmailNotifier) Channel() string { return "email" }

// Render returns the subject and HTML body for a notification.
func (n *EmailNotifier) Render(note Notification) (string, string, error) {
	app := note.Application
	data := emailData{
		Office:     n.office,
		Name:       app.FullName,
		Reference:  app.Reference,
		Contact:    n.contact,
		EditWindow: fmt.Sprintf("%g hours", n.editWindow.Hours()),
		Rows: []emailRow{
			{Label: "Reference Number", Value: app.Reference},
			{Label: "Institution", Value: app.InstitutionName},
			{Label: "Amount", Value: formatAmount(app.Amount)},
			{Label: "Ward", Value: prettyWard(app.Ward)},
			{Label: "Submitted", Value: app.SubmittedAt.Format("January 2, 2006")},
		},
	}

	var (
		tmpl    *template.Template
		subject string
	)
	switch note.Event {
	case models.EventCreated:
		tmpl = n.created
		subject = fmt.Sprintf("Bursary Application Received - %s", app.Reference)
	case models.EventStatusChanged:
		tmpl = n.status
		data.Status = note.NewStatus
		data.StatusUpper = strings.ToUpper(note.NewStatus)
		if note.Reason != nil {
			data.Reason = *note.Reason
		}
		subject = fmt.Sprintf("Bursary Application %s - %s", strings.ToUpper(note.NewStatus), app.Reference)
	default:
		return "", "", fmt.Errorf("unknown notification event %q", note.Event)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", note.Event, err)
	}
	return subject, buf.String(), nil
}

func (n *EmailNotifier) Notify(_ context.Context, note Notification) error {
	if !n.mailer.Configured() {
		return ErrMailerNotConfigured
	}
	if note.Application.Email == "" {
		return nil
	}
	subject, body, err := n.Render(note)
	if err != nil {
		return err
	}
	return n.mailer.SendMail([]string{note.Application.Email}, subject, body)
}

// formatAmount renders 25000 as "KSh 25,000".
func formatAmount(amount uint) string {
	digits := fmt.Sprintf("%d", amount)
	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return "KSh " + sb.String()
}

func prettyWard(ward string) string {
	words := strings.Fields(strings.ReplaceAll(ward, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Dispatcher runs notifier deliveries on a bounded worker pool after the
// originating transaction has committed, and records each attempt.
type Dispatcher struct {
	notifier Notifier
	records  repository.NotificationRepository
	logger   *logrus.Logger
	timeout  time.Duration

	queue   chan Notification
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(notifier Notifier, records repository.NotificationRepository, logger *logrus.Logger, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		notifier: notifier,
		records:  records,
		logger:   logger,
		timeout:  30 * time.Second,
		queue:    make(chan Notification, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Dispatch enqueues n without blocking. When the queue is full or the
// dispatcher is stopped the event is dropped and logged.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.WithField("reference", n.Application.Reference).Warn("notification dropped: dispatcher stopped")
		return
	}
	select {
	case d.queue <- n:
	default:
		metrics.Notifications.WithLabelValues(n.Event, "dropped").Inc()
		d.logger.WithFields(logrus.Fields{
			"reference": n.Application.Reference,
			"event":     n.Event,
		}).Warn("notification dropped: queue full")
	}
}

// Stop closes the queue and waits for queued deliveries to finish or for ctx
// to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	rec := &models.NotificationRecord{
		ApplicationID: n.Application.ID,
		Event:         n.Event,
		Channel:       d.notifier.Channel(),
		Recipient:     n.Application.Email,
		Success:       true,
	}

	entry := d.logger.WithFields(logrus.Fields{
		"reference": n.Application.Reference,
		"event":     n.Event,
	})
	if err := d.notifier.Notify(ctx, n); err != nil {
		msg := err.Error()
		rec.Success = false
		rec.Error = &msg
		metrics.Notifications.WithLabelValues(n.Event, "failed").Inc()
		entry.WithError(err).Error("notification failed")
	} else {
		metrics.Notifications.WithLabelValues(n.Event, "sent").Inc()
		entry.Info("notification sent")
	}

	if err := d.records.RecordNotification(ctx, rec); err != nil {
		entry.WithError(err).Error("record notification")
	}
}
