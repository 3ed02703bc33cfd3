package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/resendlabs/resend-go"
	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/pkg/timeout"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Sender is the part of the Resend client used here.
type Sender interface {
	Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

type EmailService struct {
	sender   Sender
	from     string
	fromName string
	alertTo  []string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewEmailService(cfg config.EmailConfig, logger *zap.Logger) *EmailService {
	return NewEmailServiceWithSender(resend.NewClient(cfg.APIKey).Emails, cfg, logger)
}

func NewEmailServiceWithSender(sender Sender, cfg config.EmailConfig, logger *zap.Logger) *EmailService {
	return &EmailService{
		sender:   sender,
		from:     cfg.From,
		fromName: cfg.FromName,
		alertTo:  cfg.AlertTo,
		timeout:  timeout.Short,
		logger:   logger,
	}
}

// NotifyDeadLetter mails the ops recipients about a parked event.
func (s *EmailService) NotifyDeadLetter(ctx context.Context, letter *models.DeadLetter) error {
	if len(s.alertTo) == 0 {
		return nil
	}

	html, err := s.parseTemplate("dead_letter.html", struct {
		*models.DeadLetter
		Year int
	}{letter, time.Now().Year()})
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.fromName + " <" + s.from + ">",
		To:      s.alertTo,
		Subject: fmt.Sprintf("[credits] %s parked: %s", letter.EventID, letter.Reason),
		Html:    html,
	}

	resp, err := timeout.Do(ctx, "resend send", s.timeout, func(ctx context.Context) (resend.SendEmailResponse, error) {
		return s.sender.Send(params)
	})
	if err != nil {
		s.logger.Warn("Failed to send dead letter alert", zap.String("event_id", letter.EventID), zap.Error(err))
		return err
	}

	s.logger.Info("Dead letter alert sent", zap.String("event_id", letter.EventID), zap.String("email_id", resp.Id))
	return nil
}

func (s *EmailService) parseTemplate(templateName string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", templateName, err)
	}
	return body.String(), nil
}
