package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/appship/engage-api/internal/config"
	"github.com/appship/engage-api/internal/model"
)

var stepSubjects = map[model.MessageKind]map[string]string{
	model.KindLeadSequence: {
		"step_1": "Getting started with your app",
		"step_2": "Three things publishers wish they knew earlier",
		"step_3": "Still on the fence? Here's what launching looks like",
	},
	model.KindColdOutreach: {
		"step_1": "Quick question about %s",
		"step_2": "Following up — %s",
		"step_3": "Last note from me, %s",
	},
}

type smtpSender struct {
	cfg     config.SMTPConfig
	baseURL string
}

// NewSMTPSender delivers sequence steps over SMTP. baseURL is the
// public root of the tracking endpoint, embedded in pixel and link
// URLs.
func NewSMTPSender(cfg config.SMTPConfig, baseURL string) Sender {
	return &smtpSender{cfg: cfg, baseURL: baseURL}
}

func (s *smtpSender) SendSequenceStep(ctx context.Context, msg OutboundMessage) error {
	subject, ok := stepSubjects[msg.Kind][msg.StepID]
	if !ok {
		return fmt.Errorf("no template for %s %s", msg.Kind, msg.StepID)
	}
	if msg.Kind == model.KindColdOutreach {
		subject = fmt.Sprintf(subject, msg.Name)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", s.renderBody(msg))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password)

	// gomail has no context support; honor cancellation around the
	// blocking dial-and-send.
	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *smtpSender) renderBody(msg OutboundMessage) string {
	source := ""
	if msg.Kind == model.KindColdOutreach {
		source = "&source=cold"
	}
	pixel := fmt.Sprintf("%s/t?id=%s&action=open%s", s.baseURL, msg.MessageID, source)

	return fmt.Sprintf(
		`<p>Hi %s,</p><p>%s</p><img src=%q width="1" height="1" alt="">`,
		msg.Name, stepBody(msg.Kind, msg.StepID), pixel,
	)
}

func stepBody(kind model.MessageKind, stepID string) string {
	// Body copy lives with marketing; the pipeline only needs a
	// placeholder paragraph per step.
	return fmt.Sprintf("(%s %s)", kind, stepID)
}
