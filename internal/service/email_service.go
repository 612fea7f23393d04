package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"

	"speechplay/internal/game"
)

// sesAPI is the part of the SES client the email service calls
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends game summaries to the SLP via Amazon SES
type EmailService struct {
	client    sesAPI
	contacts  ContactDirectory
	fromEmail string
	fromName  string
	enabled   bool
}

// NewEmailService creates a new email service. An empty fromEmail returns
// a disabled service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, contacts ContactDirectory) (*EmailService, error) {
	if fromEmail == "" {
		logrus.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{contacts: contacts, enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logrus.WithFields(logrus.Fields{"from": fromEmail, "region": awsRegion}).Info("Email service enabled")
	return newEmailService(sesv2.NewFromConfig(cfg), contacts, fromEmail, fromName), nil
}

func newEmailService(client sesAPI, contacts ContactDirectory, fromEmail, fromName string) *EmailService {
	return &EmailService{
		client:    client,
		contacts:  contacts,
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// GameCompleted mails the game summary to the SLP of g
func (s *EmailService) GameCompleted(ctx context.Context, g game.GameSession) error {
	log := logrus.WithFields(logrus.Fields{"game_id": g.ID, "slp_id": g.SLPID})
	if !s.enabled {
		log.Debug("Skipping game summary (email service disabled)")
		return nil
	}
	if s.contacts == nil {
		log.Debug("Skipping game summary (no contact directory)")
		return nil
	}

	contact, ok := s.contacts.Lookup(g.SLPID)
	if !ok || contact.Email == "" {
		log.Debug("Skipping game summary (no email address for SLP)")
		return nil
	}

	subject, htmlBody, textBody := renderSummary(g, Summarize(g), contact.Name)
	return s.sendEmail(ctx, contact.Email, subject, htmlBody, textBody)
}

func renderSummary(g game.GameSession, sum GameSummary, toName string) (subject, htmlBody, textBody string) {
	if toName == "" {
		toName = "there"
	}
	subject = fmt.Sprintf("Game summary: %s (%s)", g.GameType, g.SessionRef)

	outcome := map[game.Winner]string{
		game.WinnerSLP:   "The SLP won",
		game.WinnerChild: "The child won",
		game.WinnerTie:   "It was a tie",
	}[sum.Winner]

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", toName)
	fmt.Fprintf(&text, "Game %s of session %s is complete. %s.\n\n", g.ID, g.SessionRef, outcome)
	fmt.Fprintf(&text, "Score: SLP %.1f, child %.1f\n", sum.Score.SLP, sum.Score.Child)
	fmt.Fprintf(&text, "Turns played: %d of %d (%d skipped)\n", sum.CompletedTurns, sum.MaxTurns, sum.SkippedTurns)
	fmt.Fprintf(&text, "Child evaluations: %d correct, %d partial, %d incorrect\n",
		sum.Child.Correct, sum.Child.Partial, sum.Child.Incorrect)
	fmt.Fprintf(&text, "SLP evaluations: %d correct, %d partial, %d incorrect\n",
		sum.SLP.Correct, sum.SLP.Partial, sum.SLP.Incorrect)
	if sum.Duration > 0 {
		fmt.Fprintf(&text, "Duration: %s\n", sum.Duration.Round(time.Second))
	}
	text.WriteString("\n---\nThis is an automated email from SpeechPlay. Please do not reply.\n")

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<p>Game <strong>%s</strong> of session <strong>%s</strong> is complete. %s.</p>
	<table cellpadding="6" style="border-collapse: collapse;">
		<tr><th></th><th>Score</th><th>Correct</th><th>Partial</th><th>Incorrect</th></tr>
		<tr><td>SLP</td><td>%.1f</td><td>%d</td><td>%d</td><td>%d</td></tr>
		<tr><td>Child</td><td>%.1f</td><td>%d</td><td>%d</td><td>%d</td></tr>
	</table>
	<p>Turns played: %d of %d (%d skipped)</p>
	<p style="font-size: 12px; color: #666;">This is an automated email from SpeechPlay. Please do not reply.</p>
</body>
</html>
`,
		html.EscapeString(toName), html.EscapeString(g.ID), html.EscapeString(g.SessionRef), outcome,
		sum.Score.SLP, sum.SLP.Correct, sum.SLP.Partial, sum.SLP.Incorrect,
		sum.Score.Child, sum.Child.Correct, sum.Child.Partial, sum.Child.Incorrect,
		sum.CompletedTurns, sum.MaxTurns, sum.SkippedTurns,
	)
	return subject, htmlBody, text.String()
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	entry := logrus.WithFields(logrus.Fields{"to": toEmail, "subject": subject})
	if result.MessageId != nil {
		entry = entry.WithField("message_id", *result.MessageId)
	}
	entry.Info("Email sent successfully")
	return nil
}
