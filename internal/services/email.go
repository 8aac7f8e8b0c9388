package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/sendgrid"
)

const (
	FleetEmailSubject = "Your StarCiti Fleet Recommendations"
	defaultGreeting   = "Hello, Prospective Citizen,"
	pledgeStoreURL    = "https://robertsspaceindustries.com/pledge/ships"
	emailCategory     = "fleet-recommendations"
)

type DocumentReader interface {
	Read(path string) ([]byte, error)
}

type EmailService interface {
	SendFleetEmail(ctx context.Context, snap *domainagg.ConversationSnapshot) (*sendgrid.SendResult, error)
}

type emailService struct {
	log    *logger.Logger
	sender sendgrid.Client
	files  DocumentReader
}

func NewEmailService(baseLog *logger.Logger, sender sendgrid.Client, files DocumentReader) EmailService {
	return &emailService{
		log:    baseLog.With("service", "EmailService"),
		sender: sender,
		files:  files,
	}
}

func (s *emailService) SendFleetEmail(ctx context.Context, snap *domainagg.ConversationSnapshot) (*sendgrid.SendResult, error) {
	if snap == nil || snap.Conversation == nil {
		return nil, fmt.Errorf("%w: conversation required", pkgerrors.ErrInvalidArgument)
	}
	if s.sender == nil {
		return nil, fmt.Errorf("email delivery not configured (SENDGRID_API_KEY)")
	}
	conv := snap.Conversation
	attachments := make([]sendgrid.Attachment, 0, 2)
	for _, doc := range []struct {
		kind documents.Kind
		path string
	}{
		{documents.KindTranscript, conv.TranscriptDocPath},
		{documents.KindFleetGuide, conv.FleetGuideDocPath},
	} {
		data, err := s.files.Read(doc.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", doc.kind, err)
		}
		attachments = append(attachments, sendgrid.Attachment{
			Filename: doc.kind.FileName(),
			MIMEType: doc.kind.ContentType(),
			Content:  data,
		})
	}
	msg, err := ComposeFleetEmail(snap, attachments)
	if err != nil {
		return nil, err
	}
	res, err := s.sender.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send fleet email: %w", err)
	}
	s.log.Info("fleet email sent", "conversation_id", conv.ID, "email", msg.To[0].Email, "message_id", res.MessageID)
	return res, nil
}

type fleetEmailView struct {
	Greeting  string
	Ships     []string
	StoreURL  string
	Documents []string
}

var fleetEmailHTML = template.Must(template.New("fleet").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;background-color:#f4f4f4;">
<div style="max-width:600px;margin:20px auto;background:#ffffff;border-radius:8px;">
<div style="background:#1e3a8a;padding:32px 24px;text-align:center;">
<h1 style="color:#ffffff;margin:0;">StarCiti Sales Agent</h1>
<p style="color:#e0e7ff;margin:8px 0 0 0;">Your AI-Powered Ship Consultant</p>
</div>
<div style="padding:32px 24px;color:#1e293b;line-height:1.6;">
<p>{{.Greeting}}</p>
<p>Thank you for using StarCiti Sales Agent! Based on our conversation, Nova has prepared personalized ship recommendations just for you.</p>
<div style="background:#eff6ff;border-left:4px solid #2563eb;padding:16px;">
<h2 style="color:#1e3a8a;margin:0 0 12px 0;">Your Recommended Ships</h2>
{{if .Ships}}<ol>{{range .Ships}}<li>{{.}}</li>{{end}}</ol>{{else}}<p>Your personalized recommendations are in the attached Fleet Guide.</p>{{end}}
</div>
<p>Attached:</p>
<ul>{{range .Documents}}<li>{{.}}</li>{{end}}</ul>
<p><strong>Next Steps:</strong> Visit the <a href="{{.StoreURL}}">RSI Pledge Store</a> to purchase your ships.</p>
<p>Safe travels in the 'verse!<br><strong>Nova &amp; The StarCiti Team</strong></p>
</div>
<div style="background:#f8fafc;padding:24px;text-align:center;font-size:11px;color:#94a3b8;">
Ship specifications and prices are subject to change during Star Citizen's development.
Always verify current information at robertsspaceindustries.com before purchasing.
</div>
</div>
</body>
</html>
`))

var documentBlurbs = []string{
	"Conversation Transcript: A complete record of our conversation",
	"Fleet Composition Guide: Detailed ship specs, analysis, and next steps",
}

// ComposeFleetEmail builds the recommendation email for the conversation's
// contact. Ships are listed in ledger order.
func ComposeFleetEmail(snap *domainagg.ConversationSnapshot, attachments []sendgrid.Attachment) (sendgrid.Message, error) {
	if snap == nil || snap.Conversation == nil {
		return sendgrid.Message{}, fmt.Errorf("%w: conversation required", pkgerrors.ErrInvalidArgument)
	}
	conv := snap.Conversation
	to := ""
	if conv.ContactEmail != nil {
		to = strings.TrimSpace(*conv.ContactEmail)
	}
	if to == "" {
		return sendgrid.Message{}, fmt.Errorf("%w: conversation has no contact email", pkgerrors.ErrInvalidArgument)
	}
	name := ""
	if conv.ContactName != nil {
		name = strings.TrimSpace(*conv.ContactName)
	}

	view := fleetEmailView{
		Greeting:  Greeting(name),
		StoreURL:  pledgeStoreURL,
		Documents: documentBlurbs,
	}
	for _, r := range snap.Recommendations {
		view.Ships = append(view.Ships, r.DisplayName)
	}

	var html bytes.Buffer
	if err := fleetEmailHTML.Execute(&html, view); err != nil {
		return sendgrid.Message{}, fmt.Errorf("render email: %w", err)
	}
	return sendgrid.Message{
		To:          []sendgrid.Address{{Email: to, Name: name}},
		Subject:     FleetEmailSubject,
		Text:        fleetEmailText(view),
		HTML:        html.String(),
		Categories:  []string{emailCategory},
		Attachments: attachments,
	}, nil
}

func Greeting(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return defaultGreeting
	}
	return "Hello " + name + ","
}

func fleetEmailText(v fleetEmailView) string {
	var b strings.Builder
	b.WriteString(v.Greeting + "\n\n")
	b.WriteString("Thank you for using StarCiti Sales Agent! Based on our conversation, Nova has prepared personalized ship recommendations just for you.\n\n")
	b.WriteString("YOUR RECOMMENDED SHIPS:\n")
	if len(v.Ships) == 0 {
		b.WriteString("See attached Fleet Composition Guide\n")
	}
	for i, ship := range v.Ships {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ship)
	}
	b.WriteString("\nATTACHMENTS:\n")
	for _, d := range v.Documents {
		b.WriteString("- " + d + "\n")
	}
	b.WriteString("\nNEXT STEPS:\n")
	fmt.Fprintf(&b, "Visit the RSI Pledge Store (%s) to purchase your ships.\n\n", v.StoreURL)
	b.WriteString("Safe travels in the 'verse!\nNova & The StarCiti Team\n")
	return b.String()
}
