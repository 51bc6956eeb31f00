package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/mail"
)

const notificationTemplate = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #eee; border-radius: 5px;">
  <h2 style="color: #2c3e50; margin-bottom: 20px;">{{.Title}}</h2>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin-bottom: 20px;">
    <p style="margin: 5px 0;"><strong>Category:</strong> {{.Category}}</p>
    <p style="margin: 5px 0;"><strong>Department:</strong> {{.Department}}</p>
    <p style="margin: 5px 0;"><strong>Date:</strong> {{.Date}}</p>
  </div>
  <div style="margin-bottom: 20px;">
    <h3 style="color: #2c3e50; margin-bottom: 10px;">Notification Details:</h3>
    <p style="line-height: 1.6;">{{.Description}}</p>
  </div>
  {{- if .DownloadURL}}
  <div style="background-color: #e9ecef; padding: 15px; border-radius: 5px; text-align: center;">
    <p style="margin: 0;"><strong>Attachment Available:</strong></p>
    <a href="{{.DownloadURL}}" style="display: inline-block; margin-top: 10px; padding: 10px 20px; background-color: #007bff; color: white; text-decoration: none; border-radius: 5px;">Download Attachment</a>
  </div>
  {{- end}}
  <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #6c757d;">
    <p style="margin: 0;">This is an automated notification from the College Notification System.</p>
    <p style="margin: 5px 0;">Please do not reply to this email.</p>
  </div>
</div>`

// DateLayout formats notification dates in emails.
const DateLayout = "January 2, 2006 at 3:04 PM"

type templateData struct {
	Title       string
	Category    domain.Category
	Department  string
	Date        string
	Description string
	DownloadURL string
}

// Rendered is the recipient-independent part of a notification email.
type Rendered struct {
	Subject    string
	HTML       string
	Text       string
	Attachment *mail.Attachment
}

// Composer renders notification emails.
type Composer struct {
	from    mail.Address
	baseURL string
	tmpl    *template.Template
}

// NewComposer parses the email template.
func NewComposer(from mail.Address, baseURL string) *Composer {
	return &Composer{
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		tmpl:    template.Must(template.New("notification").Parse(notificationTemplate)),
	}
}

// Subject is "[CATEGORY] title".
func Subject(n domain.Notification) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Category)), n.Title)
}

// Render builds the shared subject and bodies once per dispatch.
func (c *Composer) Render(n domain.Notification, departmentName string, attachment *mail.Attachment) (Rendered, error) {
	data := templateData{
		Title:       n.Title,
		Category:    n.Category,
		Department:  departmentName,
		Date:        n.Date.In(time.Local).Format(DateLayout),
		Description: n.Description,
	}
	if n.HasAttachment() {
		data.DownloadURL = c.baseURL + n.AttachmentRef
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render notification email: %w", err)
	}

	text := fmt.Sprintf("%s\n\nCategory: %s\nDepartment: %s\nDate: %s\n\n%s\n",
		data.Title, data.Category, data.Department, data.Date, data.Description)
	if data.DownloadURL != "" {
		text += "\nDownload attachment: " + data.DownloadURL + "\n"
	}

	return Rendered{
		Subject:    Subject(n),
		HTML:       buf.String(),
		Text:       text,
		Attachment: attachment,
	}, nil
}

// Message addresses a rendered email to one recipient.
func (c *Composer) Message(r Rendered, to Recipient) mail.Message {
	return mail.Message{
		From:       c.from,
		To:         mail.Address{Name: to.Name, Email: to.Email},
		Subject:    r.Subject,
		HTMLBody:   r.HTML,
		TextBody:   r.Text,
		Attachment: r.Attachment,
	}
}
