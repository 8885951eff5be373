package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"cine-journey/storage"

	"github.com/rs/zerolog/log"
	gomail "gopkg.in/mail.v2"
)

// EmailNotifier sends a digest of newly indexed titles
type EmailNotifier struct {
	smtpHost       string
	smtpPort       int
	username       string
	senderEmail    string
	senderPass     string
	recipientEmail string
	htmlTemplate   *template.Template
	now            func() time.Time
}

// EmailConfig contains configuration for email notifications
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       int
	Username       string
	SenderEmail    string
	SenderPassword string
	RecipientEmail string
}

const digestTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Cine Journey - Index Update</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #e50914; }
        h2 { color: #0071c5; margin-top: 30px; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th { background-color: #f4f4f4; text-align: left; padding: 10px; }
        td { padding: 10px; border-bottom: 1px solid #ddd; }
        .movie { background-color: #fff3e0; }
        .show { background-color: #e3f2fd; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
        .count { font-weight: bold; color: #e50914; }
    </style>
</head>
<body>
    <h1>Cine Journey - Index Update</h1>
    <p>Indexed on {{.Date}} from {{len .Queries}} discovery quer{{if eq (len .Queries) 1}}y{{else}}ies{{end}}: {{.QueryList}}.</p>
    <p>Titles indexed: <span class="count">{{.TotalCount}}</span> ({{.TotalMinutes}} minutes of viewing)</p>

    {{range .Sections}}{{if .Items}}
    <h2>{{.Heading}} ({{len .Items}})</h2>
    <table>
        <tr><th>Title</th><th>Year</th><th>Runtime</th><th>Genres</th><th>Rating</th></tr>
        {{range .Items}}
        <tr class="{{.ContentType}}">
            <td>{{if .SourceURL}}<a href="{{.SourceURL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</td>
            <td>{{if .Year}}{{.Year}}{{else}}-{{end}}</td>
            <td>{{.DurationMinutes}} min</td>
            <td>{{join .Genres ", "}}</td>
            <td>{{if .Rating}}{{printf "%.0f" (deref .Rating)}}/100{{else}}-{{end}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}{{end}}

    <div class="footer">
        <p>This is an automated email from Cine Journey. Please do not reply.</p>
    </div>
</body>
</html>
`

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	tmpl, err := template.New("digest").Funcs(template.FuncMap{
		"join": strings.Join,
		"deref": func(f *float64) float64 {
			if f == nil {
				return 0
			}
			return *f
		},
	}).Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	username := config.Username
	if username == "" {
		username = config.SenderEmail
	}

	return &EmailNotifier{
		smtpHost:       config.SMTPHost,
		smtpPort:       config.SMTPPort,
		username:       username,
		senderEmail:    config.SenderEmail,
		senderPass:     config.SenderPassword,
		recipientEmail: config.RecipientEmail,
		htmlTemplate:   tmpl,
		now:            time.Now,
	}, nil
}

type digestSection struct {
	Heading string
	Items   []storage.Content
}

type digest struct {
	Date         string
	Queries      []string
	QueryList    string
	TotalCount   int
	TotalMinutes int
	Movies       int
	Shows        int
	Sections     []digestSection
}

func (n *EmailNotifier) buildDigest(contents []storage.Content, queries []string) digest {
	var movies, shows []storage.Content
	total := 0
	for _, c := range contents {
		total += c.DurationMinutes
		if c.ContentType == storage.ContentTypeShow {
			shows = append(shows, c)
		} else {
			movies = append(movies, c)
		}
	}

	return digest{
		Date:         n.now().Format("January 2, 2006 at 3:04 PM"),
		Queries:      queries,
		QueryList:    strings.Join(queries, ", "),
		TotalCount:   len(contents),
		TotalMinutes: total,
		Movies:       len(movies),
		Shows:        len(shows),
		Sections: []digestSection{
			{Heading: "Movies", Items: movies},
			{Heading: "Shows", Items: shows},
		},
	}
}

// Render returns the subject, plain text and HTML bodies of the digest
func (n *EmailNotifier) Render(contents []storage.Content, queries []string) (string, string, string, error) {
	data := n.buildDigest(contents, queries)

	var html bytes.Buffer
	if err := n.htmlTemplate.Execute(&html, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Cine Journey: %d Titles Indexed (%d Movies, %d Shows)",
		data.TotalCount, data.Movies, data.Shows)

	plain := fmt.Sprintf(
		"Cine Journey Index Update\n\n"+
			"Indexed on %s from queries: %s\n"+
			"Total titles: %d (%d movies, %d shows), %d minutes of viewing\n\n"+
			"This is an automated email from Cine Journey. Please do not reply.",
		data.Date, data.QueryList, data.TotalCount, data.Movies, data.Shows, data.TotalMinutes)

	return subject, plain, html.String(), nil
}

// NotifyContentUpdate emails a digest of the indexed titles
func (n *EmailNotifier) NotifyContentUpdate(contents []storage.Content, queries []string) error {
	if len(contents) == 0 {
		log.Debug().Msg("No content to notify about")
		return nil
	}

	if n.recipientEmail == "" {
		log.Debug().Msg("No recipient email configured, skipping notification")
		return nil
	}

	subject, plain, html, err := n.Render(contents, queries)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	d := gomail.NewDialer(n.smtpHost, n.smtpPort, n.username, n.senderPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info().
		Str("recipient", n.recipientEmail).
		Int("items", len(contents)).
		Msg("Email digest sent")
	return nil
}
