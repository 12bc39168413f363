// Package templates renders the email and SMS copy sent to leads.
//
// Message copy lives in files/*.tmpl as named text/template blocks:
// "<id>.text" for every message and "<id>.subject" for email. HTML email
// bodies wrap the rendered text in files/layout.html.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/okian/nurture/internal/domain/model"
)

//go:embed files/*
var files embed.FS

// OwnerNewLead is the notification sent to the business owner on new leads.
const OwnerNewLead = "owner_new_lead"

// Data is what a template can reference.
type Data struct {
	FirstName string
	Name      string
	Email     string
	Phone     string
	Source    string
	Message   string
	Tier      string
	Score     int
}

// DataFor builds template data for a delivery contact.
func DataFor(c model.Contact) Data {
	return Data{FirstName: c.FirstName(), Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// Message is a rendered message ready for a channel provider.
type Message struct {
	Channel model.Channel
	Subject string
	Text    string
	HTML    string
}

// Registry holds the parsed templates.
type Registry struct {
	text   *texttemplate.Template
	layout *htmltemplate.Template
}

// New parses the embedded templates.
func New() (*Registry, error) {
	text, err := texttemplate.New("").Option("missingkey=error").ParseFS(files, "files/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse message templates: %w", err)
	}
	layout, err := htmltemplate.ParseFS(files, "files/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	return &Registry{text: text, layout: layout}, nil
}

// Has reports whether id can be rendered on channel.
func (r *Registry) Has(id string, channel model.Channel) bool {
	if r.text.Lookup(id+".text") == nil {
		return false
	}
	return channel != model.ChannelEmail || r.text.Lookup(id+".subject") != nil
}

// Render produces the message id for channel.
func (r *Registry) Render(id string, channel model.Channel, data Data) (Message, error) {
	if !r.Has(id, channel) {
		return Message{}, fmt.Errorf("%w: %s/%s", ErrUnknownTemplate, channel, id)
	}
	body, err := r.exec(id+".text", data)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Channel: channel, Text: body}
	if channel != model.ChannelEmail {
		return msg, nil
	}

	if msg.Subject, err = r.exec(id+".subject", data); err != nil {
		return Message{}, err
	}
	var html bytes.Buffer
	if err := r.layout.Execute(&html, struct{ Paragraphs []string }{paragraphs(body)}); err != nil {
		return Message{}, fmt.Errorf("render %s layout: %w", id, err)
	}
	msg.HTML = html.String()
	return msg, nil
}

func (r *Registry) exec(name string, data Data) (string, error) {
	var buf bytes.Buffer
	if err := r.text.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
