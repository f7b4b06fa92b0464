package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/gabriel-vasile/mimetype"
)

var (
	templates map[string]mailTemplate // by name, without extension
	tmplMu    sync.RWMutex
)

type (
	// mailTemplate is the text and HTML rendition of one email. Either may be nil.
	mailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent & HTMLContent from the message's templates.
// BodyStr, when set, is used as is for the text part.
func (m *EmailMessage) Render(frontendBaseURL string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplMu.RLock()
	tmpl, ok := templates[m.TemplateName]
	tmplMu.RUnlock()
	if !ok {
		return nil
	}

	data := ContextData{FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return err
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.Execute(&buf, data); err != nil {
			return err
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = mimetype.Detect(content).String()
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates loads the email templates found under `<workDir>/assets/templates/email`.
// Each template is a `<name>.txt` and/or `<name>.gohtml` file rendered inside the
// matching `_base` layout.
func ParseEmailTemplates(workDir string, strict bool, logger Logger) {
	dir := filepath.Join(workDir, "assets", "templates", "email")
	fail := func(err error) {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
	}

	parsed := make(map[string]mailTemplate)
	for _, ext := range []string{".txt", ".gohtml"} {
		paths, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			fail(err)
			continue
		}
		base := filepath.Join(dir, "_base"+ext)
		for _, path := range paths {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if strings.HasPrefix(name, "_") {
				continue
			}
			tmpl := parsed[name]
			if ext == ".txt" {
				t, err := texttmpl.ParseFiles(base, path)
				if err != nil {
					fail(err)
					continue
				}
				if strict {
					t.Option("missingkey=error")
				}
				tmpl.text = t
			} else {
				t, err := htmltmpl.ParseFiles(base, path)
				if err != nil {
					fail(err)
					continue
				}
				if strict {
					t.Option("missingkey=error")
				}
				tmpl.html = t
			}
			parsed[name] = tmpl
		}
	}

	tmplMu.Lock()
	templates = parsed
	tmplMu.Unlock()
}
