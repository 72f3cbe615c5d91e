package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	TemplateLogin  = "login"
	TemplatePayout = "payout"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var subjects = map[string]string{
	TemplateLogin:  "PrivateDrops - sign in",
	TemplatePayout: "PrivateDrops - media viewed",
}

type LoginData struct {
	Link      string
	ExpiresIn string
}

type PayoutData struct {
	Amount   string
	Currency string
	Link     string
}

type renderer struct {
	html map[string]*htmltemplate.Template
	text map[string]*texttemplate.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{
		html: map[string]*htmltemplate.Template{},
		text: map[string]*texttemplate.Template{},
	}
	for name := range subjects {
		html, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", name, err)
		}
		text, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", name, err)
		}
		r.html[name] = html
		r.text[name] = text
	}
	return r, nil
}

func (r *renderer) render(name string, data any) (subject, text, html string, err error) {
	htmlTmpl, ok := r.html[name]
	if !ok {
		return "", "", "", ErrUnknownTemplate
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTmpl.ExecuteTemplate(&htmlBuf, "layout", data); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	if err := r.text[name].Execute(&textBuf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	return subjects[name], textBuf.String(), htmlBuf.String(), nil
}
