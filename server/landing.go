package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/Desarso/minetchat/render"
	"github.com/pkg/errors"
)

//go:embed web/index.html web/landing.md web/static/*
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

type landingPage struct {
	Title     string
	Sections  template.HTML
	RelayPath string
}

func renderLanding(relayPath string) ([]byte, error) {
	source, err := webFS.ReadFile("web/landing.md")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read landing content")
	}
	sections, err := render.HTML(string(source))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, landingPage{
		Title:     "Minet",
		Sections:  template.HTML(sections),
		RelayPath: relayPath,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to render landing page")
	}
	return buf.Bytes(), nil
}

func staticFS() http.FileSystem {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
