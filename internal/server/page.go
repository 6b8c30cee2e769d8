package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>School overcrowding {{.Summary.Year}}</title>
<style>
  body { margin: 0; font-family: sans-serif; background: #fafafa; }
  header { padding: 12px 20px; }
  header h1 { font-size: 18px; margin: 0 0 4px; }
  header p { margin: 0; color: #555; font-size: 14px; }
  main svg { display: block; width: 100%; height: auto; max-height: calc(100vh - 70px); }
</style>
</head>
<body>
<header>
  <h1>School overcrowding, {{.Summary.Year}}</h1>
  <p>{{.Summary.Summary.Enrollment}} students in seats for {{.Summary.Summary.Capacity}}
  ({{.Summary.Summary.Percent}}%), {{.Summary.Summary.OverEnrolled}} of {{.Summary.Summary.Schools}} schools over capacity.
  Click a cluster to zoom, click it again to zoom out.</p>
</header>
<main>{{.Map}}</main>
</body>
</html>
`))

type indexData struct {
	Summary summaryResponse
	Map     template.HTML
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	opts := s.opts
	opts.Formats = []string{pipeline.FormatSVG}
	opts.Legend = true
	opts.Stats = true

	artifacts, err := s.runner.Render(r.Context(), ds, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	err = indexTemplate.Execute(&buf, indexData{
		Summary: newSummary(ds),
		// rendered by mapview, which escapes every text node
		Map: template.HTML(artifacts[pipeline.FormatSVG]),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
