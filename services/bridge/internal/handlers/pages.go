package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/diagnosis/tablelink/pkg/logger"
)

type page struct {
	Title   string
	Heading string
	Message string
}

var (
	pageNotFound = page{
		Title:   "Link not found",
		Heading: "We couldn't find that link",
		Message: "It may have been used already. Ask for a new link from your table.",
	}
	pageExpired = page{
		Title:   "Link expired",
		Heading: "This link has expired",
		Message: "Links are valid for a limited time. Send us a message to get a new one.",
	}
	pageError = page{
		Title:   "Something went wrong",
		Heading: "Something went wrong",
		Message: "Please try again in a moment.",
	}
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;min-height:100vh;display:flex;align-items:center;justify-content:center;background:#faf7f2;font-family:system-ui,-apple-system,sans-serif;color:#2d2a26}
main{max-width:420px;padding:2rem;text-align:center}
h1{font-size:1.5rem;margin-bottom:.5rem}
p{color:#6b645c;line-height:1.5}
</style>
</head>
<body>
<main>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
</main>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, status int, p page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		logger.Error("Failed to render page", "error", err)
		http.Error(w, p.Heading, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
