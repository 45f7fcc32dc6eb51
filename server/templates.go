package server

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// templateSet holds every region's partial, each parsed alongside the
// shared layout and funcs so a partial can be rendered standalone (htmx
// fragment request) or as part of the full page.
type templateSet struct {
	page *template.Template
}

func loadTemplates() (*templateSet, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"timeago": timeago,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("server: parse templates: %w", err)
	}
	return &templateSet{page: t}, nil
}

// timeago renders a timestamp as a short relative-age string, matching
// scripts/dashboard.py's Jinja2 `timeago` filter. A zero timestamp renders
// as an em dash.
func timeago(ts time.Time) string {
	if ts.IsZero() {
		return "—"
	}
	d := time.Since(ts)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
