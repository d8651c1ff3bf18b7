package handlers

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Title      string
	APIKeySet  bool
	ActiveUser *int64
}

// PageHandler renders name with the current process-wide login state.
func PageHandler(d Deps, name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{Title: title, APIKeySet: d.State.APIKeySet()}
		if n, ok := d.State.ActiveUser(); ok {
			data.ActiveUser = &n
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pages.ExecuteTemplate(w, name, data); err != nil {
			entryFor(r, d.Log).WithError(err).WithField("page", name).Error("render page")
		}
	}
}
