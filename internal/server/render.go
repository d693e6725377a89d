package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"team-health/internal/reports"
	"team-health/internal/stats"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

//go:embed web
var webFS embed.FS

var (
	templates map[string]*template.Template
	document  *template.Template
)

var funcMap = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2")
	},
	"datep": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2")
	},
	"datetime": func(t time.Time) string { return t.Format("Jan 2 15:04") },
	"one":      stats.FormatOneDecimal,
	"onep": func(v *float64) string {
		if v == nil {
			return "—"
		}
		return stats.FormatOneDecimal(*v)
	},
	"lower": strings.ToLower,
	"join":  strings.Join,
	"label": stats.PeriodLabel,
}

func init() {
	layout := template.Must(template.New("layout").Funcs(funcMap).ParseFS(webFS, "web/templates/layout.html"))

	pages := []string{"dashboard", "error"}
	for _, r := range reports.Catalog {
		pages = append(pages, r.Name)
	}

	templates = make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t := template.Must(template.Must(layout.Clone()).ParseFS(webFS, "web/templates/"+p+".html"))
		templates[p] = t
	}

	document = template.Must(template.New("document").Funcs(funcMap).ParseFS(webFS, "web/templates/retro_document.html"))
}

type navItem struct {
	Name  string
	Title string
}

type periodOption struct {
	Value    string
	Label    string
	Selected bool
}

// pageData is what every template receives. Report holds the typed report result.
type pageData struct {
	Title     string
	Active    string
	Nav       []navItem
	Cards     []reports.Report
	Params    reports.Params
	Periods   []periodOption
	Report    any
	Error     *errorView
	Generated time.Time
}

func (s *Server) page(c *gin.Context, active string, p reports.Params, result any) pageData {
	data := pageData{
		Title:     "Team Health",
		Active:    active,
		Params:    p,
		Report:    result,
		Generated: time.Now(),
	}
	for _, r := range reports.Catalog {
		data.Nav = append(data.Nav, navItem{Name: r.Name, Title: r.Title})
		if r.Name == active {
			data.Title = r.Title
		}
	}
	if active == "" {
		data.Cards = reports.Catalog
	}

	period := p.Period
	if period == "" {
		period = stats.DefaultPeriod
	}
	for _, v := range stats.Periods {
		data.Periods = append(data.Periods, periodOption{Value: v, Label: stats.PeriodLabel(v), Selected: v == period})
	}
	return data
}

// render executes a page into a buffer so a template failure never leaves a half-written
// response. HTMX requests get the "content" fragment only.
func (s *Server) render(c *gin.Context, status int, name string, data pageData) {
	t, ok := templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("Missing template")
		c.String(http.StatusInternalServerError, "missing template %s", name)
		return
	}

	entry := "layout"
	if isHTMX(c) {
		entry = "content"
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Template execution failed")
		c.String(http.StatusInternalServerError, "failed to render %s", name)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// renderError shows the error panel (HTMX) or a full error page with the mapped status.
func (s *Server) renderError(c *gin.Context, err error) {
	view := newErrorView(err)
	if view.Status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("path", c.Request.URL.Path).Int("status", view.Status).Msg("Report failed")
	}
	data := s.page(c, strings.TrimPrefix(c.FullPath(), "/"), reports.Params{}, nil)
	data.Title = view.StatusText
	data.Error = view
	s.render(c, view.Status, "error", data)
}

// renderDocument renders the standalone retrospective download.
func renderDocument(retro *reports.RetroReport, generated time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := document.ExecuteTemplate(&buf, "document", struct {
		Report    *reports.RetroReport
		Generated time.Time
	}{retro, generated})
	return buf.Bytes(), err
}
