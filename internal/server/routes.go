package server

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"team-health/internal/reports"
	"team-health/internal/stats"

	"github.com/gin-gonic/gin"
)

// Retro download formats.
const (
	formatHTML     = "html"
	formatMarkdown = "markdown"
)

// badRequestError marks a malformed query parameter.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/assets/app.js", s.handleAppJS)
	r.GET("/", s.handleDashboard)

	for _, rep := range reports.Catalog {
		r.GET("/"+rep.Name, s.handleReportPage(rep))
	}

	api := r.Group("/api")
	api.GET("/:report", s.handleReportJSON)
	api.GET("/:report/schema", s.handleReportSchema)

	r.NoRoute(func(c *gin.Context) {
		s.renderError(c, &reports.UnknownReportError{Name: c.Request.URL.Path})
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleAppJS(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", s.appJS)
}

func (s *Server) handleDashboard(c *gin.Context) {
	s.render(c, http.StatusOK, "dashboard", s.page(c, "", reports.Params{}, nil))
}

func (s *Server) handleReportPage(rep reports.Report) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := paramsFrom(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		format := c.Query("format")
		if rep.Name == "retro" && format != "" && format != formatHTML && format != formatMarkdown {
			s.renderError(c, &badRequestError{msg: "format must be html or markdown"})
			return
		}

		result, err := s.builder.Run(c.Request.Context(), rep.Name, p)
		if err != nil {
			s.renderError(c, err)
			return
		}

		if retro, ok := result.(*reports.RetroReport); ok && format != "" {
			s.downloadRetro(c, retro, format)
			return
		}
		s.render(c, http.StatusOK, rep.Name, s.page(c, rep.Name, p, result))
	}
}

func (s *Server) handleReportJSON(c *gin.Context) {
	p, err := paramsFrom(c)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	result, err := s.builder.Run(c.Request.Context(), c.Param("report"), p)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReportSchema(c *gin.Context) {
	rep, ok := reports.Lookup(c.Param("report"))
	if !ok {
		s.jsonError(c, &reports.UnknownReportError{Name: c.Param("report")})
		return
	}
	schema, err := rep.Schema()
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) downloadRetro(c *gin.Context, retro *reports.RetroReport, format string) {
	name := "retro-" + slug(retro.Sprint.Name)
	if format == formatMarkdown {
		c.Header("Content-Disposition", `attachment; filename="`+name+`.md"`)
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(retro.Markdown()))
		return
	}
	body, err := renderDocument(retro, time.Now())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`.html"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (s *Server) jsonError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, gin.H{"error": err.Error(), "status": status})
}

// paramsFrom reads and validates the query parameters shared by every report.
func paramsFrom(c *gin.Context) (reports.Params, error) {
	var p reports.Params
	if period := c.Query("period"); period != "" {
		if !slices.Contains(stats.Periods, period) {
			return p, &stats.UnknownPeriodError{Period: period}
		}
		p.Period = period
	}
	if raw := c.Query("sprintId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return p, &badRequestError{msg: "sprintId must be a positive integer"}
		}
		p.SprintID = id
	}
	return p, nil
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		case len(out) > 0 && out[len(out)-1] != '-':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "sprint"
	}
	if out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}
