package server

import (
	"context"
	"errors"
	"net/http"

	"team-health/internal/github"
	"team-health/internal/jira"
	"team-health/internal/reports"
	"team-health/internal/stats"
)

// statusFor maps a report error to the HTTP status shown to the user. Upstream 4xx/5xx codes
// are passed through; anything unclassified is a bad gateway, since reports only fail on
// upstream data.
func statusFor(err error) int {
	var (
		periodErr *stats.UnknownPeriodError
		badReq    *badRequestError
		unknown   *reports.UnknownReportError
		jiraErr   *jira.APIError
		ghErr     *github.StatusError
	)
	switch {
	case errors.As(err, &periodErr), errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.As(err, &unknown), errors.Is(err, reports.ErrNoSprint):
		return http.StatusNotFound
	case errors.As(err, &jiraErr) && jiraErr.StatusCode >= 400:
		return jiraErr.StatusCode
	case errors.As(err, &ghErr) && ghErr.StatusCode >= 400:
		return ghErr.StatusCode
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nginx's convention.
		return 499
	default:
		return http.StatusBadGateway
	}
}

// errorView is what the error panel shows.
type errorView struct {
	Status     int
	StatusText string
	Message    string
}

func newErrorView(err error) *errorView {
	status := statusFor(err)
	text := http.StatusText(status)
	if text == "" {
		text = "Request cancelled"
	}
	return &errorView{Status: status, StatusText: text, Message: err.Error()}
}
