// Package http provides the JSON API server and its handlers.
//
// This file holds the query and body parsing shared by the handlers.

package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"bokforing/internal/core"
)

var errBadParameter = errors.New("bad parameter")

// ParseWindow reads the from/to query parameters.
func ParseWindow(query url.Values) (core.Window, error) {
	w := core.Window{
		From: strings.TrimSpace(query.Get("from")),
		To:   strings.TrimSpace(query.Get("to")),
	}
	if err := w.Validate(); err != nil {
		return core.Window{}, fmt.Errorf("%w: from=%q to=%q", err, w.From, w.To)
	}
	return w, nil
}

// ParseDocumentFilter reads the search/type/status query parameters.
func ParseDocumentFilter(query url.Values) (core.DocumentFilter, error) {
	f := core.DocumentFilter{
		Search: sanitizeInput(query.Get("search")),
		Type:   core.DocumentType(strings.TrimSpace(query.Get("type"))),
		Status: core.DocumentStatus(strings.TrimSpace(query.Get("status"))),
	}
	if f.Type != "" && !f.Type.IsValid() {
		return core.DocumentFilter{}, fmt.Errorf("%w: type %q", errBadParameter, f.Type)
	}
	if f.Status != "" && !f.Status.IsValid() {
		return core.DocumentFilter{}, fmt.Errorf("%w: status %q", errBadParameter, f.Status)
	}
	return f, nil
}

// MaxYearKeyLength bounds the year parameter. Fiscal-year keys are free
// form ("2024", "2023/24", "unknown").
const MaxYearKeyLength = 16

// ParseYear reads the optional year parameter.
func ParseYear(query url.Values) (string, error) {
	raw := query.Get("year")
	year := strings.TrimSpace(raw)
	if year == "" {
		return "", nil
	}
	if sanitizeInput(raw) != year || strings.ContainsAny(year, "\t\n\r") {
		return "", fmt.Errorf("%w: year contains control characters", errBadParameter)
	}
	if utf8.RuneCountInString(year) > MaxYearKeyLength {
		return "", fmt.Errorf("%w: year longer than %d characters", errBadParameter, MaxYearKeyLength)
	}
	return year, nil
}

// ReadBody reads at most limit bytes of the request body.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: empty body", errBadParameter)
	}
	return body, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
