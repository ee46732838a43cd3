package http

import (
	"bytes"
	"net/http"

	"pft/internal/dashboard"
)

// HTMXResponseBuilder assembles one dashboard response: status, headers
// and an HTML body.
type HTMXResponseBuilder struct {
	statusCode int
	body       bytes.Buffer
	headers    map[string]string
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// Fragments appends out-of-band swaps; htmx routes each to its element id.
func (b *HTMXResponseBuilder) Fragments(frags []dashboard.Fragment) *HTMXResponseBuilder {
	for _, f := range frags {
		b.body.WriteString(string(f.HTML))
		b.body.WriteByte('\n')
	}
	return b
}

// Redirect makes htmx load url as a full page.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	return b.Header("HX-Redirect", url)
}

func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body.WriteString(content)
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if _, ok := b.headers["Content-Type"]; !ok && b.body.Len() > 0 {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	_, _ = b.body.WriteTo(w)
}

// ErrorResponse is a bare status page; causes only go to the log.
func ErrorResponse(statusCode int) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		Header("Content-Type", "text/plain; charset=utf-8").
		BodyString(http.StatusText(statusCode))
}
