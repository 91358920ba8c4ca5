package arvos

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
)

const (
	// CookieKey holds the session cookie value. When it, CookiePathKey and
	// CookieDomainKey are all set, Render sends a Set-Cookie header.
	CookieKey = "AV_COOKIE"

	// CookiePathKey holds the Path attribute of the session cookie.
	CookiePathKey = "AV_COOKIE_PATH"

	// CookieDomainKey holds the Domain attribute of the session cookie.
	CookieDomainKey = "AV_COOKIE_DOMAIN"

	// ErrorKey is set to the error message when a ServerErrorPager's page
	// is rendered.
	ErrorKey = "ERROR"

	// ScriptNameKey is set to Page.ScriptName when a ServerErrorPager's
	// page is rendered.
	ScriptNameKey = "SCRIPT_NAME"

	// DefaultContentType is used when a Page doesn't name one.
	DefaultContentType = "text/html"
)

// Page describes one response Render can produce.
type Page struct {
	// Template is the path, within the Site's TemplateDir, of the
	// template to render.
	Template string

	// ContentType is sent in the Content-Type header. It defaults to
	// DefaultContentType.
	ContentType string

	// ScriptName names the script handling the request, for error pages.
	// CGI hosts should use SCRIPT_NAME from the environment.
	ScriptName string
}

func (p Page) contentType() string {
	if p.ContentType == "" {
		return DefaultContentType
	}
	return p.ContentType
}

// writeResponse writes the headers, the blank line ending them, and body to
// out in a single write.
func writeResponse(out io.Writer, values *Values, contentType string, body []byte) error {
	var buf bytes.Buffer
	writeHeader(&buf, values, contentType)
	buf.Write(body)
	_, err := out.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

func writeHeader(buf *bytes.Buffer, values *Values, contentType string) {
	fmt.Fprintf(buf, "Content-Type: %s\n", contentType)
	if values != nil {
		cookie := values.Value(CookieKey)
		path := values.Value(CookiePathKey)
		domain := values.Value(CookieDomainKey)
		if cookie != "" && path != "" && domain != "" {
			fmt.Fprintf(buf, "Set-Cookie: %s=%s; Path=%s; DOMAIN=%s; HttpOnly\n", CookieKey, cookie, path, domain)
		}
	}
	buf.WriteString("\n")
}

var serverErrorTemplate = template.Must(template.New("server_error").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Server Error</title>
</head>
<body>
<h1>An error occurred</h1>
<p>While accessing the script '{{ .Script }}'.
<p><b>{{ .Error }}</b>
<p>Please click your browser's back button to continue.
</body>
</html>
`))

// RenderError writes a server error response for failure, which happened
// while handling page. Render calls it when rendering fails; hosts can call it
// for failures that happen before there's anything to render. site may be nil,
// in which case the built-in error page is used.
func RenderError(ctx context.Context, out io.Writer, site Site, page Page, failure error, opts ...RendererOption) error {
	script := page.ScriptName
	if script == "" {
		script = "unknown"
	}

	if pager, ok := site.(ServerErrorPager); ok {
		errorPage := pager.ServerErrorPage(ctx)
		values := NewValues()
		values.Set(ErrorKey, failure.Error())
		values.Set(ScriptNameKey, script)
		err := renderPage(ctx, out, site, values, errorPage, opts...)
		if err == nil {
			return nil
		}
		logger(ctx).ErrorContext(ctx, "error rendering server error page, using the default",
			slog.String("template", errorPage.Template),
			slog.Any("error", err))
	}

	var body bytes.Buffer
	err := serverErrorTemplate.Execute(&body, struct {
		Script string
		Error  string
	}{
		Script: script,
		Error:  failure.Error(),
	})
	if err != nil {
		return fmt.Errorf("error executing server error template: %w", err)
	}
	return writeResponse(out, nil, DefaultContentType, body.Bytes())
}
