// Package query decodes CGI request parameters into an arvos.Values store.
//
// The query string comes from QUERY_STRING for GET requests, from
// QUERY_STRING and the request body for POST requests, and from the first
// command-line argument when the program isn't running under CGI at all,
// which is how templates are tried out from a shell:
//
//	avrender index.html 'NAME_0=Alice&NAME_1=Bob'
package query

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"impractical.co/arvos"
)

// MaxInputLength bounds the combined length of the query string and POST
// body.
const MaxInputLength = 1024 * 1024

var (
	// ErrUsage is returned when there's no CGI request method and no query
	// string argument either.
	ErrUsage = errors.New("no query string given")

	// ErrUnknownMethod is returned for request methods other than GET and
	// POST.
	ErrUnknownMethod = errors.New("unknown request method")

	// ErrInputTooLong is returned when the POST input is longer than
	// MaxInputLength.
	ErrInputTooLong = errors.New("POST input too long")
)

// Getenv looks up an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// Read returns the raw query string of the current request.
func Read(getenv Getenv, stdin io.Reader, args []string) (string, error) {
	method := getenv("REQUEST_METHOD")
	switch method {
	case "":
		if len(args) < 1 {
			return "", ErrUsage
		}
		return args[0], nil
	case "GET":
		return getenv("QUERY_STRING"), nil
	case "POST":
		query := getenv("QUERY_STRING")
		if query != "" {
			query += "&"
		}
		length, _ := strconv.Atoi(getenv("CONTENT_LENGTH"))
		if length <= 0 {
			return query, nil
		}
		if len(query)+length >= MaxInputLength {
			return "", fmt.Errorf("%w: %d bytes", ErrInputTooLong, len(query)+length)
		}
		body, err := io.ReadAll(io.LimitReader(stdin, int64(length)))
		if err != nil {
			return "", fmt.Errorf("error reading POST body: %w", err)
		}
		return query + string(body), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Parse decodes a query string into a new Values store.
func Parse(query string) *arvos.Values {
	values := arvos.NewValues()
	ParseInto(values, query)
	return values
}

// ParseInto decodes a query string into values. Pairs without exactly one "="
// and pairs with an empty key are dropped. Keys and values are trimmed after
// decoding.
func ParseInto(values *arvos.Values, query string) {
	for _, pair := range strings.Split(query, "&") {
		if strings.Count(pair, "=") != 1 {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		values.Set(strings.TrimSpace(Decode(key)), strings.TrimSpace(Decode(value)))
	}
}

// Decode undoes form encoding: "+" becomes a space and "%XX" the byte it
// encodes. Control characters and "<" are replaced by spaces, so decoded input
// can't carry markup.
func Decode(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			out.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			n, _ := strconv.ParseUint(s[i+1:i+3], 16, 8)
			out.WriteByte(clean(byte(n)))
			i += 2
		default:
			out.WriteByte(clean(c))
		}
	}
	return out.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func clean(c byte) byte {
	if c < ' ' || c == '<' {
		return ' '
	}
	return c
}

// Cookie returns the session cookie of the request. It's read from the
// HTTP_COOKIE header if there is one, and from the AV_COOKIE parameter of
// query otherwise. Cookies are lowercase hex; anything from the first other
// character on is dropped.
func Cookie(getenv Getenv, query *arvos.Values) string {
	var cookie string
	if header := getenv("HTTP_COOKIE"); header != "" {
		_, after, found := strings.Cut(header, arvos.CookieKey+"=")
		if found {
			cookie = after
		}
	} else if query != nil {
		cookie = query.Value(arvos.CookieKey)
	}
	end := strings.IndexFunc(cookie, func(r rune) bool {
		return !strings.ContainsRune("0123456789abcdef", r)
	})
	if end >= 0 {
		cookie = cookie[:end]
	}
	return cookie
}
