package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"impractical.co/arvos"
	"impractical.co/arvos/internal/config"
	"impractical.co/arvos/internal/query"
	"impractical.co/arvos/internal/session"
)

// pageKey is the request parameter naming the template to render.
const pageKey = "PAGE"

// reservedKeys are set by avrender itself and never taken from the request.
// The cookie keys control the Set-Cookie header.
var reservedKeys = []string{
	arvos.CookieKey,
	arvos.CookiePathKey,
	arvos.CookieDomainKey,
	arvos.ErrorKey,
	arvos.ScriptNameKey,
}

// sessionFile is the name of the session database within the configured
// database directory.
const sessionFile = "sessions.db"

// environment is everything run takes from the process, so tests can supply
// their own.
type environment struct {
	args   []string
	getenv query.Getenv
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	exit   func(code int)
}

type cli struct {
	Config      string     `help:"Configuration file, YAML or the two-column format." short:"c" default:"./config/arvosconfig.txt"`
	TemplateDir string     `help:"Directory templates are read from. Overrides the configuration." name:"template-dir"`
	ContentType string     `help:"Content-Type of the response. Overrides the configuration." name:"content-type"`
	SessionDB   string     `help:"Session database file. Defaults to ${session_file} in the configured database directory." name:"session-db"`
	LogLevel    slog.Level `help:"Minimum level of logged messages." default:"warn" name:"log-level"`
	LogFormat   string     `help:"Format of logged messages." enum:"auto,text,json" default:"auto" name:"log-format"`
	Profile     string     `help:"Profile the run in MODE (cpu, mem, trace, ...)." placeholder:"MODE"`
	ProfileDir  string     `help:"Directory profiles are written to." name:"profile-dir"`

	Template string `arg:"" optional:"" default:"index.html" help:"Template to render when the request doesn't name one in ${page_key}."`
	Query    string `arg:"" optional:"" help:"Query string to use when not running under CGI."`
}

func run(ctx context.Context, env environment) error {
	start := time.Now()

	var c cli
	parser, err := kong.New(&c,
		kong.Name("avrender"),
		kong.Description("Render an arvos template as a CGI response."),
		kong.UsageOnError(),
		kong.Exit(env.exit),
		kong.Writers(env.stdout, env.stderr),
		kong.Vars{
			"session_file": sessionFile,
			"page_key":     pageKey,
		},
	)
	if err != nil {
		return err
	}
	if _, err := parser.Parse(env.args); err != nil {
		parser.Errorf("%s", err)
		return err
	}

	log := newLogger(env.stderr, c.LogFormat, c.LogLevel)
	ctx = arvos.LoggingContext(ctx, log)
	page := arvos.Page{
		Template:   c.Template,
		ScriptName: env.getenv("SCRIPT_NAME"),
	}

	cfg, err := loadConfig(ctx, log, c.Config)
	if err != nil {
		return reportError(ctx, log, env.stdout, page, err)
	}
	if c.TemplateDir != "" {
		cfg.TemplateDirectory = c.TemplateDir
	}
	if c.ContentType != "" {
		cfg.ContentType = c.ContentType
	}
	page.ContentType = cfg.ContentType

	trace, err := openTraceFile(cfg.TraceFile)
	if err != nil {
		return reportError(ctx, log, env.stdout, page, err)
	}
	if trace != nil {
		defer trace.Close()
		log = newLogger(trace, logFormatText, slog.LevelDebug)
		ctx = arvos.LoggingContext(ctx, log)
	}

	prof, err := startProfile(c.Profile, c.ProfileDir)
	if err != nil {
		return reportError(ctx, log, env.stdout, page, err)
	}
	defer prof.Stop()

	var args []string
	if c.Query != "" {
		args = []string{c.Query}
	}
	raw, err := query.Read(env.getenv, env.stdin, args)
	if err != nil {
		return reportError(ctx, log, env.stdout, page, err)
	}
	log.DebugContext(ctx, "handling request",
		slog.String("method", env.getenv("REQUEST_METHOD")),
		slog.String("query", raw))

	values := arvos.NewValuesSince(start)
	query.ParseInto(values, raw)
	if name := values.Value(pageKey); name != "" {
		page.Template = name
	}

	cookie := query.Cookie(env.getenv, values)
	for _, key := range reservedKeys {
		values.Unset(key)
	}
	if cookie != "" {
		dbPath := c.SessionDB
		if dbPath == "" {
			dbPath = filepath.Join(cfg.DatabaseDirectory, sessionFile)
		}
		err := loadSession(ctx, log, values, dbPath, cookie, cfg.CookiePath, env.getenv("SERVER_NAME"))
		if err != nil {
			return reportError(ctx, log, env.stdout, page, err)
		}
	}

	site := arvos.NewCachedSite(os.DirFS(cfg.TemplateDirectory))
	return arvos.Render(ctx, env.stdout, site, values, page,
		arvos.WithMaxIncludeDepth(cfg.MaxIncludeDepth))
}

// loadConfig reads the configuration file at path. A missing file leaves
// every setting at its default.
func loadConfig(ctx context.Context, log *slog.Logger, path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.DebugContext(ctx, "no configuration file, using defaults",
			slog.String("path", path))
		return config.Default(), nil
	}
	return cfg, err
}

// loadSession touches the session identified by cookie and copies its data
// into values, along with the settings Render needs to send the cookie back.
// An unknown or expired cookie, or a missing database, means no session.
func loadSession(ctx context.Context, log *slog.Logger, values *arvos.Values, dbPath, cookie, cookiePath, domain string) error {
	store, err := session.Open(dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.WarnContext(ctx, "session database directory missing, ignoring cookie",
			slog.String("path", dbPath),
			slog.Any("error", err))
		return nil
	}
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := store.Touch(cookie)
	if errors.Is(err, session.ErrNoSession) {
		log.InfoContext(ctx, "unknown session cookie", slog.String("cookie", cookie))
		return nil
	}
	if err != nil {
		return err
	}

	values.SetRow(data, arvos.NoIteration)
	values.Set(arvos.CookieKey, cookie)
	values.Set(arvos.CookiePathKey, cookiePath)
	values.Set(arvos.CookieDomainKey, domain)
	return nil
}

// reportError logs err and writes the server error page for it.
func reportError(ctx context.Context, log *slog.Logger, out io.Writer, page arvos.Page, err error) error {
	log.ErrorContext(ctx, "error handling request", slog.Any("error", err))
	if writeErr := arvos.RenderError(ctx, out, nil, page, err); writeErr != nil {
		log.ErrorContext(ctx, "error writing server error page", slog.Any("error", writeErr))
	}
	return err
}
