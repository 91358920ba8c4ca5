package arvos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxIncludeDepth is how deeply INCLUDE directives may nest
	// unless WithMaxIncludeDepth says otherwise.
	DefaultMaxIncludeDepth = 16

	// DefaultMaxLineLength is the longest template line, in bytes, that
	// the Renderer accepts unless WithMaxLineLength says otherwise.
	DefaultMaxLineLength = 4096
)

// Renderer renders templates from a Site against a Values store.
//
// A Renderer never modifies its Values. Like the Values it holds, it's meant
// for a single request and is not safe for concurrent use.
type Renderer struct {
	site   Site
	values *Values

	maxIncludeDepth int
	maxLineLength   int
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithMaxIncludeDepth sets how deeply INCLUDE directives may nest. A template
// included from the template being rendered is at depth 1.
func WithMaxIncludeDepth(depth int) RendererOption {
	return func(r *Renderer) {
		r.maxIncludeDepth = depth
	}
}

// WithMaxLineLength sets the longest template line the Renderer accepts.
func WithMaxLineLength(length int) RendererOption {
	return func(r *Renderer) {
		r.maxLineLength = length
	}
}

// NewRenderer returns a Renderer that reads templates from site and fills
// them in from values.
func NewRenderer(site Site, values *Values, opts ...RendererOption) *Renderer {
	r := &Renderer{
		site:            site,
		values:          values,
		maxIncludeDepth: DefaultMaxIncludeDepth,
		maxLineLength:   DefaultMaxLineLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute renders the named template to w. Only the body is written; see
// Render for writing a complete response.
//
// Output is streamed, so on error w may hold part of the page. Render buffers
// to avoid that.
func (r *Renderer) Execute(ctx context.Context, w io.Writer, name string) error {
	ctx, span := tracer().Start(ctx, "arvos.Execute", trace.WithAttributes(
		attribute.String("arvos.template", name),
	))
	defer span.End()

	err := r.execute(ctx, w, []string{name}, NoIteration)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// execute renders the last template in chain. chain holds every template
// from the one Execute was called with down to this one.
func (r *Renderer) execute(ctx context.Context, w io.Writer, chain []string, iteration int) error {
	name := chain[len(chain)-1]
	src, done, err := r.open(ctx, name)
	if err != nil {
		return err
	}
	defer done()

	p := &pass{
		renderer:  r,
		out:       w,
		chain:     chain,
		iteration: iteration,
	}
	err = p.run(ctx, src)
	if err != nil {
		return fmt.Errorf("error rendering %q: %w", name, err)
	}
	return nil
}

// open returns a lineSource for the named template and a function to release
// it once the source is exhausted.
func (r *Renderer) open(ctx context.Context, name string) (lineSource, func(), error) {
	cache, cacheable := r.site.(TemplateCacher)
	if cacheable {
		if lines := cache.GetCachedTemplate(ctx, name); lines != nil {
			return &sliceSource{lines: lines}, func() {}, nil
		}
	}
	file, err := r.site.TemplateDir(ctx).Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening template %q: %w", name, err)
	}
	closeFile := func() {
		if err := file.Close(); err != nil {
			logger(ctx).WarnContext(ctx, "error closing template",
				slog.String("template", name),
				slog.Any("error", err))
		}
	}
	src := newReaderSource(name, file, r.maxLineLength)
	if !cacheable {
		return src, closeFile, nil
	}
	defer closeFile()
	lines, err := readAll(src)
	if err != nil {
		return nil, nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	cache.SetCachedTemplate(ctx, name, lines)
	return &sliceSource{lines: lines}, func() {}, nil
}

// pass is one run of the line pipeline over a template file or over one
// iteration of a loop body.
type pass struct {
	renderer  *Renderer
	out       io.Writer
	chain     []string
	iteration int

	blocks blockStack
	loop   *loop
}

func (p *pass) run(ctx context.Context, src lineSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := src.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		err = p.line(ctx, line)
		if err != nil {
			return err
		}
	}
	if p.loop != nil {
		return fmt.Errorf("%w: FOR %q has no ENDFOR", ErrUnterminatedBlock, p.loop.tag)
	}
	return p.blocks.finish()
}

// line processes one line of template text. After each directive the rest of
// the line is handled as though it were a fresh line.
func (p *pass) line(ctx context.Context, text string) error {
	values := p.renderer.values
	for text != "" {
		if p.loop != nil {
			rest, done := p.loop.feed(text)
			if !done {
				return nil
			}
			l := p.loop
			p.loop = nil
			if err := p.replay(ctx, l); err != nil {
				return err
			}
			if isBlank(rest) {
				return nil
			}
			text = rest
			continue
		}

		d, ok := nextDirective(text)
		if p.blocks.skipping() {
			if !ok || !d.terminated {
				return nil
			}
			switch d.kind {
			case directiveIfdef, directiveIfndef:
				tag, err := p.tag(d)
				if err != nil {
					return err
				}
				p.blocks.open(d.kind, tag, values, p.iteration)
			case directiveEndif:
				tag, err := p.tag(d)
				if err != nil {
					return err
				}
				if err := p.blocks.close(tag); err != nil {
					return err
				}
			}
			text = text[d.end:]
			continue
		}

		if !ok || !d.terminated {
			return p.emit(text)
		}
		if err := p.emit(text[:d.start]); err != nil {
			return err
		}
		rest := text[d.end:]
		switch d.kind {
		case directiveIfdef, directiveIfndef:
			tag, err := p.tag(d)
			if err != nil {
				return err
			}
			p.blocks.open(d.kind, tag, values, p.iteration)
		case directiveEndif:
			tag, err := p.tag(d)
			if err != nil {
				return err
			}
			if err := p.blocks.close(tag); err != nil {
				return err
			}
		case directiveFor:
			p.loop = &loop{tag: d.tag}
			if isBlank(rest) {
				return nil
			}
		case directiveEndfor:
			return fmt.Errorf("%w: ENDFOR %q without FOR", ErrUnexpectedDirective, d.tag)
		case directiveInclude:
			if err := p.include(ctx, d.tag); err != nil {
				return err
			}
		default:
			if err := p.emit(text[d.start:d.end]); err != nil {
				return err
			}
		}
		text = rest
	}
	return nil
}

// tag returns the tag of a conditional directive with its own markers
// substituted, so a block can test a key named by another value.
func (p *pass) tag(d directive) (string, error) {
	tag, err := Substitute(p.renderer.values, d.tag, p.iteration)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tag), nil
}

// emit substitutes text and writes it out.
func (p *pass) emit(text string) error {
	if text == "" {
		return nil
	}
	out, err := Substitute(p.renderer.values, text, p.iteration)
	if err != nil {
		return err
	}
	_, err = io.WriteString(p.out, out)
	if err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	return nil
}

// replay renders the body of l once for each iteration that has data.
func (p *pass) replay(ctx context.Context, l *loop) error {
	ctx, span := tracer().Start(ctx, "arvos.loop", trace.WithAttributes(
		attribute.String("arvos.loop.tag", l.tag),
		attribute.Int("arvos.loop.lines", len(l.body)),
	))
	defer span.End()

	iteration := 0
	for ; l.iterates(p.renderer.values, iteration); iteration++ {
		body := &pass{
			renderer:  p.renderer,
			out:       p.out,
			chain:     p.chain,
			iteration: iteration,
		}
		err := body.run(ctx, &sliceSource{lines: l.body})
		if err != nil {
			return fail(span, fmt.Errorf("error in FOR %q iteration %d: %w", l.tag, iteration, err))
		}
	}
	span.SetAttributes(attribute.Int("arvos.loop.iterations", iteration))
	logger(ctx).DebugContext(ctx, "rendered loop",
		slog.String("tag", l.tag),
		slog.Int("iterations", iteration))
	return nil
}

// include renders the named template in place, against the same Values and
// in the current iteration.
func (p *pass) include(ctx context.Context, name string) error {
	chain := append(slices.Clone(p.chain), name)
	if len(chain)-1 > p.renderer.maxIncludeDepth {
		return fmt.Errorf("%w: %s", ErrIncludeDepth, strings.Join(chain, " -> "))
	}

	ctx, span := tracer().Start(ctx, "arvos.include", trace.WithAttributes(
		attribute.String("arvos.template", name),
		attribute.Int("arvos.include.depth", len(chain)-1),
	))
	defer span.End()

	logger(ctx).DebugContext(ctx, "including template",
		slog.String("template", name),
		slog.String("from", p.chain[len(p.chain)-1]))
	err := p.renderer.execute(ctx, p.out, chain, p.iteration)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// Render renders a complete response for page to out: the headers, a blank
// line, then the rendered template. The response is built in memory first,
// so a failed render never leaves part of the page behind.
//
// If rendering fails, a server error page is written instead and the error is
// returned, so the caller can decide how to exit. If the Site implements
// ServerErrorPager, that page is rendered; if not, or if it fails too, a
// minimal HTML page naming the failure is written.
func Render(ctx context.Context, out io.Writer, site Site, values *Values, page Page, opts ...RendererOption) error {
	ctx, span := tracer().Start(ctx, "arvos.Render", trace.WithAttributes(
		attribute.String("arvos.template", page.Template),
	))
	defer span.End()

	err := renderPage(ctx, out, site, values, page, opts...)
	if err == nil {
		return nil
	}
	fail(span, err)

	logger(ctx).ErrorContext(ctx, "error rendering page",
		slog.String("template", page.Template),
		slog.Any("error", err))

	writeErr := RenderError(ctx, out, site, page, err, opts...)
	if writeErr != nil {
		// nothing else can be sent to the client at this point
		logger(ctx).ErrorContext(ctx, "error writing server error page",
			slog.Any("error", writeErr))
	}
	return err
}

func renderPage(ctx context.Context, out io.Writer, site Site, values *Values, page Page, opts ...RendererOption) error {
	var body bytes.Buffer
	err := NewRenderer(site, values, opts...).Execute(ctx, &body, page.Template)
	if err != nil {
		return err
	}
	return writeResponse(out, values, page.contentType(), body.Bytes())
}
