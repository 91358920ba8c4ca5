package arvos

import (
	"context"
	"io/fs"
	"slices"
	"sync"
)

// Site is an interface for whatever supplies templates to the Renderer.
// Hosts can use it to hold configuration shared by every page they render.
type Site interface {
	// TemplateDir returns an fs.FS containing every template, including
	// any that are only reached through INCLUDE directives. Template and
	// include names are paths within it.
	TemplateDir(ctx context.Context) fs.FS
}

// TemplateCacher is an optional interface for Sites. Those fulfilling it
// keep the lines of each template after it's first read, so long-running
// hosts don't re-read files for every request. Rendered output is never
// cached; it depends on the Values of each request.
type TemplateCacher interface {
	// GetCachedTemplate returns the lines of the named template, or nil
	// if it hasn't been cached yet.
	GetCachedTemplate(ctx context.Context, name string) []string

	// SetCachedTemplate stores the lines of the named template for later
	// retrieval with GetCachedTemplate.
	SetCachedTemplate(ctx context.Context, name string, lines []string)
}

// ServerErrorPager defines an interface that Sites can optionally implement.
// If a Site implements ServerErrorPager and Render fails, the returned Page is
// rendered in place of the failed one, with ErrorKey and ScriptNameKey set.
type ServerErrorPager interface {
	ServerErrorPage(ctx context.Context) Page
}

var _ Site = FSSite{}

// FSSite is a Site that reads its templates straight from an fs.FS, with no
// caching. It suits CGI, where the process ends after a single render.
type FSSite struct {
	Templates fs.FS
}

// TemplateDir returns the fs.FS the FSSite was built with.
func (s FSSite) TemplateDir(_ context.Context) fs.FS {
	return s.Templates
}

var _ Site = &CachedSite{}
var _ TemplateCacher = &CachedSite{}

// CachedSite is an implementation of the Site interface that can be embedded
// in other Site implementations. It caches template lines in memory. A
// CachedSite must be instantiated through NewCachedSite, its empty value is
// not usable.
type CachedSite struct {
	templateCache   map[string][]string
	templateCacheMu sync.RWMutex

	// templateDir is where the Renderer will look for templates.
	templateDir fs.FS
}

// NewCachedSite returns a CachedSite instance that is ready to be used.
func NewCachedSite(templates fs.FS) *CachedSite {
	return &CachedSite{
		templateCache: map[string][]string{},
		templateDir:   templates,
	}
}

// GetCachedTemplate returns the cached lines of the named template, if any.
//
// It can safely be used by multiple goroutines.
func (s *CachedSite) GetCachedTemplate(_ context.Context, name string) []string {
	s.templateCacheMu.RLock()
	defer s.templateCacheMu.RUnlock()
	return s.templateCache[name]
}

// SetCachedTemplate caches the lines of the named template.
//
// It can safely be used by multiple goroutines.
func (s *CachedSite) SetCachedTemplate(_ context.Context, name string, lines []string) {
	s.templateCacheMu.Lock()
	defer s.templateCacheMu.Unlock()
	s.templateCache[name] = slices.Clone(lines)
}

// TemplateDir returns the fs.FS passed to NewCachedSite.
func (s *CachedSite) TemplateDir(_ context.Context) fs.FS {
	return s.templateDir
}
