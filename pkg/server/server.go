// Package server serves the repository browser over HTTP.
//
// URLs have the form
//
//	/                                   repository list
//	/<namespace>/<name>/                default branch tree
//	/<namespace>/<name>/-/<view>/<rev>/<path>
//
// where the namespace is optional and view is one of tree, blob, raw,
// blame, commit, patch, history or archive.
package server

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/odvcencio/gitbrowse/pkg/archive"
	"github.com/odvcencio/gitbrowse/pkg/markup"
	"github.com/odvcencio/gitbrowse/pkg/repo"
	"github.com/odvcencio/gitbrowse/pkg/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configure a Server.
type Options struct {
	SiteName string
	Logger   *slog.Logger
	// Highlight renders source files; nil uses markup.Plain.
	Highlight markup.Highlighter
	// Now is the clock used for relative times; nil uses time.Now.
	Now func() time.Time
}

// Server routes requests to the view functions and renders their results.
type Server struct {
	repos     []*repo.Repo
	byName    map[string]*repo.Repo
	siteName  string
	logger    *slog.Logger
	highlight markup.Highlighter
	now       func() time.Time
	engine    *gin.Engine
}

// New builds a Server for repos. Repository full names must be unique.
func New(repos []*repo.Repo, opts Options) (*Server, error) {
	s := &Server{
		repos:     repos,
		byName:    make(map[string]*repo.Repo, len(repos)),
		siteName:  opts.SiteName,
		logger:    opts.Logger,
		highlight: opts.Highlight,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.highlight == nil {
		s.highlight = markup.Plain
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, r := range repos {
		if _, dup := s.byName[r.FullName()]; dup {
			return nil, errors.New("duplicate repository name " + r.FullName())
		}
		s.byName[r.FullName()] = r
	}

	tmpl, err := template.New("").Funcs(s.templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(requestID(), requestLogger(s.logger), compress(s.logger), recovery(s.logger))
	engine.GET("/*path", s.dispatch)
	engine.HEAD("/*path", s.dispatch)
	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// page is the data every template receives.
type page struct {
	Site  string
	Repo  *repo.Repo
	Ctx   *view.Context
	View  string
	Query string
	Order string
	Data  any
}

func (s *Server) dispatch(c *gin.Context) {
	p := strings.Trim(c.Param("path"), "/")
	if p == "" {
		s.repoList(c)
		return
	}

	repoPart, rest, hasView := strings.Cut(p, "/-/")
	r, ok := s.byName[repoPart]
	if !ok {
		s.fail(c, &repo.NotFoundError{Kind: "repo", Name: repoPart})
		return
	}
	if !hasView {
		if strings.HasSuffix(c.Request.URL.Path, "/") {
			s.tree(c, r, "")
			return
		}
		c.Redirect(http.StatusMovedPermanently, "/"+repoPart+"/")
		return
	}

	name, revpath, _ := strings.Cut(rest, "/")
	switch name {
	case "tree":
		s.tree(c, r, revpath)
	case "history":
		s.history(c, r, revpath)
	case "blob":
		s.blob(c, r, revpath)
	case "raw":
		s.raw(c, r, revpath, view.RawBlob)
	case "blame":
		s.blame(c, r, revpath)
	case "commit":
		s.commit(c, r, revpath)
	case "patch":
		s.raw(c, r, revpath, view.RawPatch)
	case "archive":
		s.archive(c, r, revpath)
	default:
		s.fail(c, &repo.NotFoundError{Kind: "view", Name: name})
	}
}

func (s *Server) repoList(c *gin.Context) {
	order := c.DefaultQuery("order", view.OrderName)
	query := c.Query("q")
	list, err := view.RepoList(s.repos, order, query)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, view.Rendered{Template: "repo_list", Data: list}, page{Query: query, Order: order})
}

func (s *Server) resolve(c *gin.Context, r *repo.Repo, revpath string) (*view.Context, bool) {
	ctx, err := view.Resolve(r, revpath)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return ctx, true
}

func (s *Server) tree(c *gin.Context, r *repo.Repo, revpath string) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	v, err := view.Tree(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, view.Rendered{Template: "tree", Data: v}, page{Repo: r, Ctx: ctx, View: "tree"})
}

func (s *Server) history(c *gin.Context, r *repo.Repo, revpath string) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	pageNum, _ := strconv.Atoi(c.Query("page"))
	v, err := view.History(ctx, pageNum)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, view.Rendered{Template: "history", Data: v}, page{Repo: r, Ctx: ctx, View: "history"})
}

func (s *Server) blob(c *gin.Context, r *repo.Repo, revpath string) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	if ctx.Node.IsTree() {
		c.Redirect(http.StatusFound, repoURL(r)+"/-/tree/"+ctx.Rev+"/"+ctx.Path)
		return
	}
	v, err := view.Blob(ctx, c.Query("markup") != "0", s.highlight)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, view.Rendered{Template: "blob", Data: v}, page{Repo: r, Ctx: ctx, View: "blob"})
}

func (s *Server) blame(c *gin.Context, r *repo.Repo, revpath string) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	v, err := view.Blame(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, view.Rendered{Template: "blame", Data: v}, page{Repo: r, Ctx: ctx, View: "blame"})
}

func (s *Server) commit(c *gin.Context, r *repo.Repo, revpath string) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	v, err := view.Commit(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, view.Rendered{Template: "commit", Data: v}, page{Repo: r, Ctx: ctx, View: "commit"})
}

func (s *Server) raw(c *gin.Context, r *repo.Repo, revpath string, fn func(*view.Context) (view.Result, error)) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	res, err := fn(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, res, page{})
}

func (s *Server) archive(c *gin.Context, r *repo.Repo, revpath string) {
	ctx, ok := s.resolve(c, r, revpath)
	if !ok {
		return
	}
	res, err := view.Archive(ctx, c.Query("format"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, res, page{})
}

// render sends a view.Result. For Rendered results p supplies the page
// chrome and Data is set from the result.
func (s *Server) render(c *gin.Context, res view.Result, p page) {
	switch res := res.(type) {
	case view.Rendered:
		p.Site = s.siteName
		p.Data = res.Data
		c.HTML(http.StatusOK, res.Template, p)
	case view.RawResponse:
		for k, vs := range res.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}
		c.Status(res.Status)
		if res.Body == nil || c.Request.Method == http.MethodHead {
			c.Writer.WriteHeaderNow()
			return
		}
		if err := res.Body(c.Writer); err != nil {
			// Headers are already sent; the client sees a truncated body.
			s.logger.Warn("response body interrupted", "path", c.Request.URL.Path, "err", err, "request_id", c.GetString(requestIDKey))
		}
	}
}

// statusFor maps an error to the HTTP status shown to the client. An object
// missing below a resolved commit is corruption, not a bad URL, and stays a
// 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, view.ErrNotFile):
		return http.StatusNotFound
	case errors.Is(err, view.ErrBlameUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, archive.ErrUnknownFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err, "request_id", c.GetString(requestIDKey))
		msg = "internal server error"
	}
	c.HTML(status, "error", page{Site: s.siteName, Data: errorPage{Status: status, Message: msg}})
}

type errorPage struct {
	Status  int
	Message string
}

func repoURL(r *repo.Repo) string {
	return "/" + r.FullName()
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"repoURL":    repoURL,
		"shortHash":  view.ShortHash,
		"authorName": view.AuthorName,
		"subpaths":   view.Subpaths,
		"timeSince":  func(t time.Time) string { return view.TimeSince(t, s.now()) },
		"isoTime":    func(t time.Time) string { return t.Format(time.RFC3339) },
		"safe":       func(html string) template.HTML { return template.HTML(html) },
		"gap":        func(p int) bool { return p == repo.PageGap },
		"add":        func(a, b int) int { return a + b },
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, errors.New("dict needs key value pairs")
			}
			m := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				k, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is not a string", kv[i])
				}
				m[k] = kv[i+1]
			}
			return m, nil
		},
	}
}
