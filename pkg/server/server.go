package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"storyreel/pkg/blob"
	"storyreel/pkg/flight"
	"storyreel/pkg/imagegen"
	"storyreel/pkg/inference"
	"storyreel/pkg/prompt"
	"storyreel/pkg/segment"
)

// Config carries every collaborator the handlers need. Nothing is looked up
// from the environment at request time; whoever builds the server decides
// which providers exist.
type Config struct {
	Generators      map[string]inference.Generator
	DefaultProvider string
	Renderers       map[string]imagegen.Renderer
	Blobs           blob.Store
	Templates       []prompt.Template
}

type renderKey struct {
	provider string
	req      imagegen.Request
}

type Server struct {
	Echo *echo.Echo
	Ctx  context.Context

	generators      map[string]inference.Generator
	defaultProvider string
	engines         map[string]*segment.Engine
	renderers       map[string]imagegen.Renderer
	blobs           blob.Store
	storeMu         sync.Mutex
	templates       []prompt.Template

	renders flight.Cache[renderKey, *imagegen.Result]
}

func NewServer(ctx context.Context, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:            e,
		Ctx:             ctx,
		generators:      cfg.Generators,
		defaultProvider: cfg.DefaultProvider,
		engines:         make(map[string]*segment.Engine, len(cfg.Generators)),
		renderers:       cfg.Renderers,
		blobs:           cfg.Blobs,
		templates:       cfg.Templates,
	}
	if len(s.templates) == 0 {
		s.templates = prompt.Defaults
	}
	for name, gen := range cfg.Generators {
		s.engines[name] = segment.NewEngine(gen)
	}
	s.renders = flight.NewCache(s.render)
	s.renders.Expiry(10 * time.Minute)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.POST("/generate-story-prompts", s.handleGenerateStoryPrompts) // SSE scene stream
	api.POST("/process-story", s.handleProcessStory)                  // segmentation + prompts
	api.POST("/regenerate-prompt", s.handleRegeneratePrompt)
	api.POST("/enhance-prompt", s.handleEnhancePrompt) // SSE
	api.POST("/generate-image", s.handleGenerateImage)
	api.POST("/generate-image-together", s.handleGenerateImageTogether)
	api.GET("/images", s.handleListImages)
	api.POST("/images/delete", s.handleDeleteImage)
	api.POST("/images/clear", s.handleClearImages)
}

// generator resolves a provider name to its gateway, falling back to the
// configured default. The bool reports whether anything usable exists.
func (s *Server) generator(provider string) (inference.Generator, string, bool) {
	if provider == "" {
		provider = s.defaultProvider
	}
	gen, ok := s.generators[provider]
	if !ok {
		gen, ok = s.generators[s.defaultProvider]
		provider = s.defaultProvider
	}
	return gen, provider, ok
}

func (s *Server) engine(provider string) (*segment.Engine, bool) {
	if provider == "" {
		provider = s.defaultProvider
	}
	eng, ok := s.engines[provider]
	if !ok {
		eng, ok = s.engines[s.defaultProvider]
	}
	return eng, ok
}

func (s *Server) handleGetRoot(c echo.Context) error {
	providers := make([]string, 0, len(s.generators))
	for name := range s.generators {
		providers = append(providers, name)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": providers,
	})
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	return s.Echo.Shutdown(ctx)
}

func cancelled(c echo.Context) bool {
	select {
	case <-c.Request().Context().Done():
		return true
	default:
		return false
	}
}
