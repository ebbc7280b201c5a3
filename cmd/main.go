package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	gommon "github.com/labstack/gommon/log"

	"storyreel/pkg/blob"
	"storyreel/pkg/imagegen"
	"storyreel/pkg/inference"
	"storyreel/pkg/prompt"
	"storyreel/pkg/server"
	"storyreel/pkg/utils"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	generators := make(map[string]inference.Generator)

	openAIKey := os.Getenv("OPENAI_API_KEY")
	openAI := inference.NewOpenAIGenerator(openAIKey, os.Getenv("OPENAI_MODEL"))
	if openAIKey == "" {
		// No key means a local OpenAI-compatible endpoint.
		openAI.ChangeBaseURL("http://localhost:1234/v1")
		openAI.SetModel("")
	}
	generators["openai"] = openAI

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey != "" {
		gemini, err := inference.NewGeminiGenerator(geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Error("failed to initialize gemini", "err", err)
		} else {
			generators["gemini"] = gemini
		}
	}

	togetherKey := os.Getenv("TOGETHER_API_KEY")
	if togetherKey != "" {
		generators["together"] = inference.NewTogetherGenerator(togetherKey, os.Getenv("TOGETHER_MODEL"))
	}

	defaultProvider := os.Getenv("DEFAULT_PROVIDER")
	if _, ok := generators[defaultProvider]; !ok {
		defaultProvider = "openai"
	}

	renderers := make(map[string]imagegen.Renderer)
	if geminiKey != "" {
		renderer, err := imagegen.NewGeminiRenderer(geminiKey, os.Getenv("GEMINI_IMAGE_MODEL"))
		if err != nil {
			log.Error("failed to initialize gemini image renderer", "err", err)
		} else {
			renderers["gemini"] = renderer
		}
	}
	if togetherKey != "" {
		renderers["together"] = imagegen.NewTogetherRenderer(togetherKey, os.Getenv("TOGETHER_IMAGE_MODEL"))
	}

	templates := prompt.Defaults
	if path := os.Getenv("TEMPLATES_FILE"); path != "" {
		if utils.Exists(path) {
			loaded, err := utils.Load[[]prompt.Template](path)
			if err != nil || len(loaded) == 0 {
				log.Warn("failed to load templates, using defaults", "path", path, "err", err)
			} else {
				templates = loaded
				log.Info("loaded prompt templates", "path", path, "count", len(loaded))
			}
		} else if err := utils.Save(path, prompt.Defaults); err != nil {
			log.Warn("failed to write default templates", "path", path, "err", err)
		}
	}

	blobDir := os.Getenv("BLOB_DIR")
	if blobDir == "" {
		blobDir = "images"
	}
	store, err := blob.NewDiskStore(blobDir, "/images")
	if err != nil {
		log.Fatal("failed to open blob store", "dir", blobDir, "err", err)
	}

	srv := server.NewServer(ctx, server.Config{
		Generators:      generators,
		DefaultProvider: defaultProvider,
		Renderers:       renderers,
		Blobs:           store,
		Templates:       templates,
	})
	srv.Echo.Logger.SetLevel(gommon.INFO)
	srv.Echo.Static("/images", blobDir)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("shutdown error", "err", err)
		}
		done()
		close(finishedShutDown)
	}()

	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "err", err)
	}
	<-finishedShutDown
}
