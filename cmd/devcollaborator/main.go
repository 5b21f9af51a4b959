// Command devcollaborator is a reference implementation of the five
// external collaborator contracts (Reviewer, Writer, Editor, TTS,
// Publisher) for local runs and integration tests. Reviewer, Writer,
// and Editor are backed by a real Gemini model; TTS and Publisher are
// deterministic fixtures since no real audio-synthesis or distribution
// API is wired into this repo.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"overseer/internal/logger"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address")
	model := flag.String("model", "", "Gemini model name (defaults to gemini.model config or a built-in default)")
	flag.Parse()

	log := logger.Get()

	llm, err := newLLMClient(*model)
	if err != nil {
		log.Error("devcollaborator: failed to init LLM client", "error", err)
		os.Exit(1)
	}

	h := &handlers{llm: llm, log: log}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Post("/review/light", h.handleReviewLight)
	router.Post("/review/heavy", h.handleReviewHeavy)
	router.Post("/script", h.handleScript)
	router.Post("/metadata", h.handleMetadata)
	router.Post("/edit", h.handleEdit)
	router.Post("/tts", h.handleSynthesize)
	router.Post("/publish", h.handlePublish)

	srv := &http.Server{Addr: *addr, Handler: router}

	go func() {
		log.Info("devcollaborator: listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("devcollaborator: server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("devcollaborator: shutdown failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
