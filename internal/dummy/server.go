package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// ServerConfig shapes the fake Ollama server.
type ServerConfig struct {
	Port       int
	Models     []string
	MinLatency time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0..1, share of generate calls answered with 500
	Response   string  // empty echoes the prompt back
}

func DefaultConfig() ServerConfig {
	return ServerConfig{
		Port:       11435,
		Models:     []string{"phi:latest", "llama3:latest"},
		MinLatency: 300 * time.Millisecond,
		MaxLatency: 1200 * time.Millisecond,
	}
}

// NewHandler serves /api/tags and /api/generate the way Ollama does for
// non-streaming requests.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		type model struct {
			Name string `json:"name"`
		}
		out := struct {
			Models []model `json:"models"`
		}{Models: []model{}}
		for _, m := range cfg.Models {
			out.Models = append(out.Models, model{Name: m})
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if !known(cfg.Models, req.Model) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("model '%s' not found", req.Model)})
			return
		}

		select {
		case <-time.After(latency(cfg)):
		case <-r.Context().Done():
			return
		}

		if cfg.ErrorRate > 0 && rand.Float64() < cfg.ErrorRate {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
			return
		}

		text := cfg.Response
		if text == "" {
			text = "You asked: " + req.Prompt
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"model":    req.Model,
			"response": text,
			"done":     true,
		})
	})

	return mux
}

// Start runs the fake server in the background.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Fake Ollama running on http://localhost%s\n", addr)
	fmt.Printf("   Models: %v | latency %s-%s | error rate %.0f%%\n",
		cfg.Models, cfg.MinLatency, cfg.MaxLatency, cfg.ErrorRate*100)

	server := &http.Server{
		Addr:    addr,
		Handler: NewHandler(cfg),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed: %v\n", err)
		}
	}()
	return server
}

func latency(cfg ServerConfig) time.Duration {
	if cfg.MaxLatency <= cfg.MinLatency {
		return cfg.MinLatency
	}
	return cfg.MinLatency + time.Duration(rand.Int63n(int64(cfg.MaxLatency-cfg.MinLatency)))
}

func known(models []string, name string) bool {
	for _, m := range models {
		if m == name || m == name+":latest" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
