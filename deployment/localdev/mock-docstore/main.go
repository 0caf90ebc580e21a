// mock-docstore is a local stand-in for the hosted document store and the
// transactional email provider, so the alert engine can run end to end on a
// laptop. State lives in memory and resets on restart.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

type document map[string]any

type store struct {
	mu        sync.Mutex
	incidents map[string]document // key: org/id
	sent      int
}

func newStore() *store {
	s := &store{incidents: map[string]document{}}
	return s
}

func main() {
	st := newStore()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /v1/orgs/{org}/incidents/{id}", func(w http.ResponseWriter, r *http.Request) {
		st.mu.Lock()
		doc, ok := st.incidents[r.PathValue("org")+"/"+r.PathValue("id")]
		st.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, doc)
	})

	mux.HandleFunc("PUT /v1/orgs/{org}/incidents/{id}", func(w http.ResponseWriter, r *http.Request) {
		var doc document
		if !decode(w, r, &doc) {
			return
		}
		st.mu.Lock()
		st.incidents[r.PathValue("org")+"/"+r.PathValue("id")] = doc
		st.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PATCH /v1/orgs/{org}/incidents/{id}", func(w http.ResponseWriter, r *http.Request) {
		var fields document
		if !decode(w, r, &fields) {
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		doc, ok := st.incidents[r.PathValue("org")+"/"+r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		for k, v := range fields {
			doc[k] = v
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /v1/orgs/{org}/incidents/query", func(w http.ResponseWriter, r *http.Request) {
		var filters document
		if !decode(w, r, &filters) {
			return
		}
		prefix := r.PathValue("org") + "/"
		status, _ := filters["status"].(string)

		st.mu.Lock()
		var matched []document
		for key, doc := range st.incidents {
			if len(key) < len(prefix) || key[:len(prefix)] != prefix {
				continue
			}
			if status != "" && doc["status"] != status {
				continue
			}
			matched = append(matched, doc)
		}
		st.mu.Unlock()
		writeJSON(w, map[string]any{"incidents": matched})
	})

	mux.HandleFunc("GET /v1/orgs/{org}/preferences", func(w http.ResponseWriter, r *http.Request) {
		org := r.PathValue("org")
		writeJSON(w, map[string]any{
			"preferences": []document{
				{
					"id":            "pref-critical-all",
					"orgId":         org,
					"severity":      "critical",
					"metricPattern": "*",
					"channels":      []string{"ch-email"},
					"enabled":       true,
				},
				{
					"id":            "pref-warning-stripe",
					"orgId":         org,
					"severity":      "warning",
					"metricPattern": "stripe:*",
					"channels":      []string{"ch-slack"},
					"enabled":       true,
				},
			},
		})
	})

	mux.HandleFunc("GET /v1/orgs/{org}/channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		org := r.PathValue("org")
		switch r.PathValue("id") {
		case "ch-email":
			writeJSON(w, document{
				"id":           "ch-email",
				"orgId":        org,
				"type":         "email",
				"enabled":      true,
				"emailAddress": "oncall@example.com",
			})
		case "ch-slack":
			writeJSON(w, document{
				"id":         "ch-slack",
				"orgId":      org,
				"type":       "slack_webhook",
				"enabled":    true,
				"webhookUrl": "https://hooks.slack.example.com/T000/B000",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	mux.HandleFunc("PATCH /v1/orgs/{org}/channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		var fields document
		if !decode(w, r, &fields) {
			return
		}
		log.Printf("channel %s/%s touched: %v", r.PathValue("org"), r.PathValue("id"), fields)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /v1/send", func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
		}
		if !decode(w, r, &msg) {
			return
		}
		st.mu.Lock()
		st.sent++
		id := fmt.Sprintf("mock-msg-%d", st.sent)
		st.mu.Unlock()
		log.Printf("email to %s: %s", msg.To, msg.Subject)
		writeJSON(w, map[string]string{"messageId": id})
	})

	logger := log.New(log.Writer(), "docstore-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8091",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8091")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
