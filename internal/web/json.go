package web

import (
	"encoding/json"
	"net/http"
)

type pingJSON struct {
	Status       string `json:"status"`
	UptimeMs     int64  `json:"uptime_ms"`
	CustomClocks int    `json:"customClocks"`
}

type fetchJSON struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(msg))
}
