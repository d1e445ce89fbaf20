package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

type errorBody struct {
	Error     string    `json:"error"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:     message,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}
