package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// respondJSON writes v as a JSON response body
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondWithError writes a short user-facing reason and logs the
// underlying error. Internal detail never reaches the client.
func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondJSON(w, status, map[string]string{"error": userMsg})
}

// respondWithErrorCode writes a machine-readable code plus a reason
func respondWithErrorCode(w http.ResponseWriter, status int, code, reason string) {
	respondJSON(w, status, map[string]string{"error": code, "reason": reason})
}
