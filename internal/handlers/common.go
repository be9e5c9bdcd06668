package handlers

import (
	"encoding/json"
	"encoding/xml"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// messagingResponse is the TwiML reply body the messaging transport expects
type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// respondMessage sends a single TwiML reply. Every webhook outcome produces
// exactly one of these.
func respondMessage(w http.ResponseWriter, message string, statusCode int) {
	body, err := xml.Marshal(messagingResponse{Message: message})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal reply")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	w.Write([]byte(xml.Header))
	w.Write(body)
}
