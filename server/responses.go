package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tablesql/tablesql/core"
)

// queryResponse is the response envelope of an entity query.
type queryResponse struct {
	Value []core.Entity `json:"value"`
}

// errorResponse mirrors the store's OData error body.
type errorResponse struct {
	Error odataError `json:"odata.error"`
}

type odataError struct {
	Code    string            `json:"code"`
	Message odataErrorMessage `json:"message"`
}

type odataErrorMessage struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json;odata=fullmetadata")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(body); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: odataError{
			Code: code,
			Message: odataErrorMessage{
				Lang:  "en-US",
				Value: message,
			},
		},
	})
}
