package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var draftKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9:_.\-]{0,199}$`)

func validDraftKey(key string) bool {
	return draftKeyPattern.MatchString(key)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseBool reads a boolean query flag, treating anything unparsable as false.
func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}
