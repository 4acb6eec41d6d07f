package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidCredentials is returned by Login when the server does not
	// establish a session.
	ErrInvalidCredentials = errors.New("Credenciais inválidas")

	// ErrEmptyResponse is returned when a call that must carry a body
	// succeeds with none.
	ErrEmptyResponse = errors.New("Resposta vazia do servidor")
)

// Error is a non-success HTTP response. Message is meant for the user.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

const maxErrorBody = 200

// newError maps a failed response to the message shown to the user: the
// server's "error" field, or a description of what came back.
func newError(status int, body []byte) *Error {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return &Error{StatusCode: status, Message: fmt.Sprintf("Erro %d: Resposta vazia do servidor", status)}
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return &Error{StatusCode: status, Message: payload.Error}
		}
		return &Error{StatusCode: status, Message: fmt.Sprintf("Erro %d", status)}
	}

	return &Error{StatusCode: status, Message: fmt.Sprintf("Erro %d: %s", status, truncate(text, maxErrorBody))}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
