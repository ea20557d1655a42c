////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/thedevsaddam/gojsonq"
)

// Sentinel errors for the statuses the chat core treats specially.
var (
	// ErrUnauthenticated ends the session; the viewer must log in again.
	ErrUnauthenticated = errors.New("session is not authenticated")

	// ErrForbidden is shown as a blocking alert and never retried.
	ErrForbidden = errors.New("not permitted")

	// ErrNotFound is shown inline in place of the missing resource.
	ErrNotFound = errors.New("not found")
)

// maxMessageLen bounds how much of a non-JSON error body is surfaced.
const maxMessageLen = 200

// messageKeys are the fields a backend error body may carry its message in,
// in order of preference.
var messageKeys = []string{"error.message", "error", "message", "msg",
	"error_description", "details"}

// StatusError is a non-2xx response. Message is the server-provided text
// where one could be extracted.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (se *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", se.Method, se.Path, se.Status,
		se.Message)
}

// Is maps the status onto the package sentinels so errors.Is works on a
// StatusError.
func (se *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return se.Status == http.StatusUnauthorized
	case ErrForbidden:
		return se.Status == http.StatusForbidden
	case ErrNotFound:
		return se.Status == http.StatusNotFound
	}
	return false
}

// Kind is the class of an error as far as the user interface is concerned.
type Kind uint8

const (
	// Transient errors are retryable network and server failures.
	Transient Kind = iota
	Unauthenticated
	Forbidden
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not found"
	default:
		return "transient"
	}
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return Unauthenticated
	case errors.Is(err, ErrForbidden):
		return Forbidden
	case errors.Is(err, ErrNotFound):
		return NotFound
	default:
		return Transient
	}
}

// ServerMessage returns the server-provided message carried by err, or the
// error text itself.
func ServerMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

// extractMessage pulls the human-readable message out of an error body. Any
// JSON shape is accepted; plain text bodies are truncated.
func extractMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}

	for _, key := range messageKeys {
		value := gojsonq.New().FromString(text).Find(key)
		if msg, ok := value.(string); ok && msg != "" {
			return msg
		}
	}

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return http.StatusText(status)
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen] + "..."
	}
	return text
}
