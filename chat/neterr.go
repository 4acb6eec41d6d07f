package chat

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"askforge-client/api"
)

// connectionKeywords catch transport failures that reach us only as text,
// e.g. errors re-wrapped by a proxy library.
var connectionKeywords = []string{
	"connection", "timeout", "refused", "unreachable",
	"network", "host", "connect", "socket", "dns",
	"erro de conexão", "conexão",
}

var connectionErrnos = []error{
	syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED,
	syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.ETIMEDOUT,
}

// IsConnectionError reports whether err means the server could not be
// reached, as opposed to the server answering with a failure. Typed
// transport errors are checked first; the keyword list is the fallback.
//
// A *url.Error is only an envelope from http.Client: its cause decides.
// Redirect loops and other client-side failures are not connection errors.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, api.ErrInvalidCredentials) || errors.Is(err, api.ErrEmptyResponse) {
		return false
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return false
	}

	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
		if cause == nil {
			return false
		}
	}

	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, io.EOF) ||
		errors.Is(cause, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range connectionErrnos {
		if errors.Is(cause, errno) {
			return true
		}
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(cause, &opErr) || errors.As(cause, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return true
	}

	// Only the cause is matched so the request URL ("localhost", ...) does
	// not count as a keyword hit.
	msg := strings.ToLower(cause.Error())
	for _, kw := range connectionKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
