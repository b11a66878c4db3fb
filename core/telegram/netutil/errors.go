// Package netutil classifies errors from Telegram API calls.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Error kinds reported by Classify.
const (
	KindTimeout  = "timeout"
	KindCanceled = "canceled"
	KindDNS      = "dns"
	KindDial     = "dial"
	KindReset    = "reset"
	KindTLS      = "tls"
	KindFlood    = "flood"
	Kind5xx      = "http_5xx"
	Kind4xx      = "http_4xx"
	KindUnknown  = "unknown"
)

// Transient reports whether err is a network failure that may go away on retry:
// timeouts, failed dials, reset connections and truncated responses.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// ShouldRetry reports whether a failed API call is worth repeating: transient
// network errors, rate limiting and server errors.
func ShouldRetry(err error) bool {
	if Transient(err) {
		return true
	}
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= 500
}

// RetryAfter returns the wait Telegram asked for when rate limiting, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// StatusCode extracts the HTTP status of a Bot API error. Errors that only
// carry it as a trailing "(NNN)" in their text are parsed too.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	msg := strings.TrimSpace(err.Error())
	open := strings.LastIndexByte(msg, '(')
	if open < 0 || !strings.HasSuffix(msg, ")") {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}

// Classify names the kind of failure for logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindReset
	}
	var alert tls.AlertError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &alert) || errors.As(err, &certErr) {
		return KindTLS
	}

	switch code := StatusCode(err); {
	case code == http.StatusTooManyRequests:
		return KindFlood
	case code >= 500:
		return Kind5xx
	case code >= 400:
		return Kind4xx
	}
	return KindUnknown
}
