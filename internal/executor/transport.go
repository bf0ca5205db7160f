package executor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorKind names a class of transport failure. It is reported as the "error"
// field of the synthetic body of a status-0 response.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "Timeout"
	KindConnectionRefused  ErrorKind = "ConnectionRefused"
	KindConnectionReset    ErrorKind = "ConnectionReset"
	KindDNS                ErrorKind = "DNSError"
	KindNetworkUnreachable ErrorKind = "NetworkUnreachable"
	KindTLS                ErrorKind = "TLSError"
	KindTooManyRedirects   ErrorKind = "TooManyRedirects"
	KindInvalidURL         ErrorKind = "InvalidURL"
	KindCanceled           ErrorKind = "Canceled"
	KindTransport          ErrorKind = "TransportError"
)

// Hint returns an actionable description of the failure class
func (k ErrorKind) Hint() string {
	switch k {
	case KindTimeout:
		return "Request timeout - server took too long to respond, try increasing the timeout"
	case KindConnectionRefused:
		return "Connection refused - check if server is running and port is correct"
	case KindConnectionReset:
		return "Connection reset by server - server may have crashed or network issue occurred"
	case KindDNS:
		return "DNS resolution failed - verify hostname is correct and network is available"
	case KindNetworkUnreachable:
		return "Network unreachable - check network connection and firewall settings"
	case KindTLS:
		return "TLS/SSL error - check certificate configuration, or use --insecure for plain HTTP"
	case KindTooManyRedirects:
		return "Too many redirects - check server configuration or URL"
	case KindInvalidURL:
		return "Invalid URL - verify the host, port and path"
	case KindCanceled:
		return "Request cancelled by user"
	default:
		return "Request failed"
	}
}

// Classify maps a transport error to its kind. Typed errors are inspected first;
// the error text is the fallback.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Op == "parse" {
			return KindInvalidURL
		}
		if urlErr.Timeout() {
			return KindTimeout
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	if isTLSError(err) {
		return KindTLS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return KindConnectionReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return KindNetworkUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return classifyText(err.Error())
}

func isTLSError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var verification *tls.CertificateVerificationError
	var recordHeader tls.RecordHeaderError

	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &verification) ||
		errors.As(err, &recordHeader)
}

// classifyText categorizes errors that arrive without a usable type
func classifyText(errStr string) ErrorKind {
	errLower := strings.ToLower(errStr)

	switch {
	case strings.Contains(errLower, "context canceled"):
		return KindCanceled
	case strings.Contains(errLower, "stopped after") && strings.Contains(errLower, "redirect"):
		return KindTooManyRedirects
	case strings.Contains(errLower, "unsupported protocol scheme"),
		strings.Contains(errLower, "missing protocol scheme"),
		strings.Contains(errLower, "invalid url"),
		strings.Contains(errLower, "no host in request url"):
		return KindInvalidURL
	case strings.Contains(errLower, "tls"),
		strings.Contains(errLower, "x509"),
		strings.Contains(errLower, "certificate"):
		return KindTLS
	case strings.Contains(errLower, "no such host"),
		strings.Contains(errLower, "dial tcp: lookup"):
		return KindDNS
	case strings.Contains(errLower, "connection refused"):
		return KindConnectionRefused
	case strings.Contains(errLower, "connection reset"):
		return KindConnectionReset
	case strings.Contains(errLower, "network is unreachable"),
		strings.Contains(errLower, "no route to host"):
		return KindNetworkUnreachable
	case strings.Contains(errLower, "deadline exceeded"),
		strings.Contains(errLower, "timeout"),
		strings.Contains(errLower, "timed out"):
		return KindTimeout
	default:
		return KindTransport
	}
}
