// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// HTTPStatusError is a non-200 response to a download attempt.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// NotPDFError is a 200 response whose body is not a usable PDF. HTML
// bodies carry the PDF links found on the page.
type NotPDFError struct {
	URL   string
	HTML  bool
	Size  int64
	Links []string
}

func (e *NotPDFError) Error() string {
	switch {
	case e.HTML:
		return fmt.Sprintf("%s returned an HTML page, not a PDF", e.URL)
	case e.Size > 0:
		return fmt.Sprintf("%s returned %d bytes, below the minimum PDF size", e.URL, e.Size)
	default:
		return fmt.Sprintf("%s did not return a PDF", e.URL)
	}
}

// ClassifyError maps one download error to a failure reason.
func ClassifyError(err error) types.FailureReason {
	if err == nil {
		return types.FailureNone
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusUnavailableForLegalReasons:
			return types.FailureAccessDenied
		case http.StatusNotFound, http.StatusGone:
			return types.FailureNotFound
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return types.FailureTimeout
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
			return types.FailureNetworkError
		}
		return types.FailureException
	}

	var notPDF *NotPDFError
	if errors.As(err, &notPDF) {
		if notPDF.HTML {
			return types.FailureAccessDenied
		}
		return types.FailureException
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.FailureTimeout
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF):
		return types.FailureNetworkError
	}
	return types.FailureException
}

// retriable reports whether a download attempt should be retried with
// backoff: connection errors and timeouts only.
func retriable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch ClassifyError(err) {
	case types.FailureTimeout, types.FailureNetworkError:
		var statusErr *HTTPStatusError
		return !errors.As(err, &statusErr)
	}
	return false
}

// classifyAttempts reduces the errors of every attempted URL to a single
// reason. A reason shared by all attempts wins. Mixed outcomes prefer the
// transient reasons, then access_denied when any attempt was refused.
func classifyAttempts(errs []error) types.FailureReason {
	if len(errs) == 0 {
		return types.FailureNoPDFURL
	}
	counts := make(map[types.FailureReason]int)
	for _, err := range errs {
		counts[ClassifyError(err)]++
	}
	if len(counts) == 1 {
		for reason := range counts {
			return reason
		}
	}
	for _, reason := range []types.FailureReason{
		types.FailureTimeout,
		types.FailureNetworkError,
		types.FailureAccessDenied,
		types.FailureNotFound,
	} {
		if counts[reason] > 0 {
			return reason
		}
	}
	return types.FailureException
}
