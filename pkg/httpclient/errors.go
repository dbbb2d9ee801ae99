package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// upstreamErrorBody covers the two error shapes seen from upstream APIs: the
// envelope {"error":{"code","message"}} and a bare {"message":"..."}.
type upstreamErrorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	message := string(bodyBytes)
	var body upstreamErrorBody
	if json.Unmarshal(bodyBytes, &body) == nil {
		switch {
		case body.Error != nil && body.Error.Message != "":
			message = body.Error.Message
		case body.Message != "":
			message = body.Message
		}
	}

	return mapUpstreamError(resp.StatusCode, message, upstream)
}

// mapUpstreamError translates an upstream status code into an AppError that
// preserves its semantics for our own clients.
func mapUpstreamError(status int, message, upstream string) error {
	qualified := fmt.Sprintf("%s: %s", upstream, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: message,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(qualified)
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		return apperrors.Unavailable(qualified)
	case status >= 500:
		return fmt.Errorf("%s server error (%d): %s", upstream, status, message)
	default:
		return &apperrors.AppError{
			Code:    "UPSTREAM_ERROR",
			Message: qualified,
			Status:  http.StatusBadGateway,
		}
	}
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
