package client

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/dapd/util/httputil"
)

// APIError is an error response from the server.
type APIError struct {
	status int
	err    string
	detail string
}

func (e APIError) Error() string {
	return e.err
}

// Detail returns the server's supplementary message, if any.
func (e APIError) Detail() string {
	return e.detail
}

// StatusCode returns the HTTP status of the response.
func (e APIError) StatusCode() int {
	return e.status
}

// Is matches any APIError.
func (e APIError) Is(target error) bool {
	_, ok := target.(APIError)
	return ok
}

// NewAPIError constructs an APIError.
func NewAPIError(status int, err string, detail string) APIError {
	return APIError{
		status: status,
		err:    err,
		detail: detail,
	}
}

// checkResponse returns an APIError for any response outside the 2xx range.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	response := httputil.ErrorResponse{}
	if err := json.Unmarshal(body, &response); err != nil || response.Error == "" {
		return NewAPIError(resp.StatusCode, fmt.Sprintf("unexpected status: %s", resp.Status), string(body))
	}
	return NewAPIError(resp.StatusCode, response.Error, response.Detail)
}
