package httputil

import (
	"fmt"
	"net/http"
)

type ErrHTTPStatus int

func (s ErrHTTPStatus) Error() string {
	return fmt.Sprintf("unexpected status code: %d", int(s))
}

func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func CheckStatus(resp *http.Response) error {
	if IsSuccess(resp.StatusCode) {
		return nil
	}
	return ErrHTTPStatus(resp.StatusCode)
}
