// Package testutil holds HTTP and logging helpers shared by handler tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

// LocalRemoteAddr satisfies tsweb's loopback check on /debug routes.
const LocalRemoteAddr = "127.0.0.1:12345"

// LocalRequest builds a request that appears to come from localhost.
func LocalRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = LocalRemoteAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatusCode checks the recorded status and logs the body on mismatch.
func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("status code = %d, want %d (body %q)", w.Code, want, w.Body.String())
	}
}

// DecodeJSON unmarshals the recorded body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

// CaptureLogs collects formatted monitoring.Logf lines in the returned slice until the test
// ends. Tests using it must not run in parallel.
func CaptureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return &lines
}
