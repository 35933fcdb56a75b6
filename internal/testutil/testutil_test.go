package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

func TestLocalRequest(t *testing.T) {
	req := LocalRequest(http.MethodPost, "/debug/send-command-api", strings.NewReader("command=RATE"))
	if req.RemoteAddr != LocalRemoteAddr {
		t.Errorf("RemoteAddr = %s", req.RemoteAddr)
	}
	if req.URL.Path != "/debug/send-command-api" || req.Method != http.MethodPost {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
}

func TestServeAndDecode(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"walking","confidence":0.8}`))
	})
	w := Serve(h, LocalRequest(http.MethodGet, "/api/movement", nil))
	AssertStatusCode(t, w, http.StatusOK)

	var got struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	DecodeJSON(t, w, &got)
	if got.Type != "walking" || got.Confidence != 0.8 {
		t.Errorf("decoded %+v", got)
	}
}

func TestCaptureLogs(t *testing.T) {
	lines := CaptureLogs(t)
	monitoring.Logf("tick %d", 1)
	monitoring.Logf("tick %d", 2)
	if len(*lines) != 2 || (*lines)[0] != "tick 1" {
		t.Errorf("captured %v", *lines)
	}
}
