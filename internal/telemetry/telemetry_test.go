package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/suPer8Hu/chat-relay/internal/logging"
)

func TestMetricsAreScraped(t *testing.T) {
	tel, err := Setup("chat-relay-test", logging.Discard())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	tel.RequestHandled("login", false)
	tel.RequestHandled("login", true)
	tel.PushesDelivered("new_message", 3)
	tel.ConnectionsChanged(2)
	tel.ConnectionsChanged(-1)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, name := range []string{"relay_requests_total", "relay_request_failures_total", "relay_pushes_total", "relay_connections"} {
		if !strings.Contains(text, name) {
			t.Fatalf("metric %s missing from scrape:\n%s", name, text)
		}
	}
	if !strings.Contains(text, `request="login"`) {
		t.Fatalf("request attribute missing:\n%s", text)
	}
}
