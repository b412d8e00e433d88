// Package webhook posts alarm events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/Mavwarf/wakeup/internal/httputil"
)

// Publisher posts JSON payloads to one URL.
type Publisher struct {
	URL string
	// Headers are sent with every request. Values are expanded with
	// os.ExpandEnv to support $VAR secrets.
	Headers map[string]string
}

// Publish encodes v as JSON and posts it.
func (p *Publisher) Publish(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("webhook: encode: %w", err)
	}
	return Send(p.URL, body, p.Headers)
}

// Send posts body to url as application/json. Custom headers are applied
// after the default Content-Type, so callers can override it.
func Send(url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "wakeup")
	for k, v := range headers {
		req.Header.Set(k, os.ExpandEnv(v))
	}

	resp, err := httputil.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	return httputil.CheckStatus(resp, "webhook")
}
