package deepdub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// doJSONRequest sends a JSON request and decodes a JSON response into result.
func (c *Client) doJSONRequest(ctx context.Context, method, path string, body any, result any) error {
	respBody, _, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return wrapError(err, "unmarshal response")
		}
	}
	return nil
}

// doRequest sends a JSON request and returns the raw response body and
// its content type. Non-2xx responses are parsed into *Error.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, string, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, "", wrapError(err, "marshal request body")
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	url := c.config.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, "", wrapError(err, "create request")
	}

	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return nil, "", wrapError(err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", wrapError(err, "read response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.Header.Get("Content-Type"), nil
}

// generateGenerationID generates a generation tracking ID.
func generateGenerationID() string {
	return uuid.New().String()
}

// validateGenerationID checks a caller-supplied generation ID.
func validateGenerationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("deepdub: invalid generation ID %q: %w", id, err)
	}
	return nil
}

// encodeReferenceAudio prepares reference audio for the wire: raw bytes
// become base64 with a generated filename, matching the service's asset
// upload contract. Path-qualified filenames are reduced to their base
// name so local directory layout never leaks into the request.
func encodeReferenceAudio(data []byte, filename string) (string, string) {
	if filename == "" {
		filename = uuid.New().String()
	} else {
		filename = filepath.Base(filename)
	}
	return base64.StdEncoding.EncodeToString(data), filename
}

// LoadReferenceAudio reads an audio file and returns its base64 payload
// and filename for voice cloning requests.
func LoadReferenceAudio(path string) (data string, filename string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", wrapError(err, "read reference audio")
	}
	encoded, _ := encodeReferenceAudio(raw, filepath.Base(path))
	return encoded, filepath.Base(path), nil
}

// isJSONContent reports whether a response content type is JSON.
func isJSONContent(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}
