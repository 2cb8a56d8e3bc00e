package mlclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ImageResult is the server's description of a processed image, suitable
// for storing as a ScrapedPage or Bookmark's content.
type ImageResult struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// ImageClient hits a TabAgent ML endpoint's /process_image route, the
// other operation with no pack SDK, following the same request shape as
// RerankClient.
type ImageClient struct {
	endpoint string
	client   *http.Client
}

// NewImageClient builds an ImageClient against endpoint (TABAGENT_ML_ENDPOINT).
func NewImageClient(endpoint string, timeout time.Duration) *ImageClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ImageClient{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// ProcessImage sends raw image bytes for captioning/tagging.
func (c *ImageClient) ProcessImage(ctx context.Context, image []byte) (*ImageResult, error) {
	body, err := json.Marshal(imageRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, fmt.Errorf("ml client: marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/process_image", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ml client: build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ml client: image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ml client: process_image returned %d: %s", resp.StatusCode, string(data))
	}

	var out ImageResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ml client: decode image response: %w", err)
	}
	return &out, nil
}
