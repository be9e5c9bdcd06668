package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tryon-chat-backend/internal/services"
)

// GradioClient calls a hosted try-on space over its HTTP prediction API.
// The space exposes one endpoint taking the person image (as an editor
// payload), the garment image and the model parameters, and returns the
// generated image.
type GradioClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGradioClient creates a new prediction client for a space URL
func NewGradioClient(baseURL string) *GradioClient {
	return &GradioClient{
		// Timeouts come from the caller's context; predictions routinely
		// take longer than any sane client default.
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type gradioResponse struct {
	Data []json.RawMessage `json:"data"`
}

type gradioFile struct {
	URL string `json:"url"`
}

// Predict runs one try-on prediction and returns the result image bytes
func (c *GradioClient) Predict(ctx context.Context, req services.PredictRequest) ([]byte, error) {
	payload := map[string]any{
		"data": []any{
			map[string]any{
				"background": dataURL(req.PersonImage),
				"layers":     []any{},
				"composite":  nil,
			},
			dataURL(req.GarmentImage),
			req.GarmentDescription,
			req.UseAutoMask,
			req.UseCrop,
			req.DenoiseSteps,
			req.Seed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run/tryon", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("prediction returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed gradioResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("prediction returned no result")
	}

	return c.resolveResult(ctx, parsed.Data[0])
}

// resolveResult extracts image bytes from the first output slot, which is
// either a file object with a URL or an inline base64 data URL.
func (c *GradioClient) resolveResult(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	var file gradioFile
	if err := json.Unmarshal(raw, &file); err == nil && file.URL != "" {
		return c.download(ctx, file.URL)
	}

	var inline string
	if err := json.Unmarshal(raw, &inline); err == nil && inline != "" {
		if idx := strings.Index(inline, "base64,"); idx >= 0 {
			data, err := base64.StdEncoding.DecodeString(inline[idx+len("base64,"):])
			if err != nil {
				return nil, fmt.Errorf("failed to decode inline result: %w", err)
			}
			return data, nil
		}
		return c.download(ctx, inline)
	}

	return nil, fmt.Errorf("prediction result has unexpected shape")
}

func (c *GradioClient) download(ctx context.Context, fileURL string) ([]byte, error) {
	if strings.HasPrefix(fileURL, "/") {
		fileURL = c.baseURL + "/file=" + strings.TrimPrefix(fileURL, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build result download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("result download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func dataURL(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}
