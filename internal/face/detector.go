package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Detector finds face bounding boxes in an image. Zero boxes is a valid
// result, not an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

// Embedder computes a fixed-length embedding for a cropped face region.
type Embedder interface {
	Embed(ctx context.Context, region image.Image) ([]float32, error)
}

// PipelineClient talks to the face-pipeline sidecar (MTCNN detection +
// FaceNet embedding behind a small HTTP API). It implements both Detector
// and Embedder.
type PipelineClient struct {
	baseURL string
	client  *http.Client
}

// NewPipelineClient creates a client for the sidecar at baseURL.
func NewPipelineClient(baseURL string) *PipelineClient {
	return &PipelineClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type detectResponse struct {
	Boxes [][4]int `json:"boxes"` // [x1, y1, x2, y2]
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Detect posts the image to /detect and returns the reported boxes.
func (c *PipelineClient) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	var out detectResponse
	if err := c.postImage(ctx, "/detect", img, &out); err != nil {
		return nil, err
	}

	boxes := make([]image.Rectangle, 0, len(out.Boxes))
	for _, b := range out.Boxes {
		boxes = append(boxes, image.Rect(b[0], b[1], b[2], b[3]))
	}
	return boxes, nil
}

// Embed posts the cropped face region to /embed and returns the vector.
func (c *PipelineClient) Embed(ctx context.Context, region image.Image) ([]float32, error) {
	var out embedResponse
	if err := c.postImage(ctx, "/embed", region, &out); err != nil {
		return nil, err
	}
	if len(out.Vector) == 0 {
		return nil, errors.New("pipeline returned empty embedding")
	}
	return out.Vector, nil
}

// postImage sends the image as a multipart JPEG upload and decodes the JSON
// response into out.
func (c *PipelineClient) postImage(ctx context.Context, path string, img image.Image, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return fmt.Errorf("create multipart field: %w", err)
	}
	if err := EncodeJPEG(part, img); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pipeline %s returned %d: %s", path, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pipeline response: %w", err)
	}
	return nil
}
