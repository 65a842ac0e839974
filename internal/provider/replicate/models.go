package replicate

import (
	"context"
	"encoding/json"
	"fmt"

	"creditgate/internal/provider"
)

// Model versions pinned per feature. Overridable through config for staging.
type Versions struct {
	BackgroundRemove string
	Upscale          string
	OCR              string
}

func DefaultVersions() Versions {
	return Versions{
		BackgroundRemove: "fb8af171cfa1616ddcf1242c093f9c46bcada5ad4cf6f2fbe8b81b330ec5c003",
		Upscale:          "f121d640bd286e1fdc67f9799164c1d5be36ff74576ee11c803ae5b665dd46aa",
		OCR:              "30c1d0b916a6f8efce20493f5d61ee27491ab2a60437c13c588468b9810ec23f",
	}
}

type ImageService struct {
	client   *Client
	versions Versions
}

func NewImageService(client *Client, versions Versions) *ImageService {
	return &ImageService{client: client, versions: versions}
}

// RemoveBackground strips the background from an image synchronously.
func (s *ImageService) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	pred, err := s.client.CreatePrediction(ctx, s.versions.BackgroundRemove, map[string]any{
		"image": imageURL,
	}, true)
	if err != nil {
		return "", err
	}
	out, done, err := terminal(pred)
	if err != nil {
		return "", err
	}
	if !done {
		return "", fmt.Errorf("%w: prediction still pending after sync wait", provider.ErrRequestFailed)
	}
	return outputURL(out)
}

// Upscale enlarges an image by an integer factor, polling the job to a
// terminal status.
func (s *ImageService) Upscale(ctx context.Context, imageURL string, scale int, faceEnhance bool) (string, error) {
	out, err := s.client.Run(ctx, s.versions.Upscale, map[string]any{
		"image":        imageURL,
		"scale":        scale,
		"face_enhance": faceEnhance,
	})
	if err != nil {
		return "", err
	}
	return outputURL(out)
}

// OCR extracts text from an image, polling the job to a terminal status.
func (s *ImageService) OCR(ctx context.Context, imageURL string) (string, error) {
	out, err := s.client.Run(ctx, s.versions.OCR, map[string]any{
		"image": imageURL,
	})
	if err != nil {
		return "", err
	}
	return outputText(out)
}

// outputURL handles the two shapes models return: a bare URL string or a
// list of URLs.
func outputURL(raw json.RawMessage) (string, error) {
	var url string
	if err := json.Unmarshal(raw, &url); err == nil && url != "" {
		return url, nil
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil && len(urls) > 0 {
		return urls[0], nil
	}
	return "", fmt.Errorf("%w: unexpected output payload", provider.ErrRequestFailed)
}

func outputText(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("%w: unexpected output payload", provider.ErrRequestFailed)
	}
	return text, nil
}
