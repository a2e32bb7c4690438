package generation

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"genstudio/internal/core"
)

// Reference image limits.
const (
	MaxReferenceImages    = 20
	MaxReferenceImageSize = 15 * 1024 * 1024
)

// AcceptedReferenceTypes are the mime types allowed for reference images.
var AcceptedReferenceTypes = []string{"image/jpeg", "image/png", "image/webp"}

var inlineDataURL = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// ReferenceInput is an input image supplied with a request.
type ReferenceInput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	DataURL string `json:"data_url"`
}

// Request is a generation request.
type Request struct {
	Prompt          string           `json:"prompt"`
	NegativePrompt  string           `json:"negative_prompt,omitempty"`
	Model           string           `json:"model"`
	Resolution      string           `json:"resolution,omitempty"`
	AspectRatio     string           `json:"aspect_ratio,omitempty"`
	Count           int              `json:"count,omitempty"`
	ReferenceImages []ReferenceInput `json:"reference_images,omitempty"`
}

// Normalize fills defaults for empty sizing fields.
func (r *Request) Normalize() {
	r.Resolution = strings.ToLower(strings.TrimSpace(r.Resolution))
	if r.Resolution == "" {
		r.Resolution = DefaultResolution
	}
	if strings.TrimSpace(r.AspectRatio) == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	if r.Count <= 0 {
		r.Count = DefaultCount
	}
	r.Model = strings.TrimSpace(r.Model)
}

// Validate rejects requests that must not reach the upstream.
func (r *Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Prompt) == "":
		return core.NewInvalidRequestError("prompt is required", nil)
	case strings.TrimSpace(r.Model) == "":
		return core.NewInvalidRequestError("model is required", nil)
	case !ValidResolution(r.Resolution):
		return core.NewInvalidRequestError(fmt.Sprintf("unsupported resolution %q", r.Resolution), nil)
	case !ValidAspectRatio(r.AspectRatio):
		return core.NewInvalidRequestError(fmt.Sprintf("unsupported aspect ratio %q", r.AspectRatio), nil)
	case r.Count < 1 || r.Count > MaxCount:
		return core.NewInvalidRequestError(fmt.Sprintf("count must be between 1 and %d", MaxCount), nil)
	case len(r.ReferenceImages) > MaxReferenceImages:
		return core.NewInvalidRequestError(fmt.Sprintf("at most %d reference images are allowed", MaxReferenceImages), nil)
	}
	return nil
}

// Params snapshots the sizing options for the history record.
func (r *Request) Params() core.GenerationParams {
	w, h := TargetSize(r.Resolution, r.AspectRatio)
	return core.GenerationParams{
		Resolution:     r.Resolution,
		AspectRatio:    r.AspectRatio,
		RequestedCount: r.Count,
		Width:          w,
		Height:         h,
	}
}

// ReferenceDescriptors returns the {id, name} of each reference image.
func (r *Request) ReferenceDescriptors() []core.ReferenceImage {
	if len(r.ReferenceImages) == 0 {
		return nil
	}
	out := make([]core.ReferenceImage, 0, len(r.ReferenceImages))
	for _, ref := range r.ReferenceImages {
		out = append(out, core.ReferenceImage{ID: ref.ID, Name: ref.Name})
	}
	return out
}

// NativePayload is the native multimodal request body.
type NativePayload struct {
	Contents         []NativeContent        `json:"contents"`
	GenerationConfig NativeGenerationConfig `json:"generationConfig"`
}

// NativeContent is one content block.
type NativeContent struct {
	Parts []NativePart `json:"parts"`
}

// NativePart is either inline image data or text.
type NativePart struct {
	InlineData *InlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// InlineData carries base64 image data.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// NativeGenerationConfig asks for image output.
type NativeGenerationConfig struct {
	ResponseModalities []string          `json:"responseModalities"`
	ImageConfig        NativeImageConfig `json:"imageConfig"`
}

// NativeImageConfig sets the output shape.
type NativeImageConfig struct {
	AspectRatio string `json:"aspectRatio"`
	ImageSize   string `json:"imageSize"`
}

// BuildNativePayload places inline reference images first and the prompt last.
// References that are not base64 data URLs are skipped.
func BuildNativePayload(r *Request) NativePayload {
	parts := make([]NativePart, 0, len(r.ReferenceImages)+1)
	for _, ref := range r.ReferenceImages {
		m := inlineDataURL.FindStringSubmatch(ref.DataURL)
		if m == nil {
			continue
		}
		parts = append(parts, NativePart{InlineData: &InlineData{MimeType: m[1], Data: m[2]}})
	}
	parts = append(parts, NativePart{Text: r.Prompt})

	return NativePayload{
		Contents: []NativeContent{{Parts: parts}},
		GenerationConfig: NativeGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: NativeImageConfig{
				AspectRatio: NativeAspectRatio(r.AspectRatio),
				ImageSize:   NativeImageSize(r.Resolution),
			},
		},
	}
}

// GenericPayload is the generic image-generation request body.
type GenericPayload struct {
	Model           string   `json:"model"`
	Prompt          string   `json:"prompt"`
	N               int      `json:"n"`
	Size            string   `json:"size"`
	ResponseFormat  string   `json:"response_format"`
	NegativePrompt  string   `json:"negative_prompt,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

// BuildGenericPayload builds the flat payload with size "<w>x<h>".
func BuildGenericPayload(r *Request) GenericPayload {
	w, h := TargetSize(r.Resolution, r.AspectRatio)
	payload := GenericPayload{
		Model:          r.Model,
		Prompt:         r.Prompt,
		N:              r.Count,
		Size:           fmt.Sprintf("%dx%d", w, h),
		ResponseFormat: "url",
	}
	if strings.TrimSpace(r.NegativePrompt) != "" {
		payload.NegativePrompt = r.NegativePrompt
	}
	for _, ref := range r.ReferenceImages {
		payload.ReferenceImages = append(payload.ReferenceImages, ref.DataURL)
	}
	return payload
}

// LoadReferenceImage reads a local file into a ReferenceInput.
// Only JPEG, PNG and WebP files up to MaxReferenceImageSize are accepted.
func LoadReferenceImage(path string) (ReferenceInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ReferenceInput{}, fmt.Errorf("reference image: %w", err)
	}
	if info.Size() > MaxReferenceImageSize {
		return ReferenceInput{}, fmt.Errorf("reference image %s is larger than 15MB", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ReferenceInput{}, fmt.Errorf("reference image: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !slices.Contains(AcceptedReferenceTypes, mtype.String()) {
		return ReferenceInput{}, fmt.Errorf("reference image %s has unsupported format %s (JPEG, PNG or WebP only)",
			filepath.Base(path), mtype.String())
	}

	return ReferenceInput{
		ID:      uuid.NewString(),
		Name:    filepath.Base(path),
		DataURL: "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
