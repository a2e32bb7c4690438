// Package core holds the domain types shared by the image cache, the history
// index and the generation pipeline.
package core

import (
	"encoding/base64"
	"time"
)

// CachedImage is a stored image payload together with its bookkeeping.
// Content is owned by the blob store; callers receive their own copy.
type CachedImage struct {
	ID                string         `json:"id" bson:"_id"`
	Content           []byte         `json:"-" bson:"content,omitempty"`
	OriginalReference string         `json:"original_reference" bson:"original_reference"`
	MimeType          string         `json:"mime_type" bson:"mime_type"`
	ByteSize          int64          `json:"byte_size" bson:"byte_size"`
	Checksum          string         `json:"checksum,omitempty" bson:"checksum"`
	Width             int            `json:"width,omitempty" bson:"width"`
	Height            int            `json:"height,omitempty" bson:"height"`
	CreatedAt         time.Time      `json:"created_at" bson:"created_at"`
	Metadata          map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`

	// DisplayURL is rebuilt from Content on every read and never persisted.
	DisplayURL string `json:"display_url,omitempty" bson:"-"`
}

// DataURL encodes the content as a data: URL.
func (img *CachedImage) DataURL() string {
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Content)
}

// CacheStats summarizes the blob store contents.
type CacheStats struct {
	Count           int       `json:"count"`
	TotalSizeBytes  int64     `json:"total_size_bytes"`
	OldestCreatedAt time.Time `json:"oldest_created_at"`
}

// RecordStatusSuccess is the only status ever written to the history index.
const RecordStatusSuccess = "success"

// GenerationParams is the immutable snapshot of a request's sizing options.
type GenerationParams struct {
	Resolution     string `json:"resolution" bson:"resolution"`
	AspectRatio    string `json:"aspect_ratio" bson:"aspect_ratio"`
	RequestedCount int    `json:"requested_count" bson:"requested_count"`
	Width          int    `json:"width" bson:"width"`
	Height         int    `json:"height" bson:"height"`
}

// ReferenceImage describes an input image supplied with a request.
type ReferenceImage struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// HistoryRecord is one successful generation.
type HistoryRecord struct {
	ID              string           `json:"id" bson:"_id"`
	Timestamp       time.Time        `json:"timestamp" bson:"timestamp"`
	Prompt          string           `json:"prompt" bson:"prompt"`
	NegativePrompt  string           `json:"negative_prompt,omitempty" bson:"negative_prompt,omitempty"`
	Model           string           `json:"model" bson:"model"`
	Params          GenerationParams `json:"params" bson:"params"`
	ReferenceImages []ReferenceImage `json:"reference_images,omitempty" bson:"reference_images,omitempty"`
	ImageIDs        []string         `json:"image_ids" bson:"image_ids"`
	Status          string           `json:"status" bson:"status"`
}

// Token is an API token available to the current user.
type Token struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Key   string `json:"key"`
	Group string `json:"group,omitempty"`
}
