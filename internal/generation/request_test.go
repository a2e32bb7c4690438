package generation

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetSize(t *testing.T) {
	tests := []struct {
		resolution, ratio string
		w, h              int
	}{
		{"1k", "1:1", 1024, 1024},
		{"1k", "16:9", 1820, 1024},
		{"1k", "9:16", 1024, 1820},
		{"2k", "4:3", 2731, 2048},
		{"2K", "3:2", 3072, 2048},
		{"4k", "2:3", 4096, 6144},
		{"1k", "21:9", 2389, 1024},
		{"8k", "1:1", 1024, 1024},
		{"1k", "5:4", 1024, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.resolution+"_"+tt.ratio, func(t *testing.T) {
			w, h := TargetSize(tt.resolution, tt.ratio)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestDetectFamily(t *testing.T) {
	assert.Equal(t, FamilyNative, DetectFamily("gemini-2.5-flash-image"))
	assert.Equal(t, FamilyNative, DetectFamily("Gemini-3-Pro-IMAGE-preview"))
	assert.Equal(t, FamilyGeneric, DetectFamily("gemini-2.5-pro"))
	assert.Equal(t, FamilyGeneric, DetectFamily("dall-e-3"))
}

func TestRequestValidate(t *testing.T) {
	valid := func() Request {
		r := Request{Prompt: "cat", Model: "m"}
		r.Normalize()
		return r
	}

	r := valid()
	require.NoError(t, r.Validate())
	assert.Equal(t, "1k", r.Resolution)
	assert.Equal(t, "1:1", r.AspectRatio)
	assert.Equal(t, 1, r.Count)

	cases := map[string]func(*Request){
		"blank prompt":     func(r *Request) { r.Prompt = " \n" },
		"missing model":    func(r *Request) { r.Model = "" },
		"bad resolution":   func(r *Request) { r.Resolution = "3k" },
		"bad aspect ratio": func(r *Request) { r.AspectRatio = "5:4" },
		"count too high":   func(r *Request) { r.Count = 5 },
		"too many refs":    func(r *Request) { r.ReferenceImages = make([]ReferenceInput, MaxReferenceImages+1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid()
			mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestBuildNativePayload(t *testing.T) {
	r := Request{
		Prompt:      "a cat",
		Model:       "gemini-2.5-flash-image",
		Resolution:  "4k",
		AspectRatio: "9:16",
		ReferenceImages: []ReferenceInput{
			{ID: "a", DataURL: "data:image/jpeg;base64,JJJJ"},
			{ID: "b", DataURL: "https://example.com/not-inline.png"},
		},
	}

	data, err := json.Marshal(BuildNativePayload(&r))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"contents":[{"parts":[
			{"inlineData":{"mimeType":"image/jpeg","data":"JJJJ"}},
			{"text":"a cat"}
		]}],
		"generationConfig":{"responseModalities":["IMAGE"],"imageConfig":{"aspectRatio":"9:16","imageSize":"4K"}}
	}`, string(data))
}

func TestBuildGenericPayload(t *testing.T) {
	r := Request{Prompt: "a cat", Model: "dall-e-3", Resolution: "1k", AspectRatio: "16:9", Count: 2}
	data, err := json.Marshal(BuildGenericPayload(&r))
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"dall-e-3","prompt":"a cat","n":2,"size":"1820x1024","response_format":"url"}`, string(data))

	r.NegativePrompt = "dogs"
	r.ReferenceImages = []ReferenceInput{{DataURL: "data:image/png;base64,AAAA"}}
	p := BuildGenericPayload(&r)
	assert.Equal(t, "dogs", p.NegativePrompt)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, p.ReferenceImages)

	r.NegativePrompt = "   "
	assert.Empty(t, BuildGenericPayload(&r).NegativePrompt)
}

func TestRequestParams(t *testing.T) {
	r := Request{Resolution: "2k", AspectRatio: "3:4", Count: 3}
	p := r.Params()
	assert.Equal(t, 2048, p.Width)
	assert.Equal(t, 2731, p.Height)
	assert.Equal(t, 3, p.RequestedCount)
}

func TestLoadReferenceImage(t *testing.T) {
	dir := t.TempDir()

	// 1x1 transparent PNG
	png, err := base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")
	require.NoError(t, err)
	path := filepath.Join(dir, "ref.png")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	ref, err := LoadReferenceImage(path)
	require.NoError(t, err)
	assert.Equal(t, "ref.png", ref.Name)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), ref.DataURL)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o600))
	_, err = LoadReferenceImage(txt)
	assert.ErrorContains(t, err, "unsupported format")

	_, err = LoadReferenceImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
