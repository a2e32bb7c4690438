package generation

import (
	"math"
	"strings"
)

// Resolution tiers.
const (
	Resolution1K = "1k"
	Resolution2K = "2k"
	Resolution4K = "4k"
)

// Request defaults.
const (
	DefaultResolution  = Resolution1K
	DefaultAspectRatio = "1:1"
	DefaultCount       = 1
	MaxCount           = 4
	DefaultWidth       = 1024
	DefaultHeight      = 1024
)

var resolutionBase = map[string]int{
	Resolution1K: 1024,
	Resolution2K: 2048,
	Resolution4K: 4096,
}

var nativeImageSize = map[string]string{
	Resolution1K: "1K",
	Resolution2K: "2K",
	Resolution4K: "4K",
}

type ratio struct{ w, h int }

var aspectRatios = map[string]ratio{
	"1:1":  {1, 1},
	"16:9": {16, 9},
	"9:16": {9, 16},
	"4:3":  {4, 3},
	"3:4":  {3, 4},
	"3:2":  {3, 2},
	"2:3":  {2, 3},
	"21:9": {21, 9},
}

// AspectRatios lists the supported ratios in display order.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3", "21:9"}

// Resolutions lists the supported tiers.
var Resolutions = []string{Resolution1K, Resolution2K, Resolution4K}

// TargetSize returns pixel dimensions for a tier and ratio. The short edge
// equals the tier base. Unknown tiers or ratios yield 1024x1024.
func TargetSize(resolution, aspectRatio string) (width, height int) {
	base, ok := resolutionBase[strings.ToLower(resolution)]
	r, rok := aspectRatios[aspectRatio]
	if !ok || !rok {
		return DefaultWidth, DefaultHeight
	}

	if r.w >= r.h {
		return int(math.Round(float64(base) * float64(r.w) / float64(r.h))), base
	}
	return base, int(math.Round(float64(base) * float64(r.h) / float64(r.w)))
}

// NativeImageSize maps a tier to the native family's imageSize value.
func NativeImageSize(resolution string) string {
	if v, ok := nativeImageSize[strings.ToLower(resolution)]; ok {
		return v
	}
	return "1K"
}

// NativeAspectRatio returns aspectRatio if supported, else "1:1".
func NativeAspectRatio(aspectRatio string) string {
	if _, ok := aspectRatios[aspectRatio]; ok {
		return aspectRatio
	}
	return DefaultAspectRatio
}

// ValidResolution reports whether resolution is a known tier.
func ValidResolution(resolution string) bool {
	_, ok := resolutionBase[strings.ToLower(resolution)]
	return ok
}

// ValidAspectRatio reports whether aspectRatio is supported.
func ValidAspectRatio(aspectRatio string) bool {
	_, ok := aspectRatios[aspectRatio]
	return ok
}
