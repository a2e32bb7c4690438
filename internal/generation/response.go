package generation

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var markdownDataImage = regexp.MustCompile(`!\[.*?\]\((data:image/[^;]+;base64,[^)]+)\)`)

// GeneratedImage is one image locator extracted from an upstream response.
type GeneratedImage struct {
	Locator       string `json:"locator"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ExtractNativeImages walks candidates[].content.parts[] in order.
// Inline data becomes a data URL; text parts contribute any markdown-embedded
// data-URL images.
func ExtractNativeImages(body []byte) []GeneratedImage {
	var images []GeneratedImage
	gjson.GetBytes(body, "candidates").ForEach(func(_, candidate gjson.Result) bool {
		candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
			inline := part.Get("inlineData")
			mime := inline.Get("mimeType").String()
			data := inline.Get("data").String()
			if mime != "" && data != "" {
				images = append(images, GeneratedImage{Locator: inlineLocator(mime, data)})
				return true
			}
			if text := part.Get("text"); text.Exists() {
				for _, m := range markdownDataImage.FindAllStringSubmatch(text.String(), -1) {
					images = append(images, GeneratedImage{Locator: m[1]})
				}
			}
			return true
		})
		return true
	})
	return images
}

func inlineLocator(mime, data string) string {
	if strings.HasPrefix(data, "data:") {
		return data
	}
	return "data:" + mime + ";base64," + strings.Join(strings.Fields(data), "")
}

// ExtractGenericImages reads data[] items, preferring url over b64_json.
func ExtractGenericImages(body []byte) []GeneratedImage {
	var images []GeneratedImage
	gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
		img := GeneratedImage{RevisedPrompt: item.Get("revised_prompt").String()}
		switch {
		case item.Get("url").String() != "":
			img.Locator = item.Get("url").String()
		case item.Get("b64_json").String() != "":
			img.Locator = "data:image/png;base64," + item.Get("b64_json").String()
		default:
			return true
		}
		images = append(images, img)
		return true
	})
	return images
}
