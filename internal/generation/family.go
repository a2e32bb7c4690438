package generation

import "strings"

// Family is the request/response shape a model speaks.
type Family string

const (
	// FamilyNative sends mixed text/image parts and returns mixed parts.
	FamilyNative Family = "native"
	// FamilyGeneric sends a flat prompt/size payload and returns image locators.
	FamilyGeneric Family = "generic"
)

// DetectFamily treats model names containing both "gemini" and "image"
// (case-insensitive) as native multimodal.
func DetectFamily(model string) Family {
	name := strings.ToLower(model)
	if strings.Contains(name, "gemini") && strings.Contains(name, "image") {
		return FamilyNative
	}
	return FamilyGeneric
}
