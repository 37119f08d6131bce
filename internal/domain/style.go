package domain

import "strings"

// StyleProfile holds generation parameters for an abstract style id.
type StyleProfile struct {
	PromptSuffix string
	AspectRatio  string
	StepCount    int
	Quality      int
}

// DefaultStyleProfile is used for every unknown style id.
var DefaultStyleProfile = StyleProfile{
	PromptSuffix: "high quality, detailed",
	AspectRatio:  "1:1",
	StepCount:    4,
	Quality:      85,
}

var styleProfiles = map[string]StyleProfile{
	"1": {PromptSuffix: "photorealistic, high quality, detailed", AspectRatio: "1:1", StepCount: 4, Quality: 90},
	"2": {PromptSuffix: "anime style, manga style, colorful, vibrant", AspectRatio: "1:1", StepCount: 4, Quality: 85},
	"3": {PromptSuffix: "digital art, concept art, detailed, professional", AspectRatio: "1:1", StepCount: 4, Quality: 95},
	"4": {PromptSuffix: "minimalist, clean, simple, elegant", AspectRatio: "1:1", StepCount: 4, Quality: 80},
	"5": {PromptSuffix: "fantasy art, magical, mystical, ethereal", AspectRatio: "1:1", StepCount: 4, Quality: 90},
}

// ResolveStyle returns the profile for styleID, or DefaultStyleProfile.
func ResolveStyle(styleID string) StyleProfile {
	if p, ok := styleProfiles[strings.TrimSpace(styleID)]; ok {
		return p
	}
	return DefaultStyleProfile
}

var styleEnums = map[string]string{
	"1":            "realistic",
	"2":            "anime",
	"3":            "digital-art",
	"4":            "artistic",
	"5":            "artistic",
	"realistic":    "realistic",
	"artistic":     "artistic",
	"anime":        "anime",
	"cartoon":      "cartoon",
	"digital-art":  "digital-art",
	"oil-painting": "oil-painting",
	"watercolor":   "watercolor",
	"3d-render":    "3d-render",
}

// StyleEnum maps a style id to the value stored in the image_style column.
func StyleEnum(styleID string) string {
	if v, ok := styleEnums[strings.ToLower(strings.TrimSpace(styleID))]; ok {
		return v
	}
	return "digital-art"
}

var supportedAspectRatios = map[string]struct{}{
	"1:1": {}, "16:9": {}, "21:9": {}, "3:2": {}, "2:3": {}, "4:5": {},
	"5:4": {}, "3:4": {}, "4:3": {}, "9:16": {}, "9:21": {},
}

// SupportedAspectRatio reports whether the provider accepts ratio.
func SupportedAspectRatio(ratio string) bool {
	_, ok := supportedAspectRatios[ratio]
	return ok
}
