package replicate

import (
	"bytes"
	"encoding/json"
	"strings"

	"aipixels/internal/domain"
)

// OutputKind tags the shape a provider used for a succeeded prediction's output.
type OutputKind int

const (
	OutputNone OutputKind = iota
	OutputList
	OutputSingle
	OutputObject
	OutputUnrecognized
)

func (k OutputKind) String() string {
	switch k {
	case OutputNone:
		return "none"
	case OutputList:
		return "list"
	case OutputSingle:
		return "single"
	case OutputObject:
		return "object"
	default:
		return "unrecognized"
	}
}

// Output is the provider output decoded once at the boundary. Downstream
// code only reads URLs and never re-inspects the raw shape.
type Output struct {
	Kind OutputKind
	URLs []string
	Raw  json.RawMessage
}

type objectOutput struct {
	URL    *string   `json:"url"`
	Image  *string   `json:"image"`
	Images *[]string `json:"images"`
}

// ParseOutput classifies raw into one of the supported shapes:
// string, []string, {url}, {image} or {images: []string}.
func ParseOutput(raw json.RawMessage) Output {
	trimmed := bytes.TrimSpace(raw)
	out := Output{Raw: raw}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		out.Kind = OutputNone
		return out
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			out.Kind = OutputUnrecognized
			return out
		}
		out.Kind = OutputSingle
		out.URLs = cleanURLs([]string{s})
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			out.Kind = OutputUnrecognized
			return out
		}
		out.Kind = OutputList
		out.URLs = cleanURLs(list)
	case '{':
		var obj objectOutput
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			out.Kind = OutputUnrecognized
			return out
		}
		switch {
		case obj.URL != nil && strings.TrimSpace(*obj.URL) != "":
			out.URLs = cleanURLs([]string{*obj.URL})
		case obj.Image != nil && strings.TrimSpace(*obj.Image) != "":
			out.URLs = cleanURLs([]string{*obj.Image})
		case obj.Images != nil:
			out.URLs = cleanURLs(*obj.Images)
		default:
			out.Kind = OutputUnrecognized
			return out
		}
		out.Kind = OutputObject
	default:
		out.Kind = OutputUnrecognized
	}
	return out
}

// Sources returns the canonical artifact list. Unrecognized and empty
// outputs yield an empty list.
func (o Output) Sources() []domain.ArtifactSource {
	sources := make([]domain.ArtifactSource, 0, len(o.URLs))
	for _, u := range o.URLs {
		sources = append(sources, domain.ArtifactSource{SourceURL: u})
	}
	return sources
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
