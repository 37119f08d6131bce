package replicate

import (
	"encoding/json"
	"testing"
)

func TestParseOutputCanonicalShapes(t *testing.T) {
	want := "https://replicate.delivery/xezq/out-0.png"
	tests := []struct {
		name string
		raw  string
		kind OutputKind
	}{
		{name: "single string", raw: `"` + want + `"`, kind: OutputSingle},
		{name: "array", raw: `["` + want + `"]`, kind: OutputList},
		{name: "url object", raw: `{"url":"` + want + `"}`, kind: OutputObject},
		{name: "image object", raw: `{"image":"` + want + `"}`, kind: OutputObject},
		{name: "images object", raw: `{"images":["` + want + `"]}`, kind: OutputObject},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := ParseOutput(json.RawMessage(tc.raw))
			if out.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", out.Kind, tc.kind)
			}
			sources := out.Sources()
			if len(sources) != 1 || sources[0].SourceURL != want {
				t.Fatalf("sources = %#v", sources)
			}
		})
	}
}

func TestParseOutputUnrecognizedYieldsEmpty(t *testing.T) {
	for _, raw := range []string{`42`, `true`, `{"foo":"bar"}`, `[{"url":"x"}]`, `{"images":"x"}`, `{"url":7}`} {
		out := ParseOutput(json.RawMessage(raw))
		if out.Kind != OutputUnrecognized {
			t.Fatalf("%s: kind = %s, want unrecognized", raw, out.Kind)
		}
		if got := out.Sources(); got == nil || len(got) != 0 {
			t.Fatalf("%s: sources = %#v, want empty list", raw, got)
		}
	}
}

func TestParseOutputNone(t *testing.T) {
	for _, raw := range []string{``, `null`, `  null `} {
		if out := ParseOutput(json.RawMessage(raw)); out.Kind != OutputNone || len(out.Sources()) != 0 {
			t.Fatalf("%q: output = %#v", raw, out)
		}
	}
}

func TestParseOutputKeepsOrderAndSkipsBlanks(t *testing.T) {
	out := ParseOutput(json.RawMessage(`["https://a/1.png", " ", "https://a/2.webp"]`))
	sources := out.Sources()
	if len(sources) != 2 || sources[0].SourceURL != "https://a/1.png" || sources[1].SourceURL != "https://a/2.webp" {
		t.Fatalf("sources = %#v", sources)
	}
}
