package wordpress

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("## Heading\n\nSome *emphasis* and a [link](https://example.com).")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"<h2>Heading</h2>", "<em>emphasis</em>", `<a href="https://example.com">link</a>`} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q:\n%s", want, html)
		}
	}
}

func TestStripTags(t *testing.T) {
	in := `<p>First paragraph.</p><script>alert("x")</script><ul><li>one</li><li>two</li></ul>`
	got := StripTags(in)
	if strings.Contains(got, "alert") {
		t.Errorf("script content survived: %q", got)
	}
	for _, want := range []string{"First paragraph.", "one", "two"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestTrimWords(t *testing.T) {
	if got := TrimWords("one two three four", 2); got != "one two..." {
		t.Errorf("got %q", got)
	}
	if got := TrimWords("one two", 5); got != "one two" {
		t.Errorf("short input changed: %q", got)
	}
}
