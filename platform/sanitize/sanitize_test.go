package sanitize

import (
	"strings"
	"testing"
)

func TestTextDropsScriptContent(t *testing.T) {
	got := Text("<script>alert(1)</script>Hello")
	if got != "Hello" {
		t.Fatalf("expected Hello, got %q", got)
	}
}

func TestTextEscapesEntities(t *testing.T) {
	got := Text("  Fish & <b>Chips</b> \"daily\" ")
	want := "Fish &amp; Chips &#34;daily&#34;"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTextDoesNotReviveEncodedTags(t *testing.T) {
	got := Text("&lt;script&gt;x&lt;/script&gt;")
	if strings.Contains(got, "<") {
		t.Fatalf("expected no raw markup, got %q", got)
	}
}

func TestHTMLKeepsAllowedTags(t *testing.T) {
	got := HTML("<p>Hello <strong>world</strong></p><table><tr><td>1</td></tr></table>")
	want := "<p>Hello <strong>world</strong></p><table><tr><td>1</td></tr></table>"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHTMLStripsEventHandlers(t *testing.T) {
	got := HTML(`<p onclick="steal()" class="lead">Hi</p>`)
	if strings.Contains(got, "onclick") {
		t.Fatalf("event handler survived: %q", got)
	}
	if !strings.Contains(got, `class="lead"`) {
		t.Fatalf("expected class attribute kept, got %q", got)
	}
}

func TestHTMLNeutralizesJavascriptHref(t *testing.T) {
	got := HTML(`<a href=" JaVaScript:alert(1)">x</a>`)
	if got != `<a href="#">x</a>` {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestHTMLDataURIOnlyForImages(t *testing.T) {
	got := HTML(`<img src="data:text/html;base64,PHNjcmlwdD4=" alt="a"><img src="data:image/png;base64,AAAA">`)
	if strings.Contains(got, "data:text/html") {
		t.Fatalf("non-image data uri survived: %q", got)
	}
	if !strings.Contains(got, "data:image/png;base64,AAAA") {
		t.Fatalf("image data uri dropped: %q", got)
	}
}

func TestHTMLRemovesDisallowedTagsButKeepsText(t *testing.T) {
	got := HTML(`<form><input value="x">Name</form><script>bad()</script>`)
	if got != "Name" {
		t.Fatalf("expected Name, got %q", got)
	}
}
