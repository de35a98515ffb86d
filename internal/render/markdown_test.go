package render

import (
	"strings"
	"testing"
)

func TestMarkdown_Render(t *testing.T) {
	r := NewMarkdown()
	out, err := r.Render("**CS 201** requires:\n\n- CS 101\n- MATH 120\n\n| day | time |\n|---|---|\n| Mon | 2pm |")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	checks := []string{
		"<strong>CS 201</strong>",
		"<li>CS 101</li>",
		"<table>",
		"<td>Mon</td>",
	}
	for _, c := range checks {
		if !strings.Contains(out, c) {
			t.Fatalf("expected output contains %q, got %s", c, out)
		}
	}
}

func TestMarkdown_DropsRawHTML(t *testing.T) {
	out, err := NewMarkdown().Render("hello <script>alert(1)</script>")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html leaked: %s", out)
	}
}
