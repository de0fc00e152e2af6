package placeholder

import (
	"reflect"
	"testing"
)

func TestProtect(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantText  string
		wantSpans []string
	}{
		{
			name:     "no protected spans",
			in:       "Hola mundo",
			wantText: "Hola mundo",
		},
		{
			name:      "inline code",
			in:        "Ejecuta `npm install` primero",
			wantText:  "Ejecuta [PH0] primero",
			wantSpans: []string{"`npm install`"},
		},
		{
			name:      "fenced code before inline",
			in:        "Mira:\n```\nlet `x` = 1\n```\ny `z`",
			wantText:  "Mira:\n[PH0]\ny [PH1]",
			wantSpans: []string{"```\nlet `x` = 1\n```", "`z`"},
		},
		{
			name:      "url",
			in:        "Véase https://example.com/a?b=1 para más",
			wantText:  "Véase [PH0] para más",
			wantSpans: []string{"https://example.com/a?b=1"},
		},
		{
			name:      "html tags",
			in:        "<b>Hallo</b> Welt",
			wantText:  "[PH0]Hallo[PH1] Welt",
			wantSpans: []string{"<b>", "</b>"},
		},
		{
			name:     "angle brackets in prose",
			in:       "yo <3 esto y 5 > 4",
			wantText: "yo <3 esto y 5 > 4",
		},
		{
			name:      "literal marker in post",
			in:        "Напишите [PH0] и затем `rm -rf`",
			wantText:  "Напишите [PH0] и затем [PH1]",
			wantSpans: []string{"[PH0]", "`rm -rf`"},
		},
		{
			name:      "marker look-alike inside code",
			in:        "usa `[ PH 3 ]` aquí",
			wantText:  "usa [PH1] aquí",
			wantSpans: []string{"[ PH 3 ]", "`[ PH 3 ]`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, spans := Protect(tt.in)
			if text != tt.wantText {
				t.Errorf("Protect text = %q, want %q", text, tt.wantText)
			}
			if len(spans) != len(tt.wantSpans) || (len(spans) > 0 && !reflect.DeepEqual(spans, tt.wantSpans)) {
				t.Errorf("Protect spans = %q, want %q", spans, tt.wantSpans)
			}
			if got := Restore(text, spans); got != tt.in {
				t.Errorf("Restore(Protect(x)) = %q, want %q", got, tt.in)
			}
		})
	}
}

func TestRestore_Tolerant(t *testing.T) {
	spans := []string{"`a`", "`b`"}

	got := Restore("uno [ PH0 ] dos [PH 1] tres [PH7]", spans)
	want := "uno `a` dos `b` tres [PH7]"
	if got != want {
		t.Errorf("Restore = %q, want %q", got, want)
	}
}

func TestMissing(t *testing.T) {
	spans := []string{"x", "y", "z"}

	got := Missing("keep [PH0] and [PH2]", spans)
	if !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("Missing = %v, want [1]", got)
	}

	if got := Missing("[PH0][PH1][PH2]", spans); got != nil {
		t.Errorf("expected nothing missing, got %v", got)
	}
}

func TestHasMarkers(t *testing.T) {
	if HasMarkers("plain") {
		t.Error("plain text has no markers")
	}
	if !HasMarkers("a [PH3] b") {
		t.Error("expected marker to be found")
	}
}

func TestOnlyMarkers(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"[PH0]", true},
		{"  [PH0]\n\n[PH1] ", true},
		{"", true},
		{"see [PH0]", false},
	}
	for _, tt := range tests {
		if got := OnlyMarkers(tt.text); got != tt.want {
			t.Errorf("OnlyMarkers(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestStripMarkers(t *testing.T) {
	if got := StripMarkers("[PH0] hello [ PH1 ]world"); got != " hello world" {
		t.Errorf("StripMarkers = %q", got)
	}
}
