package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func assertInvariants(t *testing.T, text string, maxChars int, chunks []string) {
	t.Helper()
	if got := strings.Join(chunks, ""); got != text {
		t.Fatalf("chunks do not reassemble input:\n got %q\nwant %q", got, text)
	}
	for i, c := range chunks {
		if c == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if maxChars > 0 && utf8.RuneCountInString(c) > maxChars {
			t.Errorf("chunk %d has %d runes, limit %d", i, utf8.RuneCountInString(c), maxChars)
		}
	}
}

func TestSplit_Short(t *testing.T) {
	chunks := Split("Hola", 10)
	if len(chunks) != 1 || chunks[0] != "Hola" {
		t.Errorf("expected single chunk, got %q", chunks)
	}
}

func TestSplit_Unlimited(t *testing.T) {
	text := strings.Repeat("palabra ", 100)
	if chunks := Split(text, 0); len(chunks) != 1 {
		t.Errorf("expected one chunk with maxChars=0, got %d", len(chunks))
	}
}

func TestSplit_ParagraphBoundary(t *testing.T) {
	text := "Primer párrafo corto.\n\nSegundo párrafo también corto."
	chunks := Split(text, 30)

	assertInvariants(t, text, 30, chunks)
	if chunks[0] != "Primer párrafo corto.\n\n" {
		t.Errorf("expected split after blank line, got %q", chunks[0])
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "Una frase. Otra frase más larga que sigue aquí"
	chunks := Split(text, 20)

	assertInvariants(t, text, 20, chunks)
	if chunks[0] != "Una frase." {
		t.Errorf("expected split after sentence, got %q", chunks[0])
	}
}

func TestSplit_WordBoundary(t *testing.T) {
	text := "uno dos tres cuatro cinco seis siete"
	chunks := Split(text, 10)

	assertInvariants(t, text, 10, chunks)
	for _, c := range chunks[1:] {
		if !strings.HasPrefix(c, " ") {
			t.Errorf("expected later chunks to start at whitespace, got %q", c)
		}
	}
}

func TestSplit_HardCut(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := Split(text, 10)

	assertInvariants(t, text, 10, chunks)
	if len(chunks) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(chunks))
	}
}

func TestSplit_Unicode(t *testing.T) {
	text := "这是第一句。这是第二句。这是第三句。"
	chunks := Split(text, 7)

	assertInvariants(t, text, 7, chunks)
	if chunks[0] != "这是第一句。" {
		t.Errorf("expected split after CJK full stop, got %q", chunks[0])
	}
}

func TestSplit_LongPost(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Dies ist ein ziemlich langer Satz in einem Forumsbeitrag. ")
		if i%7 == 6 {
			sb.WriteString("\n\n")
		}
	}
	text := sb.String()

	assertInvariants(t, text, 450, Split(text, 450))
}

func TestSplitBytes_Cyrillic(t *testing.T) {
	text := strings.Repeat("Привет всем участникам форума сегодня. ", 30)
	chunks := SplitBytes(text, 450, 480)

	assertInvariants(t, text, 450, chunks)
	for i, c := range chunks {
		if len(c) > 480 {
			t.Errorf("chunk %d has %d bytes, limit 480", i, len(c))
		}
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d cut inside a rune", i)
		}
	}
	if !strings.HasSuffix(chunks[0], "сегодня.") {
		t.Errorf("expected split after a sentence, got %q", chunks[0])
	}
}

func TestSplitBytes_HardCutCJK(t *testing.T) {
	text := strings.Repeat("字", 20)
	chunks := SplitBytes(text, 0, 10)

	assertInvariants(t, text, 0, chunks)
	if len(chunks) != 7 || chunks[0] != "字字字" {
		t.Errorf("expected 3-rune pieces, got %q", chunks)
	}
}

func TestSplitBytes_ASCIIUnchanged(t *testing.T) {
	text := "uno dos tres cuatro cinco seis siete"
	got, want := SplitBytes(text, 10, 500), Split(text, 10)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("byte limit above the rune limit changed the split: %q vs %q", got, want)
	}
}
