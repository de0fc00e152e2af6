package page

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/posttran/internal/arbiter"
	"github.com/valpere/posttran/internal/orchestrator"
	"github.com/valpere/posttran/internal/store"
	"github.com/valpere/posttran/internal/translator"
)

type stubDetector struct {
	lang string
	ok   bool
	seen []string
}

func (d *stubDetector) DetectISO(text string) (string, bool) {
	d.seen = append(d.seen, text)
	return d.lang, d.ok
}

type fakeTranslator struct {
	mu   sync.Mutex
	reqs []translator.TranslateRequest
	fn   func(req translator.TranslateRequest) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, *orchestrator.OrchestratorResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	text, err := f.fn(req)
	if err != nil {
		failure := translator.ServiceResult{ServiceName: "fake", Error: err.Error()}
		return nil, &orchestrator.OrchestratorResult{Failures: []translator.ServiceResult{failure}, Errors: []error{err}, Failed: 1}, err
	}
	res := translator.ServiceResult{ServiceName: "fake", TranslatedText: text, Confidence: 0.9}
	return &res, &orchestrator.OrchestratorResult{Results: []translator.ServiceResult{res}, Succeeded: 1}, nil
}

func upper() *fakeTranslator {
	return &fakeTranslator{fn: func(req translator.TranslateRequest) (string, error) {
		return strings.ToUpper(req.Text), nil
	}}
}

func failing() *fakeTranslator {
	return &fakeTranslator{fn: func(req translator.TranslateRequest) (string, error) {
		return "", errors.New("all translation services failed: mymemory: quota exceeded")
	}}
}

func newMemory(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcess_Empty(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{})

	for _, content := range []string{"", "  \n\t"} {
		out, err := svc.Process(context.Background(), content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !out.IsEnglish || out.TranslatedContent != content {
			t.Errorf("Process(%q) = %+v, want verbatim English", content, out.PageResult)
		}
	}
	if len(tr.reqs) != 0 {
		t.Errorf("expected no translation calls, got %d", len(tr.reqs))
	}
}

func TestProcess_English(t *testing.T) {
	det := &stubDetector{lang: "EN", ok: true}
	tr := upper()
	svc := New(det, tr, nil, Options{})

	content := "**Hello** everyone, this is my first post."
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsEnglish {
		t.Error("expected is_english")
	}
	if out.TranslatedContent != content {
		t.Errorf("expected content unchanged, got %q", out.TranslatedContent)
	}
	if out.DetectedLang != "EN" {
		t.Errorf("expected EN, got %q", out.DetectedLang)
	}
	if len(tr.reqs) != 0 {
		t.Error("English posts must not be translated")
	}
	if len(det.seen) != 1 || strings.Contains(det.seen[0], "**") {
		t.Errorf("expected detection on plain text, got %q", det.seen)
	}
}

func TestProcess_UnknownLanguage(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{}, tr, nil, Options{})

	out, err := svc.Process(context.Background(), "+1 :)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsEnglish || out.TranslatedContent != "+1 :)" || out.DetectedLang != "" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if len(tr.reqs) != 0 {
		t.Error("unknown language must not be translated")
	}
}

func TestProcess_Translates(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{TargetLang: "EN"})

	out, err := svc.Process(context.Background(), "hola a todos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.IsEnglish {
		t.Error("expected is_english=false")
	}
	if out.TranslatedContent != "HOLA A TODOS" {
		t.Errorf("unexpected translation %q", out.TranslatedContent)
	}
	if out.DetectedLang != "ES" || out.Service != "fake" || out.Cached {
		t.Errorf("unexpected metadata: %+v", out)
	}

	req := tr.reqs[0]
	if req.SourceLang != "es" || req.TargetLang != "en" {
		t.Errorf("expected es->en, got %s->%s", req.SourceLang, req.TargetLang)
	}
}

func TestProcess_ChunksKeepWhitespace(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{MaxChunkChars: 20})

	content := "  hola a todos.\n\nesta es mi primera publicación en el foro.\n\nsaludos!\n"
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != strings.ToUpper(content) {
		t.Errorf("reassembly changed layout:\n got %q\nwant %q", out.TranslatedContent, strings.ToUpper(content))
	}
	if len(tr.reqs) < 3 {
		t.Errorf("expected the post to be chunked, got %d requests", len(tr.reqs))
	}
	for _, req := range tr.reqs {
		if len([]rune(req.Text)) > 20 {
			t.Errorf("chunk over limit: %q", req.Text)
		}
		if strings.TrimSpace(req.Text) != req.Text {
			t.Errorf("chunk not trimmed: %q", req.Text)
		}
	}
}

func TestProcess_ProtectsCodeAndURLs(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{})

	content := "mira `x := 1` en https://example.com/docs"
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "MIRA `x := 1` EN https://example.com/docs"
	if out.TranslatedContent != want {
		t.Errorf("got %q, want %q", out.TranslatedContent, want)
	}
	if strings.Contains(tr.reqs[0].Text, "example.com") {
		t.Errorf("URL leaked to provider: %q", tr.reqs[0].Text)
	}
	if tr.reqs[0].Instructions == "" {
		t.Error("expected marker instructions for LLM providers")
	}
}

func TestProcess_CodeOnlyPieceSkipped(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{})

	content := "```\nfmt.Println(1)\n```"
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != content {
		t.Errorf("got %q, want code untouched", out.TranslatedContent)
	}
	if len(tr.reqs) != 0 {
		t.Errorf("expected no provider call, got %d", len(tr.reqs))
	}
}

func TestProcess_Fallback(t *testing.T) {
	svc := New(&stubDetector{lang: "DE", ok: true}, failing(), nil, Options{FallbackToSource: true})

	out, err := svc.Process(context.Background(), "Guten Tag zusammen")
	if err != nil {
		t.Fatalf("expected fallback without error, got %v", err)
	}
	if out.IsEnglish {
		t.Error("expected is_english=false")
	}
	if out.TranslatedContent != "Guten Tag zusammen" {
		t.Errorf("expected source text, got %q", out.TranslatedContent)
	}
}

func TestProcess_Strict(t *testing.T) {
	svc := New(&stubDetector{lang: "DE", ok: true}, failing(), nil, Options{})

	_, err := svc.Process(context.Background(), "Guten Tag zusammen")
	if !errors.Is(err, ErrTranslationFailed) {
		t.Fatalf("expected ErrTranslationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected provider error to be kept, got %v", err)
	}
}

func TestProcess_TooLarge(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{MaxContentBytes: 8})

	if _, err := svc.Process(context.Background(), "demasiado largo"); !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("expected ErrContentTooLarge, got %v", err)
	}
	if len(tr.reqs) != 0 {
		t.Error("expected no provider call")
	}
}

func TestProcess_Memory(t *testing.T) {
	mem := newMemory(t)
	tr := upper()
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, mem, Options{})
	ctx := context.Background()

	first, err := svc.Process(ctx, "hola mundo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Error("first request cannot be cached")
	}

	second, err := svc.Process(ctx, "hola mundo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Error("expected second request from memory")
	}
	if second.TranslatedContent != first.TranslatedContent || second.IsEnglish {
		t.Errorf("cached outcome differs: %+v vs %+v", second, first)
	}
	if len(tr.reqs) != 1 {
		t.Errorf("expected 1 provider call, got %d", len(tr.reqs))
	}

	entries, err := mem.ListMemory(ctx, 0)
	if err != nil {
		t.Fatalf("ListMemory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ServiceUsed != "fake" || entries[0].SourceLang != "es" {
		t.Errorf("unexpected memory entries: %+v", entries)
	}
}

func TestProcess_FallbackNotMemorised(t *testing.T) {
	mem := newMemory(t)
	svc := New(&stubDetector{lang: "DE", ok: true}, failing(), mem, Options{FallbackToSource: true})
	ctx := context.Background()

	if _, err := svc.Process(ctx, "Guten Tag"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := mem.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Errorf("fallback output must not be memorised, got %d entries", stats.TotalEntries)
	}
}

type echoService struct {
	name string
}

func (e echoService) Name() string { return e.name }

func (e echoService) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	return &translator.ServiceResult{ServiceName: e.name, TranslatedText: "[" + req.Text + "]", Confidence: 0.7}, nil
}

func (e echoService) IsAvailable(ctx context.Context) error { return nil }

func (e echoService) SupportedLanguages(ctx context.Context) ([]string, error) { return nil, nil }

func TestProcess_WithOrchestrator(t *testing.T) {
	orch := orchestrator.New([]translator.TranslationService{echoService{name: "echo"}}, orchestrator.OrchestratorConfig{
		MaxAttempts:    1,
		SkipValidation: true,
	})
	svc := New(&stubDetector{lang: "FR", ok: true}, orch, nil, Options{})

	out, err := svc.Process(context.Background(), "bonjour")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != "[bonjour]" || out.Service != "echo" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

type stubArbiter struct {
	calls int
	seen  []translator.ServiceResult
	res   *arbiter.EvaluationResult
	err   error
}

func (a *stubArbiter) Evaluate(ctx context.Context, req translator.TranslateRequest, results []translator.ServiceResult) (*arbiter.EvaluationResult, error) {
	a.calls++
	a.seen = results
	return a.res, a.err
}

func twoServices() *orchestrator.Orchestrator {
	return orchestrator.New([]translator.TranslationService{echoService{name: "first"}, echoService{name: "second"}}, orchestrator.OrchestratorConfig{
		MaxAttempts:    1,
		SkipValidation: true,
	})
}

func TestProcess_ArbiterComposes(t *testing.T) {
	arb := &stubArbiter{res: &arbiter.EvaluationResult{SelectedService: "composite", CompositeText: "hello there", IsComposite: true}}
	svc := New(&stubDetector{lang: "ES", ok: true}, twoServices(), nil, Options{Arbiter: arb})

	out, err := svc.Process(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arb.calls != 1 || len(arb.seen) != 2 {
		t.Fatalf("expected one evaluation of two results, got %d calls with %d results", arb.calls, len(arb.seen))
	}
	if out.TranslatedContent != "hello there" || out.Service != "composite" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestProcess_ArbiterErrorKeepsBest(t *testing.T) {
	arb := &stubArbiter{err: errors.New("arbiter returned status 500")}
	svc := New(&stubDetector{lang: "ES", ok: true}, twoServices(), nil, Options{Arbiter: arb})

	out, err := svc.Process(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != "[hola]" || out.Service != "first" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestProcess_ArbiterSkippedForSingleResult(t *testing.T) {
	arb := &stubArbiter{}
	svc := New(&stubDetector{lang: "ES", ok: true}, upper(), nil, Options{Arbiter: arb})

	if _, err := svc.Process(context.Background(), "hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arb.calls != 0 {
		t.Errorf("arbiter should not run for a single result, got %d calls", arb.calls)
	}
}

func TestProcess_NonLatinChunksFitByteLimit(t *testing.T) {
	tr := upper()
	svc := New(&stubDetector{lang: "RU", ok: true}, tr, nil, Options{MaxChunkChars: 450, MaxChunkBytes: 500})

	content := strings.Repeat("Привет всем участникам форума сегодня. ", 30)
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != strings.ToUpper(content) {
		t.Errorf("reassembly changed the post")
	}
	if len(tr.reqs) < 3 {
		t.Errorf("expected at least 3 chunks, got %d", len(tr.reqs))
	}
	for _, req := range tr.reqs {
		if len(req.Text) > 500 {
			t.Errorf("chunk sent with %d bytes, limit 500", len(req.Text))
		}
	}
}

func TestProcess_LiteralMarkerSurvives(t *testing.T) {
	echo := &fakeTranslator{fn: func(req translator.TranslateRequest) (string, error) { return req.Text, nil }}
	svc := New(&stubDetector{lang: "RU", ok: true}, echo, nil, Options{})

	content := "Напишите [PH0] и затем `rm -rf`"
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != content {
		t.Errorf("got %q, want %q", out.TranslatedContent, content)
	}
}

func TestProcess_ChunksInParallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	tr := &fakeTranslator{fn: func(req translator.TranslateRequest) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return strings.ToUpper(req.Text), nil
	}}
	svc := New(&stubDetector{lang: "ES", ok: true}, tr, nil, Options{MaxChunkChars: 20, ChunkConcurrency: 3})

	content := strings.Repeat("una frase corta aquí. ", 12)
	out, err := svc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TranslatedContent != strings.ToUpper(content) {
		t.Errorf("parallel chunks reassembled out of order:\n got %q", out.TranslatedContent)
	}
	if got := peak.Load(); got < 2 || got > 3 {
		t.Errorf("expected 2 to 3 chunks in flight, peak was %d", got)
	}
}

func TestProcess_FailedResultsAudited(t *testing.T) {
	mem := newMemory(t)
	svc := New(&stubDetector{lang: "DE", ok: true}, failing(), mem, Options{FallbackToSource: true})
	ctx := context.Background()

	if _, err := svc.Process(ctx, "Guten Tag"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := mem.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Requests != 1 || stats.FailedResults != 1 {
		t.Errorf("expected the failed attempt audited, got %+v", stats)
	}
}

func TestProcess_OrchestratorFailuresAudited(t *testing.T) {
	mem := newMemory(t)
	orch := orchestrator.New([]translator.TranslationService{echoService{name: "echo"}, brokenService{}}, orchestrator.OrchestratorConfig{
		MaxAttempts:    1,
		SkipValidation: true,
	})
	svc := New(&stubDetector{lang: "FR", ok: true}, orch, mem, Options{})
	ctx := context.Background()

	if _, err := svc.Process(ctx, "bonjour"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := mem.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Results != 2 || stats.FailedResults != 1 {
		t.Errorf("expected one good and one failed result, got %+v", stats)
	}
}

type brokenService struct{}

func (brokenService) Name() string { return "broken" }

func (brokenService) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	return &translator.ServiceResult{ServiceName: "broken", Error: "503"}, errors.New("API returned status 503")
}

func (brokenService) IsAvailable(ctx context.Context) error { return nil }

func (brokenService) SupportedLanguages(ctx context.Context) ([]string, error) { return nil, nil }
