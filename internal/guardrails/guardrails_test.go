package guardrails

import "testing"

func TestFilter_TooShort(t *testing.T) {
	_, err := Filter("hi", Config{MinLength: 5, MaxLength: 100})
	if err == nil {
		t.Fatal("expected a violation for too-short text")
	}
	if _, ok := err.(*Violation); !ok {
		t.Fatalf("expected *Violation, got %T", err)
	}
}

func TestFilter_Truncates(t *testing.T) {
	out, err := Filter("hello world", Config{MaxLength: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected truncated 'hello', got %q", out)
	}
}

func TestFilter_BannedPhraseCheckedAgainstOriginalText(t *testing.T) {
	// "forbidden" only appears after the truncation point — the check must
	// still catch it because it runs against the original text.
	cfg := Config{
		MaxLength:     10,
		BannedPhrases: []string{"forbidden"},
	}
	_, err := Filter("0123456789forbidden", cfg)
	if err == nil {
		t.Fatal("expected rejection for banned phrase beyond the truncation point")
	}
}

func TestFilter_BannedPhraseCaseInsensitive(t *testing.T) {
	cfg := Config{MaxLength: 1000, BannedPhrases: []string{"forbidden"}}
	_, err := Filter("this is Forbidden content", cfg)
	if err == nil {
		t.Fatal("expected case-insensitive rejection")
	}
}

func TestFilter_DisclaimerAppended(t *testing.T) {
	cfg := Config{
		MinLength:         0,
		MaxLength:         1000,
		RequireDisclaimer: true,
		Disclaimer:        "AI may err.",
	}
	out, err := Filter("2+2=4", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2+2=4\n\nAI may err." {
		t.Fatalf("expected disclaimer appended, got %q", out)
	}
}

func TestFilter_NoDisclaimerWhenEmpty(t *testing.T) {
	cfg := Config{MaxLength: 1000, RequireDisclaimer: true, Disclaimer: ""}
	out, err := Filter("hello", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected no disclaimer appended when Disclaimer is empty, got %q", out)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	cfg := Config{MaxLength: 1000}
	once, err := Filter("a compliant response", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Filter(once, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if once != twice {
		t.Fatalf("expected idempotence on compliant text, got %q then %q", once, twice)
	}
}
