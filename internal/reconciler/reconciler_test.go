package reconciler

import (
	"strings"
	"testing"

	"github.com/jordan-clayton/ribble-whisper/internal/model"
)

func seg(text string) model.DecodedSegment {
	return model.DecodedSegment{Text: text}
}

func TestReconcileIdempotence(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	s := seg("the quick brown fox jumps over the lazy dog")
	c1, w1 := r.Reconcile(s)
	c2, w2 := r.Reconcile(s)

	if c1 != c2 {
		t.Fatalf("confirmed changed on repeat feed: %q then %q", c1, c2)
	}
	if w1 != w2 {
		t.Fatalf("working changed on repeat feed: %q then %q", w1, w2)
	}
}

func TestReconcileSinglePhraseHoldsBackTail(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	confirmed, working := r.Reconcile(seg("hello there how are you doing today"))

	if confirmed == "" {
		t.Fatal("expected confirmed to contain most of the decoded text")
	}
	if strings.Count(working, " ")+1 > cfg.WorkingTailWords && working != "" {
		t.Fatalf("working has more than %d words: %q", cfg.WorkingTailWords, working)
	}
}

func TestReconcileOverlapMergeAvoidsDuplication(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	r.Reconcile(seg("the quick brown fox jumps high"))
	confirmedBefore := r.Confirmed()

	confirmed, _ := r.Reconcile(seg("fox jumps high over the lazy dog today"))

	if !strings.HasPrefix(confirmed, confirmedBefore) {
		t.Fatalf("confirmed is not append-only: before=%q after=%q", confirmedBefore, confirmed)
	}
	if strings.Count(confirmed, "fox jumps high") > 1 {
		t.Fatalf("overlap was duplicated in confirmed: %q", confirmed)
	}
}

func TestReconcileMonotoneConfirmed(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	texts := []string{
		"the quick brown fox jumps over the lazy dog",
		"lazy dog ran across the street quickly today",
		"quickly today it started raining very hard",
	}

	prev := ""
	for _, text := range texts {
		confirmed, _ := r.Reconcile(seg(text))
		if !strings.HasPrefix(confirmed, prev) {
			t.Fatalf("confirmed not monotone: prev=%q, now=%q", prev, confirmed)
		}
		prev = confirmed
	}
}

func TestReconcileTwoUnrelatedPhrasesFlushCombinesBoth(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	textA := "good morning everyone welcome to the show"
	textB := "completely different topic about gardening tips"

	r.Reconcile(seg(textA))
	r.Reconcile(seg(textB))
	final := r.Flush()

	for _, w := range strings.Fields(textA) {
		if !strings.Contains(final, w) {
			t.Fatalf("final confirmed missing word %q from phrase A: %q", w, final)
		}
	}
	for _, w := range strings.Fields(textB) {
		if !strings.Contains(final, w) {
			t.Fatalf("final confirmed missing word %q from phrase B: %q", w, final)
		}
	}
}

func TestReconcileEmptySegmentIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	r.Reconcile(seg("hello world this is a test"))
	before := r.Confirmed()
	workingBefore := r.Working()

	r.Reconcile(seg("[BLANK_AUDIO]"))

	if r.Confirmed() != before {
		t.Fatalf("confirmed changed on stripped-empty segment: %q -> %q", before, r.Confirmed())
	}
	if r.Working() != workingBefore {
		t.Fatalf("working changed on stripped-empty segment: %q -> %q", workingBefore, r.Working())
	}
}

func TestReconcileWorkingSetCapCommitsOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkingSetCapWords = 5
	cfg.WorkingTailWords = 20 // hold back more than the cap allows
	r := New(cfg)

	r.Reconcile(seg("one two three four five six seven eight nine ten"))

	words := strings.Fields(r.Working())
	if len(words) > cfg.WorkingSetCapWords {
		t.Fatalf("working has %d words, want <= %d", len(words), cfg.WorkingSetCapWords)
	}
}

func TestReconcileOverlapTailBoundedByK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverlapChars = 16
	r := New(cfg)

	r.Reconcile(seg("this is a moderately long sentence used to test the overlap tail bound"))
	if got := len([]rune(r.OverlapTail())); got > cfg.OverlapChars {
		t.Fatalf("OverlapTail length = %d, want <= %d", got, cfg.OverlapChars)
	}
}

func TestReconcilePromptTokensConfirmedOnly(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg)

	r.Reconcile(seg("alpha bravo charlie delta echo foxtrot"))
	tokens := r.PromptTokens()
	if len(tokens) == 0 {
		t.Fatal("expected prompt tokens to be populated from committed text")
	}
}
