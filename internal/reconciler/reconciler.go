package reconciler

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/jordan-clayton/ribble-whisper/internal/model"
)

// Config holds the tunable thresholds governing overlap matching and
// the working-hypothesis holdback.
type Config struct {
	// OverlapChars is K, the number of trailing characters of
	// confirmed followed by working that are matched against the next
	// segment.
	OverlapChars int
	// MinOverlap is the minimum character length a matched run must
	// reach before it is trusted.
	MinOverlap int
	// WorkingTailWords is N, the number of trailing words held back
	// in working rather than committed immediately.
	WorkingTailWords int
	// PromptTokenCap bounds the conditioning-token queue fed back to
	// the model.
	PromptTokenCap int
	// WorkingSetCapWords bounds working independently of
	// WorkingTailWords, so a pathological model that never stops
	// growing one segment cannot grow working unboundedly between
	// commits.
	WorkingSetCapWords int
	// StrippedTokens lists model-emitted artifacts normalize removes.
	// Defaults to DefaultStrippedTokens when nil.
	StrippedTokens []string
}

// DefaultConfig returns the defaults named in the configuration table
// plus the working-set cap supplement.
func DefaultConfig() Config {
	return Config{
		OverlapChars:        128,
		MinOverlap:          8,
		WorkingTailWords:    3,
		PromptTokenCap:      64,
		WorkingSetCapWords:  25,
		StrippedTokens:      DefaultStrippedTokens,
	}
}

// Reconciler merges a stream of decoded segments into a monotonic
// confirmed transcript and a replaceable working hypothesis.
//
// Matching is done at word granularity rather than raw characters:
// the longest common run of whole words between the trailing K
// characters of confirmed followed by working and the incoming
// segment's text is
// computed, which gets word-boundary alignment for free instead of
// requiring a separate boundary check around a character-level LCS.
type Reconciler struct {
	mu  sync.Mutex
	cfg Config

	confirmed      string
	working        string
	overlapTail    string
	promptTokens   []model.TokenID
	lastOverlapHit bool
}

// New constructs a Reconciler.
func New(cfg Config) *Reconciler {
	if cfg.StrippedTokens == nil {
		cfg.StrippedTokens = DefaultStrippedTokens
	}
	return &Reconciler{cfg: cfg}
}

// Confirmed returns the committed transcript accumulated so far.
func (r *Reconciler) Confirmed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmed
}

// Working returns the current tentative continuation.
func (r *Reconciler) Working() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.working
}

// OverlapTail returns the last K characters of confirmed.
func (r *Reconciler) OverlapTail() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlapTail
}

// LastOverlapHit reports whether the most recent Reconcile call found
// a word-aligned match against the confirmed tail, for metrics.
func (r *Reconciler) LastOverlapHit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastOverlapHit
}

// PromptTokens returns the bounded queue of tokens derived from
// confirmed text, for feeding back into SpeechModel.Transcribe as
// conditioning context. Per the confirmed-only resolution, these are
// never derived from working.
func (r *Reconciler) PromptTokens() []model.TokenID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.TokenID, len(r.promptTokens))
	copy(out, r.promptTokens)
	return out
}

// Reconcile merges one incoming decoded segment into the transcript
// state and returns the resulting confirmed/working snapshot.
func (r *Reconciler) Reconcile(seg model.DecodedSegment) (confirmed, working string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sNorm := normalize(seg.Text, r.cfg.StrippedTokens)
	if sNorm == "" {
		return r.confirmed, r.working
	}

	var newlyCommitted string

	// Match against confirmed followed by working: the words held back
	// in working are the ones an overlapping next segment repeats. On a
	// match, the words of the segment after the matched run are appended
	// after working before the holdback split is applied.
	tail := lastKChars(appendWithSpace(r.confirmed, r.working), r.cfg.OverlapChars)
	matchEnd, ok := findWordAlignedMatch(tail, sNorm, r.cfg.MinOverlap)
	r.lastOverlapHit = ok
	if ok {
		sWords := splitWords(sNorm)
		cut := strings.Join(sWords[matchEnd:], " ")
		commitPrefix, workingPart := splitTailWords(appendWithSpace(r.working, cut), r.cfg.WorkingTailWords)
		r.confirmed = appendWithSpace(r.confirmed, commitPrefix)
		r.working = workingPart
		newlyCommitted = commitPrefix
	} else if r.confirmed == "" {
		commitPrefix, workingPart := splitTailWords(sNorm, r.cfg.WorkingTailWords)
		r.confirmed = appendWithSpace(r.confirmed, commitPrefix)
		r.working = workingPart
		newlyCommitted = commitPrefix
	} else {
		flushed := r.working
		commitPrefix, workingPart := splitTailWords(sNorm, r.cfg.WorkingTailWords)
		r.confirmed = appendWithSpace(appendWithSpace(r.confirmed, flushed), commitPrefix)
		r.working = workingPart
		newlyCommitted = appendWithSpace(flushed, commitPrefix)
	}

	if overflow := r.enforceWorkingSetCap(); overflow != "" {
		newlyCommitted = appendWithSpace(newlyCommitted, overflow)
	}

	r.overlapTail = lastKChars(r.confirmed, r.cfg.OverlapChars)
	r.appendPromptTokens(newlyCommitted)

	return r.confirmed, r.working
}

// enforceWorkingSetCap trims working down to WorkingSetCapWords,
// committing any overflow (from the front) into confirmed so nothing
// spoken is silently lost. It returns the committed overflow text, if
// any.
func (r *Reconciler) enforceWorkingSetCap() string {
	if r.cfg.WorkingSetCapWords <= 0 {
		return ""
	}
	words := splitWords(r.working)
	if len(words) <= r.cfg.WorkingSetCapWords {
		return ""
	}
	overflow := strings.Join(words[:len(words)-r.cfg.WorkingSetCapWords], " ")
	r.working = strings.Join(words[len(words)-r.cfg.WorkingSetCapWords:], " ")
	r.confirmed = appendWithSpace(r.confirmed, overflow)
	return overflow
}

// Flush commits whatever remains in working into confirmed and
// clears working. Used by the transcriber worker on cooperative
// shutdown so a trailing held-back phrase is not silently dropped.
func (r *Reconciler) Flush() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.working != "" {
		r.confirmed = appendWithSpace(r.confirmed, r.working)
		r.appendPromptTokens(r.working)
		r.working = ""
	}
	r.overlapTail = lastKChars(r.confirmed, r.cfg.OverlapChars)
	return r.confirmed
}

// Reset clears all transcript state, returning the Reconciler to the
// condition New left it in.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = ""
	r.working = ""
	r.overlapTail = ""
	r.promptTokens = nil
}

func (r *Reconciler) appendPromptTokens(committedText string) {
	if committedText == "" || r.cfg.PromptTokenCap <= 0 {
		return
	}
	for _, w := range splitWords(committedText) {
		r.promptTokens = append(r.promptTokens, tokenizeWord(w))
	}
	if len(r.promptTokens) > r.cfg.PromptTokenCap {
		r.promptTokens = r.promptTokens[len(r.promptTokens)-r.cfg.PromptTokenCap:]
	}
}

// tokenizeWord derives a stable pseudo-token id for a committed word.
// The model's real vocabulary is out of scope (SpeechModel owns
// actual tokenization); this only needs to be a deterministic opaque
// id so the prompt-feedback loop has something concrete to carry.
func tokenizeWord(word string) model.TokenID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return model.TokenID(h.Sum32())
}

func appendWithSpace(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

func lastKChars(s string, k int) string {
	if k <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= k {
		return s
	}
	return string(r[len(r)-k:])
}

// splitTailWords splits text into (everything but the last n words,
// the last n words), joined back into strings. If text has n or
// fewer words, the whole text is held back.
func splitTailWords(text string, n int) (commitPrefix, tail string) {
	words := splitWords(text)
	if n <= 0 || len(words) <= n {
		return "", text
	}
	return strings.Join(words[:len(words)-n], " "), strings.Join(words[len(words)-n:], " ")
}

// findWordAlignedMatch finds the longest contiguous run of identical
// words shared between tail and s, subject to a minimum character
// length. It returns the word index in s immediately after the end
// of the match.
func findWordAlignedMatch(tail, s string, minOverlapChars int) (matchEndWordIdx int, found bool) {
	tailWords := splitWords(tail)
	sWords := splitWords(s)
	if len(tailWords) == 0 || len(sWords) == 0 {
		return 0, false
	}

	bestLen := 0
	bestEndInS := 0

	dpPrev := make([]int, len(sWords)+1)
	dpCur := make([]int, len(sWords)+1)
	for i := 1; i <= len(tailWords); i++ {
		for j := 1; j <= len(sWords); j++ {
			if tailWords[i-1] == sWords[j-1] {
				dpCur[j] = dpPrev[j-1] + 1
				if dpCur[j] >= bestLen {
					bestLen = dpCur[j]
					bestEndInS = j
				}
			} else {
				dpCur[j] = 0
			}
		}
		dpPrev, dpCur = dpCur, dpPrev
		for j := range dpCur {
			dpCur[j] = 0
		}
	}

	if bestLen == 0 {
		return 0, false
	}

	matchedWords := sWords[bestEndInS-bestLen : bestEndInS]
	charLen := 0
	for _, w := range matchedWords {
		charLen += len(w)
	}
	charLen += bestLen - 1 // spaces between matched words
	if charLen < minOverlapChars {
		return 0, false
	}
	return bestEndInS, true
}
