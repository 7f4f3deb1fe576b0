package scanner

import (
	"context"
	"log/slog"
	"os"
	"regexp"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/spec"
)

// ProgressHeuristic estimates per-criterion completion as a percentage in
// [0,100]. Results are opaque to callers and need not be monotonic between
// calls.
type ProgressHeuristic interface {
	Progress(ctx context.Context, roots []string, criteria []spec.Criterion) (map[string]uint, error)
}

// ProgressFunc adapts a plain function to ProgressHeuristic.
type ProgressFunc func(ctx context.Context, roots []string, criteria []spec.Criterion) (map[string]uint, error)

// Progress implements ProgressHeuristic.
func (f ProgressFunc) Progress(ctx context.Context, roots []string, criteria []spec.Criterion) (map[string]uint, error) {
	return f(ctx, roots, criteria)
}

// KeywordHeuristic scores a criterion by where its id is mentioned:
// 50 points when an implementation file references it and 50 points when
// a test file references it.
type KeywordHeuristic struct {
	scanner *Scanner
}

// NewKeywordHeuristic creates a heuristic that reads the same files the
// scanner counts.
func NewKeywordHeuristic(extensions []string, logger *slog.Logger) *KeywordHeuristic {
	return &KeywordHeuristic{scanner: New(extensions, logger)}
}

// Progress implements ProgressHeuristic.
func (h *KeywordHeuristic) Progress(ctx context.Context, roots []string, criteria []spec.Criterion) (map[string]uint, error) {
	out := make(map[string]uint, len(criteria))
	if len(criteria) == 0 {
		return out, nil
	}

	patterns := make([]*regexp.Regexp, len(criteria))
	for i, c := range criteria {
		out[c.ID] = 0
		patterns[i] = regexp.MustCompile(`(^|[^A-Za-z0-9_-])` + regexp.QuoteMeta(c.ID) + `($|[^A-Za-z0-9_-])`)
	}

	inImpl := make([]bool, len(criteria))
	inTest := make([]bool, len(criteria))

	for _, root := range normalizeRoots(roots) {
		err := h.scanner.walk(ctx, root, func(path, rel string) {
			data, err := os.ReadFile(path)
			if err != nil {
				return
			}
			test := isTestFile(rel)
			for i, re := range patterns {
				if (test && inTest[i]) || (!test && inImpl[i]) {
					continue
				}
				if re.Match(data) {
					if test {
						inTest[i] = true
					} else {
						inImpl[i] = true
					}
				}
			}
		}, func(ScanError) {})
		if err != nil {
			return nil, err
		}
	}

	for i, c := range criteria {
		var pct uint
		if inImpl[i] {
			pct += 50
		}
		if inTest[i] {
			pct += 50
		}
		out[c.ID] = pct
	}
	return out, nil
}
