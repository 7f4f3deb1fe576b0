package budget

// ProgressEntry is the completion estimate for one acceptance criterion.
type ProgressEntry struct {
	CriterionID string `json:"criterion_id"`
	Percentage  uint   `json:"percentage"`
}

// ProgressTracker holds per-criterion completion and its mean.
type ProgressTracker struct {
	entries []ProgressEntry
}

// NewProgressTracker builds a tracker for criteria in declaration order.
// Criteria missing from values count as 0; values above 100 are clamped.
func NewProgressTracker(criteria []string, values map[string]uint) *ProgressTracker {
	entries := make([]ProgressEntry, 0, len(criteria))
	for _, id := range criteria {
		entries = append(entries, ProgressEntry{CriterionID: id, Percentage: values[id]})
	}
	t := &ProgressTracker{}
	t.Replace(entries)
	return t
}

// Replace swaps in a complete set of entries.
func (t *ProgressTracker) Replace(entries []ProgressEntry) {
	next := make([]ProgressEntry, len(entries))
	for i, e := range entries {
		if e.Percentage > 100 {
			e.Percentage = 100
		}
		next[i] = e
	}
	t.entries = next
}

// Entries returns a copy of the entries in declaration order.
func (t *ProgressTracker) Entries() []ProgressEntry {
	if t == nil {
		return nil
	}
	out := make([]ProgressEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Map returns the percentages keyed by criterion id.
func (t *ProgressTracker) Map() map[string]uint {
	out := make(map[string]uint)
	if t == nil {
		return out
	}
	for _, e := range t.entries {
		out[e.CriterionID] = e.Percentage
	}
	return out
}

// Len returns the number of tracked criteria.
func (t *ProgressTracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Overall returns the mean percentage, or 0 when no criteria exist.
func (t *ProgressTracker) Overall() float64 {
	if t == nil || len(t.entries) == 0 {
		return 0
	}
	var sum uint
	for _, e := range t.entries {
		sum += e.Percentage
	}
	return float64(sum) / float64(len(t.entries))
}
