package alerts

// DefaultCapacity is the default number of active alerts retained.
const DefaultCapacity = 10

// Ring is the bounded, insertion-ordered set of active alerts. When full,
// the oldest alert is evicted regardless of severity.
//
// Ring is not safe for concurrent use; it is owned by a single pipeline.
type Ring struct {
	alerts   []Alert
	capacity int
}

// NewRing creates a ring holding at most capacity alerts.
// A non-positive capacity selects DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		alerts:   make([]Alert, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of retained alerts.
func (r *Ring) Len() int {
	return len(r.alerts)
}

// Add appends alerts in order and evicts the oldest beyond capacity.
func (r *Ring) Add(alerts ...Alert) {
	r.alerts = append(r.alerts, alerts...)
	r.truncate()
}

// SetCapacity changes the capacity, evicting the oldest alerts if the ring
// is now over capacity.
func (r *Ring) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r.capacity = capacity
	r.truncate()
}

func (r *Ring) truncate() {
	if len(r.alerts) <= r.capacity {
		return
	}
	// Enforce the window by dropping from the front.
	copy(r.alerts, r.alerts[len(r.alerts)-r.capacity:])
	r.alerts = r.alerts[:r.capacity]
}

// List returns a copy of the active alerts, oldest first.
func (r *Ring) List() []Alert {
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Filter selects alerts for the alert feed.
type Filter struct {
	// Severity restricts results to one severity. Empty means all.
	Severity Severity
	// Limit keeps only the most recent N matches. Zero means no limit.
	Limit int
}

// Apply filters alerts (oldest first) and returns the matches, oldest first.
func (f Filter) Apply(alerts []Alert) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		out = append(out, a)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
