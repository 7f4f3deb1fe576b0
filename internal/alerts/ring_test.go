package alerts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func alertsWithIDs(ids ...string) []Alert {
	out := make([]Alert, len(ids))
	for i, id := range ids {
		out[i] = Alert{ID: id, Severity: SeverityWarning}
	}
	return out
}

func ids(alerts []Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func TestNewRing(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"custom", 3, 3},
		{"zero uses default", 0, DefaultCapacity},
		{"negative uses default", -1, DefaultCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(tt.capacity)
			for i := 0; i < tt.want+2; i++ {
				r.Add(Alert{ID: fmt.Sprint(i)})
			}
			assert.Equal(t, tt.want, r.Len())
		})
	}
}

func TestRing_FIFOEviction(t *testing.T) {
	r := NewRing(3)
	r.Add(alertsWithIDs("a", "b")...)
	r.Add(alertsWithIDs("c", "d", "e")...)

	assert.Equal(t, []string{"c", "d", "e"}, ids(r.List()))
	assert.Equal(t, 3, r.Len())
}

func TestRing_SetCapacity(t *testing.T) {
	r := NewRing(5)
	r.Add(alertsWithIDs("a", "b", "c", "d")...)

	r.SetCapacity(2)
	assert.Equal(t, []string{"c", "d"}, ids(r.List()))

	r.SetCapacity(10)
	r.Add(alertsWithIDs("e")...)
	assert.Equal(t, []string{"c", "d", "e"}, ids(r.List()))
}

func TestRing_ListIsCopy(t *testing.T) {
	r := NewRing(3)
	r.Add(alertsWithIDs("a")...)
	list := r.List()
	list[0].ID = "mutated"
	assert.Equal(t, []string{"a"}, ids(r.List()))
}

func TestFilter(t *testing.T) {
	all := []Alert{
		{ID: "1", Severity: SeverityInfo},
		{ID: "2", Severity: SeverityWarning},
		{ID: "3", Severity: SeverityCritical},
		{ID: "4", Severity: SeverityWarning},
		{ID: "5", Severity: SeverityWarning},
	}

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(Filter{}.Apply(all)))
	assert.Equal(t, []string{"2", "4", "5"}, ids(Filter{Severity: SeverityWarning}.Apply(all)))
	assert.Equal(t, []string{"4", "5"}, ids(Filter{Severity: SeverityWarning, Limit: 2}.Apply(all)))
	assert.Equal(t, []string{"5"}, ids(Filter{Limit: 1}.Apply(all)))
	assert.Empty(t, Filter{Severity: SeverityCritical, Limit: 5}.Apply(all[:2]))
}

func TestParseSeverity(t *testing.T) {
	for _, s := range []string{"", "info", "warning", "critical"} {
		got, err := ParseSeverity(s)
		assert.NoError(t, err)
		assert.Equal(t, Severity(s), got)
	}
	_, err := ParseSeverity("fatal")
	assert.Error(t, err)
}
