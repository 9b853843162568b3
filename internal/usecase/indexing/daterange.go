package indexing

import (
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDateRange parses optional RFC3339 or YYYY-MM-DD bounds. Both empty
// yields nil.
func ParseDateRange(start, end string) (*DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	var dr DateRange
	var err error
	if dr.From, err = parseDate("start date", start); err != nil {
		return nil, err
	}
	if dr.To, err = parseDate("end date", end); err != nil {
		return nil, err
	}
	if dr.From != nil && dr.To != nil && dr.To.Before(*dr.From) {
		return nil, domain.Validationf("end date %s is before start date %s", end, start)
	}
	return &dr, nil
}

func parseDate(what, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Validationf("%s %q is neither RFC3339 nor YYYY-MM-DD", what, s)
}
