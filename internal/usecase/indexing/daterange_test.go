package indexing

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain"
)

func TestParseDateRange(t *testing.T) {
	dr, err := ParseDateRange("", "")
	if err != nil || dr != nil {
		t.Fatalf("empty = %v, %v", dr, err)
	}

	dr, err = ParseDateRange("2024-01-02", "2024-02-03T10:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if !dr.From.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("From = %v", dr.From)
	}
	if dr.To.Hour() != 10 {
		t.Errorf("To = %v", dr.To)
	}

	dr, err = ParseDateRange("2024-01-02", "")
	if err != nil || dr.To != nil || dr.From == nil {
		t.Errorf("open end = %+v, %v", dr, err)
	}

	for _, bad := range [][2]string{{"yesterday", ""}, {"2024-02-01", "2024-01-01"}} {
		if _, err := ParseDateRange(bad[0], bad[1]); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ParseDateRange(%q, %q) err = %v", bad[0], bad[1], err)
		}
	}
}
