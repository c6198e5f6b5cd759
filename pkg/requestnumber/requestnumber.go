// Package requestnumber formats the human-readable request identifiers
// allocated on request creation: REQ-<DDMONYY>-<NN>, where NN is a two-digit
// sequence scoped to the calendar day (REQ-18JAN26-02).
package requestnumber

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "02Jan06"

// Prefix returns the day-scoped prefix, e.g. "REQ-18JAN26-".
func Prefix(t time.Time) string {
	return "REQ-" + strings.ToUpper(t.Format(dateLayout)) + "-"
}

// Format renders the full number for the given day and sequence.
func Format(t time.Time, seq uint64) string {
	return fmt.Sprintf("%s%02d", Prefix(t), seq)
}
