package sales

import (
	"fmt"
	"time"
)

// DateKey formats a calendar day as the counter key, e.g. "20251101".
func DateKey(t time.Time) string {
	return t.Format("20060102")
}

// FormatSaleID builds the human-readable sale identifier from the day's
// counter value: S<YYYYMMDD>-<sequence>, zero-padded to at least three
// digits. Sequences past 999 widen the field rather than truncate.
func FormatSaleID(dateKey string, seq int) string {
	return fmt.Sprintf("S%s-%03d", dateKey, seq)
}
