package trade

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// InvoiceNumberPrefix prefixes every invoice number (INV_0001)
	InvoiceNumberPrefix = "INV_"
	// PurchaseNumberPrefix starts every purchase number (PO-26-10-0001)
	PurchaseNumberPrefix = "PO"

	sequenceWidth = 4
)

// NextSequenceNumber returns prefix followed by the highest numeric suffix
// found under prefix plus one, zero padded to four digits. Numbers that do
// not start with prefix or whose suffix is not numeric are ignored.
func NextSequenceNumber(prefix string, existing []string) string {
	max := 0
	for _, number := range existing {
		if n, ok := SequenceSuffix(prefix, number); ok && n > max {
			max = n
		}
	}
	return FormatSequence(prefix, max+1)
}

// SequenceSuffix parses the numeric part that follows prefix
func SequenceSuffix(prefix, number string) (int, bool) {
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(number[len(prefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FormatSequence renders prefix + n padded to four digits
func FormatSequence(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, sequenceWidth, n)
}

// MonthPrefix returns the per-month purchase prefix, e.g. "PO-26-10-"
func MonthPrefix(base string, at time.Time) string {
	return fmt.Sprintf("%s-%s-", base, at.Format("06-01"))
}
