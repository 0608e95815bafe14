package model

// DateBucket selects a relative date range for the ledger.
type DateBucket string

const (
	BucketAll       DateBucket = "all"
	BucketToday     DateBucket = "today"
	BucketThisWeek  DateBucket = "this_week"
	BucketThisMonth DateBucket = "this_month"
)

// LedgerFilter is the session-local predicate set applied to the cached
// appointment list. Zero values mean "no restriction".
type LedgerFilter struct {
	Search   string
	Status   BookingStatus
	Type     BookingType
	Priority BookingPriority
	Bucket   DateBucket
}

// IsZero reports whether the filter passes everything through.
func (f LedgerFilter) IsZero() bool {
	return f.Search == "" && f.Status == "" && f.Type == "" &&
		f.Priority == "" && (f.Bucket == "" || f.Bucket == BucketAll)
}
