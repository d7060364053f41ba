package syncer

// Classification grades a finished sync against the collection's declared
// item count. It is advisory only.
type Classification int

const (
	// ClassComplete means every declared item (or more) was retrieved.
	ClassComplete Classification = iota
	// ClassEmpty means nothing was retrieved despite a non-zero declared count.
	ClassEmpty
	// ClassMajorityMissing means less than half of the declared count arrived.
	ClassMajorityMissing
	// ClassPartial means at least half, but not all, of the declared count arrived.
	ClassPartial
)

func (c Classification) String() string {
	switch c {
	case ClassComplete:
		return "complete"
	case ClassEmpty:
		return "empty"
	case ClassMajorityMissing:
		return "majority-missing"
	case ClassPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Classify grades retrieved against declared.
func Classify(declared int64, retrieved int) Classification {
	if int64(retrieved) >= declared {
		return ClassComplete
	}
	if retrieved == 0 {
		return ClassEmpty
	}
	if float64(retrieved) < float64(declared)*0.5 {
		return ClassMajorityMissing
	}
	return ClassPartial
}
