package domain

// AvailabilityClass is the three-way availability bucket.
type AvailabilityClass int

const (
	ClassGreen  AvailabilityClass = 0 // ratio >= 0.6
	ClassYellow AvailabilityClass = 1 // 0.3 <= ratio < 0.6
	ClassRed    AvailabilityClass = 2 // ratio < 0.3
)

// NumClasses is the number of availability classes.
const NumClasses = 3

// Bucket thresholds on availability ratio.
const (
	GreenThreshold  = 0.6
	YellowThreshold = 0.3
)

// HorizonHours is the forward offset of the prediction target.
const HorizonHours = 6

// ClassifyRatio buckets an availability ratio.
func ClassifyRatio(ratio float64) AvailabilityClass {
	switch {
	case ratio >= GreenThreshold:
		return ClassGreen
	case ratio >= YellowThreshold:
		return ClassYellow
	default:
		return ClassRed
	}
}

// String returns the label used in API responses.
func (c AvailabilityClass) String() string {
	switch c {
	case ClassGreen:
		return "green"
	case ClassYellow:
		return "yellow"
	case ClassRed:
		return "red"
	default:
		return "unknown"
	}
}

// IsValid checks if the class is one of the three buckets.
func (c AvailabilityClass) IsValid() bool {
	return c >= ClassGreen && c <= ClassRed
}

// ParseClass converts a class index into an AvailabilityClass.
func ParseClass(v int) (AvailabilityClass, error) {
	c := AvailabilityClass(v)
	if !c.IsValid() {
		return 0, ErrUnknownClass
	}
	return c, nil
}
