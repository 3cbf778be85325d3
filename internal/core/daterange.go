package core

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// NewDateRange builds a validated range of calendar days.
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}.Normalized()
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Normalized drops the time of day and location from both bounds, keeping
// the calendar day each bound names in its own location. Zero bounds stay zero.
func (r DateRange) Normalized() DateRange {
	if !r.Start.IsZero() {
		r.Start = DateOf(r.Start.Time)
	}
	if !r.End.IsZero() {
		r.End = DateOf(r.End.Time)
	}
	return r
}

func (r DateRange) Validate() error {
	r = r.Normalized()
	if r.Start.IsZero() {
		return &ValidationError{Field: "start", Err: ErrInvalidDate}
	}
	if r.End.IsZero() {
		return &ValidationError{Field: "end", Err: ErrInvalidDate}
	}
	if r.End.Before(r.Start) {
		return &ValidationError{Field: "range", Err: ErrInvalidRange}
	}
	return nil
}

// Contains reports whether d falls inside the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	r = r.Normalized()
	d = DateOf(d.Time)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Key identifies the range in cache keys. A nil range covers everything.
func (r *DateRange) Key() string {
	if r == nil {
		return "all"
	}
	n := r.Normalized()
	return n.Start.String() + ".." + n.End.String()
}
