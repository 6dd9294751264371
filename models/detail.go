package models

// DetailRecord is the raw markup fetched for one listing link. When the
// fetch failed both pages hold FailedMarker and Failure says why.
type DetailRecord struct {
	DetailsPage   string
	AmenitiesPage string
	Link          string
	Failure       FailureKind
}

// FailedRecord builds the sentinel record for a link whose fetch failed.
func FailedRecord(link string, kind FailureKind) DetailRecord {
	if kind == FailureNone {
		kind = FailureFetch
	}
	return DetailRecord{
		DetailsPage:   FailedMarker,
		AmenitiesPage: FailedMarker,
		Link:          link,
		Failure:       kind,
	}
}

// OK reports whether the record holds fetched markup.
func (d DetailRecord) OK() bool { return d.Failure == FailureNone }
