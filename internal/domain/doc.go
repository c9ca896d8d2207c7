// Package domain recovers trip segment suggestions from third-party booking links.
//
// # Booking.com links
//
// Property pages look like:
//
//	https://www.booking.com/hotel/<cc>/[<place>/]<property-slug>[.<locale>].html?checkin=YYYY-MM-DD&checkout=YYYY-MM-DD
//
// The last path segment is the property slug ("the-rose-garden-apartments.en-gb.html"
// becomes "The Rose Garden Apartments"); the segment before it becomes the location
// label. Check-in is fixed at 15:00 and check-out at 11:00 local time.
//
// Price comes from the "price" query value when present, otherwise from the first
// parseable tail of the comma-separated "sr_pri_blocks" value:
//
//	995325609_372429847_4_0_0_1230343_27254  →  27254
//
// Tails of 1000 or more are treated as minor units and divided by 100 (272.54).
// This threshold is empirical.
//
// # Google Flights links
//
// Search parameters travel in the "tfs" and "tfu" query values as base64url
// protobuf messages. The schema is undocumented, so fields are recovered from a
// printable rendering of the decoded bytes (non-printable bytes become spaces):
//
//	airports  3 uppercase letters, first two distinct are origin and destination
//	dates     YYYY-MM-DD, distinct, in order
//	times     HH:MM first, then compact HHMM, minus tokens that collide with a
//	          date part (year, ddMM, MMdd) or the flight number
//
// Missing times default to 09:00 departure and 11:50 arrival.
//
// Fares are not stored as text. Candidates are gathered from bare 2-6 digit
// numbers and from protobuf varints inside any embedded base64url token, then
// filtered to the range [30, 20000] with the same collision rules. A cost is
// only reported when exactly one candidate survives.
//
// # Geocoding
//
// Both parsers enrich locations through a [Geocoder], taking the first result.
// Geocoding is best-effort: failures, including context cancellation, are logged
// and the suggestion is returned without the location.
package domain
