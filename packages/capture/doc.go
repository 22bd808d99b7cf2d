// Package capture extracts values from HTTP responses.
//
// Body paths use gjson syntax with bracket indexes accepted as well, so
// "bookingdates.checkin", "items[0].tags[1]" and "[0].bookingid" all work.
// A path that does not exist is reported as a *FieldNotFoundError, never as
// a nil value.
//
// Captured values feed later requests in a scenario via {{name}}.
package capture
