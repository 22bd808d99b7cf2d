// Package assertions checks HTTP responses against expectations.
//
// Then wraps a response; each Assert method returns nil or an error:
//
//	v := assertions.Then(resp)
//	v.AssertStatus(200)
//	v.AssertField("bookingdates.checkin", assertions.EqualTo("2018-01-01"))
//	v.AssertField("totalprice", assertions.Is(assertions.GreaterThan(100)))
//	v.AssertAbsent("bookingid")
//	v.AssertSchema(schema.File("booking.json"))
//
// Failed expectations are *AssertionError values, missing fields are
// *capture.FieldNotFoundError and schema failures are *schema.ValidationError.
// Matchers can also be built from operator names with ParseMatcher.
package assertions
