// Package scenario reads and runs multi-step request scenarios.
//
// A scenario is a YAML file listing steps. Each step describes a request,
// the expectations on its response and the values to capture from it:
//
//	baseUri: https://restful-booker.herokuapp.com
//	steps:
//	  - name: createBooking
//	    method: POST
//	    path: /booking
//	    body: {firstname: Jim, totalprice: 111}
//	    expect:
//	      status: 200
//	      fields:
//	        - {path: booking.totalprice, op: ">", value: 100}
//	    capture:
//	      bookingid: bookingid
//	  - name: getBooking
//	    path: /booking/{id}
//	    dependsOn: [createBooking]
//	    pathParams: {id: "{{createBooking.bookingid}}"}
//
// Steps run one at a time in dependency order. A step whose dependency did
// not pass is skipped. Response times are summarized with an HDR histogram.
package scenario
