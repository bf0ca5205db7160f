/*
Package codes compiles HTTP status code specifications into matchers.

# Specifications

A specification is one of:
  - 000: no connection (transport failure, status 0)
  - an exact code: 404, 503
  - a prefix: 50X matches 500 through 509
  - a class: 5XX matches 500 through 599
  - an infix: 5X3 matches 503, 513, ... 593

String forms must match ^(000|[45][0-9]{2}|[45][0-9xX]{2}|[45][xX]{2})$.
Integer forms are zero-padded; only 0 and 100..599 are kept, anything else is dropped.

# Matching

A Matcher compares the zero-padded 3-digit candidate against every alternative.
Matching is whole-string only: 50X never matches 5001 or 510.

	retryOn := codes.Compile(codes.Defaults()) // 000|50X
	retryOn.Match(503) // true
	retryOn.Match(0)   // true
	retryOn.Match(510) // false

An empty list compiles to a matcher for 000 only.
*/
package codes
