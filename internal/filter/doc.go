// Package filter applies JMESPath queries to call output (the --query flag).
package filter
