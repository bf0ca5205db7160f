/*
Package cli implements the caller command line: it turns flags into a
types.Descriptor, runs it through the executor and prints the outcome.

# Input

Params and headers are key=value pairs; a value wrapped in double quotes may
contain spaces. The body is JSON, and JSONC comments and trailing commas are
accepted. Host, path, params, header values, credentials and string values in
the body are expanded from the environment ($NAME or ${NAME}) and the optional
--env-file. Unknown variables are left as written and reported as a warning.

Basic auth credentials must look like user:password and are base64 encoded
after expansion. Bearer tokens are sent as given.

# Output

On success the attempt history is printed to stdout as json (default), yaml
or text. --last prints only the final response; --query applies a JMESPath
expression to the final response body. Text output on a terminal is colored.

# Exit Codes

	0  success
	1  the last status matched the fail codes, or the call was interrupted
	2  invalid flags, invalid request, or unreadable TLS/env files
*/
package cli
