/*
Package types defines the data structures shared by the CLI, the executor and the receiver.

# Request Types

Descriptor:
  - Fully resolved request (no variable substitution happens later)
  - Method, host, port, path, query parameters, headers
  - Optional JSON body (nil means absent)
  - Per-attempt timeout and retry count
  - Retry and fail code specifications (nil means the defaults: 000 and 50X)
  - Insecure flag selecting http over https

TLSConfig:
  - Client certificates (mTLS)
  - CA certificates
  - InsecureSkipVerify flag

# Response Types

Response:
  - One attempt's outcome
  - Duration in seconds, status (0 when no response was obtained)
  - Headers (empty on transport failure)
  - Body: parsed JSON, raw text, or {"error": kind, "message": text}

History:
  - Every attempt of a call, oldest first
  - Never truncated

# Field Tags

All types use JSON and YAML tags for output rendering. Descriptor carries
go-playground/validator tags checked by the CLI before execution.

# Example Structures

Response:
	{
	  "duration": 0.012,
	  "status": 201,
	  "headers": {
	    "Content-Type": "application/json",
	    "X-Request-Id": "0"
	  },
	  "body": {"subpath": ""}
	}

Transport failure:
	{
	  "duration": 0.001,
	  "status": 0,
	  "headers": {},
	  "body": {"error": "ConnectionRefused", "message": "dial tcp 127.0.0.1:9: connect: connection refused"}
	}
*/
package types
