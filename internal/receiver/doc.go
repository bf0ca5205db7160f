/*
Package receiver provides a small HTTP server used to exercise the caller.

# Routes

	GET  /status/health        {"status": "UP"}
	GET  /admin/count/{id}     {"count": n} for a request id
	POST /admin/clear/{id}     forget one request id
	POST /admin/reset          forget every request id
	ALL  /noauth[/subpath]     no authentication
	ALL  /basic[/subpath]      HTTP basic auth, any non-empty credentials
	ALL  /bearer[/subpath]     bearer token, any non-empty token

ALL means GET, PUT, POST, PATCH and DELETE; other methods get 405.
Unauthenticated requests get 401 with a WWW-Authenticate challenge.

# Query Parameters

The echo routes honor:
  - status: response status (default per method, see Config.DefaultCodes)
  - wait: seconds to wait before responding
  - fails: respond 500 while this request id has been seen at most this many times
  - requestId: request id when the X-Request-Id header is absent

The response body is {"subpath": "/rest/of/path"} and the request id is
echoed in the X-Request-Id header. Requests without an id get a random one,
so "fails" only makes sense with an explicit id.

# Configuration

Config is loaded from YAML or JSON with LoadConfig and written with
SaveConfig. Missing fields take DefaultConfig values.

# Thread Safety

Counts and request logs are guarded by mutexes; the server handles
requests concurrently.
*/
package receiver
