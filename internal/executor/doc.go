/*
Package executor sends one HTTP call with retries and classifies the outcome.

# Overview

Execute takes a fully resolved types.Descriptor and:
  - Validates it (GET and DELETE cannot carry a body)
  - Serializes the JSON body ({} when a POST, PUT or PATCH has none)
  - Sends the request, retrying with exponential backoff while the status
    matches the retry codes and retries remain
  - Checks the last status against the fail codes

Every attempt, successful or not, is recorded in the returned types.History.

# Status Codes

Retry and fail codes are codes.Spec patterns ("503", "50X", "4XX", "4X4")
plus 000 for "no response". A nil code list means codes.Defaults()
(000 and 50X); an empty list matches only 000.

# Backoff

The delay after attempt k (0-based) is 2^k seconds plus a uniform jitter
in [0, 0.5) seconds. Sleep and Jitter can be replaced through Options.

# Transport Failures

When no HTTP response is obtained (timeout, refused connection, DNS, TLS)
the attempt is recorded with status 0 and a body of the form

	{"error": "ConnectionRefused", "message": "dial tcp ...: connection refused"}

The error kind comes from Classify and never escapes as a Go error.

# Error Handling

Execute returns:
  - *InvalidRequestError before any network I/O for rejected descriptors
  - *FailedCallError when the last status matches the fail codes; the
    history is returned too and is also available on the error
  - the context error, wrapped, when ctx is cancelled between or during attempts

# Example Usage

	exec, err := executor.New(executor.Options{Logger: &log})
	if err != nil {
		return err
	}

	history, err := exec.Execute(ctx, types.Descriptor{
		Method:   types.MethodGet,
		Host:     "localhost",
		Port:     8080,
		Path:     "/noauth",
		Timeout:  60 * time.Second,
		Retries:  3,
		Insecure: true,
	})

	var failed *executor.FailedCallError
	if errors.As(err, &failed) {
		fmt.Printf("failed after %d attempts\n", failed.Attempts)
	}

# Thread Safety

An Executor holds no per-call state; Execute is safe to call concurrently.
*/
package executor
