package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/studiowebux/caller/internal/config"
	"github.com/studiowebux/caller/internal/envsubst"
	"github.com/studiowebux/caller/internal/executor"
	"github.com/studiowebux/caller/internal/filter"
	"github.com/studiowebux/caller/internal/logger"
	"github.com/studiowebux/caller/internal/types"
)

// Exit codes
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// UsageError reports bad command line input
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ExitCode maps a Run error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var usage *UsageError
	var invalid *executor.InvalidRequestError
	if errors.As(err, &usage) || errors.As(err, &invalid) {
		return ExitUsage
	}
	return ExitFailed
}

// Run executes one call in CLI mode and prints the result to stdout
func Run(ctx context.Context, opts Options, cfg *config.Config, log zerolog.Logger, stdout io.Writer) error {
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Load variables for expansion; env file values override the environment
	var fileVars map[string]string
	if opts.EnvFile != "" {
		vars, err := envsubst.LoadEnvFile(opts.EnvFile)
		if err != nil {
			return &UsageError{Err: fmt.Errorf("failed to load env file: %w", err)}
		}
		fileVars = vars
	}
	resolver := envsubst.NewResolver(fileVars, envsubst.Environ())

	d, err := BuildDescriptor(opts, resolver)
	if err != nil {
		return &UsageError{Err: err}
	}

	var query *filter.Query
	if opts.Query != "" {
		if query, err = filter.Compile(opts.Query); err != nil {
			return &UsageError{Err: err}
		}
	}

	defaultHeaders := resolver.ResolveMap(cfg.Request.Headers)

	// Warn about unresolved variables
	if unresolved := resolver.GetUnresolvedVariables(); len(unresolved) > 0 {
		log.Warn().Msgf("unresolved variables: %s", strings.Join(unresolved, ", "))
	}

	exec, err := executor.New(executor.Options{
		DefaultHeaders: defaultHeaders,
		TLS:            tlsConfig(opts),
		Logger:         &log,
	})
	if err != nil {
		return &UsageError{Err: err}
	}

	history, err := exec.Execute(ctx, d)
	if err != nil {
		var failed *executor.FailedCallError
		if errors.As(err, &failed) {
			log.Error().Interface("responses", redactHeaders(failed.Responses)).Msg(failed.Error())
		}
		return err
	}

	if opts.Quiet {
		return nil
	}

	output, err := render(history, opts, query, isTerminal(stdout))
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if _, err := io.WriteString(stdout, output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// render selects what to print: the query result, the last response, or the full history
func render(history types.History, opts Options, query *filter.Query, color bool) (string, error) {
	var value any = history

	if opts.Last || query != nil {
		last, ok := history.Last()
		if !ok {
			return "", nil
		}
		value = last
	}

	if query != nil {
		last := value.(types.Response)
		result, err := query.Apply(last.Body)
		if err != nil {
			return "", err
		}
		value = result
	}

	return FormatOutput(value, opts.Output, color && opts.Output == OutputText)
}

// redactHeaders returns a copy of history with sensitive response headers masked
func redactHeaders(history types.History) types.History {
	redacted := make(types.History, len(history))
	for i, response := range history {
		response.Headers = logger.Redact(response.Headers)
		redacted[i] = response
	}
	return redacted
}

func tlsConfig(opts Options) *types.TLSConfig {
	if opts.CACert == "" && opts.Cert == "" && opts.Key == "" && !opts.SkipVerify {
		return nil
	}
	return &types.TLSConfig{
		CertFile:           opts.Cert,
		KeyFile:            opts.Key,
		CAFile:             opts.CACert,
		InsecureSkipVerify: opts.SkipVerify,
	}
}
