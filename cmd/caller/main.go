package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/studiowebux/caller/internal/cli"
	"github.com/studiowebux/caller/internal/config"
	"github.com/studiowebux/caller/internal/executor"
	"github.com/studiowebux/caller/internal/logger"
	"github.com/studiowebux/caller/internal/receiver"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// failed calls are already logged with their history
		var failed *executor.FailedCallError
		if !errors.As(err, &failed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "caller -u <host> [flags]",
	Short: "Caller - HTTP client with retries",
	Long: `Caller sends one HTTP request and retries it with exponential backoff
while the response status matches the retry codes.

Status codes are exact ("503"), a decade ("50X"), a class ("4XX"), a
fixed last digit ("4X4"), or 000 for no response. The call fails when the
last status matches the fail codes.

Host, path, params, headers, credentials and body may reference
environment variables ($NAME or ${NAME}).

Examples:
  caller -u localhost -p 8080 -k -l /noauth
  caller -u api.example.com -l users -m post -b '{"name": "x"}'
  caller -u $API_HOST -a bearer -c '$TOKEN' -r 3 -C 429,50X
  caller -u localhost -k -q status=404 -f 4XX --last -o yaml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return &cli.UsageError{Err: fmt.Errorf("unexpected arguments: %v", args)}
		}
		return nil
	},
	RunE: runCall,
}

var receiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Start the test receiver HTTP server",
	Long: `Start a small HTTP server for exercising caller.

Routes: /status/health, /admin/count/{id}, /admin/clear/{id}, /admin/reset,
and /noauth, /basic, /bearer (each with an optional subpath) honoring the
status, wait, fails and requestId query parameters.

HOST and PORT environment variables override the config file.`,
	Args: cobra.NoArgs,
	RunE: runReceiver,
}

// Flags for the root command
var (
	flagOpts       cli.Options
	flagConfigPath string
)

// Flags for receiver
var (
	receiverConfigPath  string
	receiverWriteConfig string
	receiverHost        string
	receiverPort        int
)

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagOpts.Host, "host", "u", "", "Host to call (can use env vars)")
	f.IntVarP(&flagOpts.Port, "port", "p", 0, "Port listening on host (default 80 with --insecure, else 443)")
	f.StringVarP(&flagOpts.Path, "path", "l", "", "Resource path (can use env vars)")
	f.StringArrayVarP(&flagOpts.Params, "params", "q", nil, "Query parameter as key=value, can be repeated")
	f.StringVarP(&flagOpts.Method, "method", "m", "get", "HTTP method (get/post/put/patch/delete)")
	f.StringVarP(&flagOpts.Auth, "auth", "a", "", "Type of HTTP auth to use (basic/bearer)")
	f.StringVarP(&flagOpts.Credentials, "credentials", "c", "", "Credentials for HTTP auth (username:password or token, can use env vars)")
	f.StringArrayVarP(&flagOpts.Headers, "headers", "H", nil, "Additional header as key=value, can be repeated (can use env vars)")
	f.StringVarP(&flagOpts.Body, "body", "b", "", "Request body as JSON, comments allowed (can use env vars)")
	f.Float64VarP(&flagOpts.Timeout, "timeout", "t", 60, "Timeout in seconds (per request)")
	f.IntVarP(&flagOpts.Retries, "retries", "r", 0, "Number of retries")
	f.StringSliceVarP(&flagOpts.RetryOn, "retry-on-codes", "C", []string{"000", "50X"}, "HTTP codes to retry on, comma separated or repeated")
	f.StringSliceVarP(&flagOpts.FailOn, "fail-on-codes", "f", []string{"000", "50X"}, "HTTP codes to fail on, comma separated or repeated")
	f.BoolVarP(&flagOpts.Insecure, "insecure", "k", false, "Don't use TLS (plain HTTP)")
	f.BoolVar(&flagOpts.Quiet, "quiet", false, "Don't print the responses")
	f.BoolVar(&flagOpts.Last, "last", false, "Print only the last response")
	f.StringVarP(&flagOpts.Output, "output", "o", cli.OutputJSON, "Output format (json/yaml/text)")
	f.StringVar(&flagOpts.Query, "query", "", "JMESPath expression applied to the last response body")
	f.StringVar(&flagOpts.EnvFile, "env-file", "", "Load variables for expansion from file")
	f.StringVar(&flagConfigPath, "config", "", "Config file (default $"+config.PathEnv+")")
	f.StringVar(&flagOpts.CACert, "cacert", "", "CA certificate file for server verification")
	f.StringVar(&flagOpts.Cert, "cert", "", "Client certificate file (mTLS)")
	f.StringVar(&flagOpts.Key, "key", "", "Client private key file (mTLS)")
	f.BoolVar(&flagOpts.SkipVerify, "skip-verify", false, "Skip server certificate verification")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &cli.UsageError{Err: err}
	})

	// receiver flags
	receiverCmd.Flags().StringVar(&receiverConfigPath, "config", "", "Receiver config file (.yaml, .yml or .json)")
	receiverCmd.Flags().StringVar(&receiverWriteConfig, "write-config", "", "Write the effective config to this file and exit")
	receiverCmd.Flags().StringVar(&receiverHost, "host", "", "Listen host (overrides config and HOST)")
	receiverCmd.Flags().IntVar(&receiverPort, "port", 0, "Listen port (overrides config and PORT)")

	rootCmd.AddCommand(receiverCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	if flagOpts.Host == "" {
		return &cli.UsageError{Err: errors.New("required flag \"host\" not set")}
	}

	configPath := flagConfigPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return &cli.UsageError{Err: err}
	}
	flagOpts.ApplyConfig(cfg, cmd.Flags().Changed)

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

	// Handle Ctrl+C for graceful cancellation
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, flagOpts, cfg, log, os.Stdout)
}

func runReceiver(cmd *cobra.Command, args []string) error {
	cfg := receiver.DefaultConfig()
	if receiverConfigPath != "" {
		loaded, err := receiver.LoadConfig(receiverConfigPath)
		if err != nil {
			return &cli.UsageError{Err: err}
		}
		cfg = loaded
	}

	if err := applyReceiverOverrides(cfg, cmd.Flags()); err != nil {
		return &cli.UsageError{Err: err}
	}

	if receiverWriteConfig != "" {
		if err := receiver.SaveConfig(cfg, receiverWriteConfig); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Config written to %s\n", receiverWriteConfig)
		return nil
	}

	appCfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return &cli.UsageError{Err: err}
	}
	log := logger.New(appCfg.Log.Level, appCfg.Log.Pretty, os.Stderr).With().Str("component", "receiver").Logger()

	srv := receiver.NewServer(cfg, log)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop receiver: %w", err)
	}
	log.Info().Msg("Receiver stopped")
	return nil
}

// applyReceiverOverrides applies HOST/PORT, then explicit flags
func applyReceiverOverrides(cfg *receiver.Config, flags *pflag.FlagSet) error {
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		value, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = value
	}

	if flags.Changed("host") {
		cfg.Host = receiverHost
	}
	if flags.Changed("port") {
		cfg.Port = receiverPort
	}
	return nil
}
