package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/outboundkit/mailmerge/internal/app"
	"github.com/outboundkit/mailmerge/internal/attemptlog"
	"github.com/outboundkit/mailmerge/internal/batch"
	"github.com/outboundkit/mailmerge/internal/config"
	"github.com/outboundkit/mailmerge/internal/dispatch"
	"github.com/outboundkit/mailmerge/internal/dispatch/resendmail"
	"github.com/outboundkit/mailmerge/internal/dispatch/smtpmail"
	"github.com/outboundkit/mailmerge/internal/generate"
	"github.com/outboundkit/mailmerge/internal/generate/gemini"
	"github.com/outboundkit/mailmerge/internal/logging"
	"github.com/outboundkit/mailmerge/internal/util"
	"github.com/outboundkit/mailmerge/internal/version"
	"github.com/outboundkit/mailmerge/internal/web"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version":
		fmt.Println(version.Current)
		return
	case "run":
		os.Exit(runBatch(ctx, os.Args[2:]))
	case "serve":
		os.Exit(runServe(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runBatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Optional YAML config file")
	inputPath := fs.String("input", "", "Input contact CSV (env: CSV_FILE_PATH)")
	outputPath := fs.String("output", "", "Optional per-row outcome report CSV")
	template := fs.String("template", "", "Prompt template with {Placeholder} markers (env: EMAIL_TEMPLATE)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if *inputPath == "" {
		*inputPath = cfg.CSVPath
	}
	if *template == "" {
		*template = cfg.Template
	}
	if *inputPath == "" || *template == "" {
		_, _ = fmt.Fprintln(os.Stderr, "run requires --input and --template")
		return 2
	}

	runner, closeLog, err := buildRunner(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "setup error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer closeLog()

	res, err := app.RunLocal(ctx, runner, app.LocalOptions{
		InputPath:  *inputPath,
		OutputPath: *outputPath,
		Template:   *template,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "run failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}

	fmt.Printf("batch %s complete: attempted=%d sent=%d failed=%d\n",
		res.BatchID, res.Attempted, res.Sent, res.Failed)
	if res.Failed > 0 {
		return 1
	}
	return 0
}

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Optional YAML config file")
	addr := fs.String("addr", "", "Listen address (env: LISTEN_ADDR)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if *addr == "" {
		*addr = cfg.ListenAddr
	}

	gen, tr, log, err := buildBackends(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "setup error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer closeStore(log)

	runner := batch.NewRunner(nil, gen, tr, log, batch.Options{
		RateLimitRPS: cfg.RateLimitRPS,
	})

	srv := web.NewServer(web.Options{
		Runner:    runner,
		Generator: gen,
		Transport: tr,
		Log:       log,
		Template:  cfg.Template,
		CSVPath:   cfg.CSVPath,
	})
	if err := srv.Start(*addr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	return 0
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `mailmerge: batch account-outreach pipeline (CSV contacts -> generated emails)

Usage:
  mailmerge <command> [flags]

Commands:
  run      Process a contact CSV once and exit
  serve    Start the HTTP server (upload, stats, test endpoints)
  version  Print the version

Examples:
  mailmerge run --input contacts.csv --template "Write to {Company Name} at {Email}."
  mailmerge serve --addr :8080

Environment:
  CSV_FILE_PATH        Default contact CSV path
  EMAIL_TEMPLATE       Default prompt template
  GEMINI_API_KEY       Gemini API key (content generation; fallback content without it)
  GEMINI_MODEL         Gemini model name
  MAIL_TRANSPORT       "resend" or "smtp" (sends fail when unset)
  MAIL_FROM            Sender address
  RESEND_API_KEY       Resend API key (MAIL_TRANSPORT=resend)
  SMTP_HOST            SMTP server host (MAIL_TRANSPORT=smtp)
  ATTEMPT_LOG_BACKEND  "csv" (default) or "sqlite"
  ATTEMPT_LOG_PATH     Attempt log file path

`)
}

// buildRunner assembles the batch runner and its attempt log. The returned
// func closes the log store.
func buildRunner(ctx context.Context, cfg config.Config) (*batch.Runner, func(), error) {
	gen, tr, log, err := buildBackends(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	runner := batch.NewRunner(nil, gen, tr, log, batch.Options{
		RateLimitRPS: cfg.RateLimitRPS,
	})
	return runner, func() { closeStore(log) }, nil
}

func closeStore(log attemptlog.Log) {
	if c, ok := log.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func buildBackends(ctx context.Context, cfg config.Config) (generate.Generator, dispatch.Transport, attemptlog.Log, error) {
	var gen generate.Generator
	if cfg.Gemini.APIKey != "" {
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		gen = g
	} else {
		gen = generate.Disabled{Reason: "GEMINI_API_KEY is not set"}
	}

	var tr dispatch.Transport
	switch cfg.Mail.Transport {
	case "resend":
		t, err := resendmail.New(resendmail.Config{
			APIKey:  cfg.Mail.ResendAPIKey,
			From:    cfg.Mail.From,
			BaseURL: cfg.Mail.ResendBaseURL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		tr = t
	case "smtp":
		t, err := smtpmail.New(smtpmail.Config{
			Host:        cfg.Mail.SMTPHost,
			Port:        cfg.Mail.SMTPPort,
			Sender:      cfg.Mail.From,
			Username:    cfg.Mail.SMTPUsername,
			Password:    cfg.Mail.SMTPPassword,
			UseStartTLS: cfg.Mail.SMTPStartTLS,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		tr = t
	default:
		tr = dispatch.Disabled{Reason: "MAIL_TRANSPORT is not set"}
	}

	var log attemptlog.Log
	if cfg.Attempt.Backend == "sqlite" {
		l, err := attemptlog.OpenSQLite(cfg.Attempt.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		log = l
	} else {
		log = attemptlog.NewCSVLog(cfg.Attempt.Path)
	}
	return gen, tr, log, nil
}
