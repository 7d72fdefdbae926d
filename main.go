package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/samara-dev/mindstream/audit"
	"github.com/samara-dev/mindstream/config"
	"github.com/samara-dev/mindstream/digest"
	"github.com/samara-dev/mindstream/event"
	"github.com/samara-dev/mindstream/logger"
	"github.com/samara-dev/mindstream/notify"
	"github.com/samara-dev/mindstream/redisclient"
	"github.com/samara-dev/mindstream/scheduler"
	"github.com/samara-dev/mindstream/sense"
	"github.com/samara-dev/mindstream/statusserver"
	"github.com/samara-dev/mindstream/summarize"
	"github.com/samara-dev/mindstream/telemetry"
	"github.com/samara-dev/mindstream/threads"
	"github.com/samara-dev/mindstream/trigger"
	"github.com/samara-dev/mindstream/validate"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "stream":
		err = runStream(cfg, os.Args[2:])
	case "wake":
		err = runWake(cfg, os.Args[2:])
	case "trigger":
		err = runTrigger(cfg, os.Args[2:])
	case "audit":
		err = runAudit(cfg, os.Args[2:])
	case "threads":
		err = runThreads(cfg, os.Args[2:])
	case "sense":
		err = runSense(cfg, os.Args[2:])
	case "status-server":
		err = runStatusServer(cfg, log)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mindstream <command> [args]

commands:
  stream   write|query|mark-distilled|archive|stats|validate|rebuild-distilled-index|migrate-daily|undistilled
  wake     check|next|status|record
  trigger  evaluate|safeguards|summary
  audit    [--hours N] [--digest-hours N] [--format json|text] [--output path]
  threads  index
  sense    watch [--once]
  status-server`)
}

func openStream(cfg *config.Config) (*event.Stream, error) {
	return event.Open(cfg.StreamPath())
}

func runStream(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("stream: missing subcommand")
	}
	s, err := openStream(cfg)
	if err != nil {
		return err
	}

	switch args[0] {
	case "write":
		return streamWrite(s, args[1:])
	case "query":
		return streamQuery(s, args[1:])
	case "mark-distilled":
		return streamMarkDistilled(s, args[1:])
	case "archive":
		return streamArchive(s, args[1:])
	case "stats":
		return streamStats(s)
	case "validate":
		return streamValidate(cfg)
	case "rebuild-distilled-index":
		n, err := s.RebuildDistilledIndex()
		if err != nil {
			return err
		}
		fmt.Printf("rebuilt distilled index with %d entries\n", n)
		return nil
	case "migrate-daily":
		keepLegacy := hasFlag(args[1:], "--keep-legacy")
		n, err := s.MigrateLegacyToDaily(keepLegacy)
		if err != nil {
			return err
		}
		fmt.Printf("migrated %d events\n", n)
		return nil
	case "undistilled":
		return streamUndistilled(s, args[1:])
	default:
		return fmt.Errorf("stream: unknown subcommand %q", args[0])
	}
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func flagValue(args []string, name, fallback string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return fallback
}

func streamWrite(s *event.Stream, args []string) error {
	surface := event.Surface(flagValue(args, "--surface", ""))
	typ := event.Type(flagValue(args, "--type", string(event.TypeInteraction)))
	direction := event.Direction(flagValue(args, "--direction", string(event.DirectionInbound)))
	summary := flagValue(args, "--summary", "")
	content := flagValue(args, "--content", "")
	sessionID := flagValue(args, "--session-id", "")

	ev, err := event.New(event.NewParams{
		Surface:   surface,
		Type:      typ,
		Direction: direction,
		Summary:   summary,
		Content:   content,
		SessionID: sessionID,
	})
	if err != nil {
		return err
	}
	if err := s.Append(ev); err != nil {
		return err
	}
	fmt.Println(ev.ID)
	return nil
}

func streamQuery(s *event.Stream, args []string) error {
	opts := event.QueryOptions{IncludeDistilled: hasFlag(args, "--include-distilled")}
	if h := flagValue(args, "--hours", ""); h != "" {
		if parsed, err := strconv.ParseFloat(h, 64); err == nil {
			opts.Hours = &parsed
		}
	}
	if v := flagValue(args, "--surface", ""); v != "" {
		opts.Surface = event.Surface(v)
	}
	if v := flagValue(args, "--type", ""); v != "" {
		opts.Type = event.Type(v)
	}

	events, err := s.Query(opts)
	if err != nil {
		return err
	}
	return printJSON(events)
}

func streamMarkDistilled(s *event.Stream, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("mark-distilled: missing event ids")
	}
	n, err := s.MarkDistilled(args)
	if err != nil {
		return err
	}
	fmt.Printf("marked %d events distilled\n", n)
	return nil
}

func streamArchive(s *event.Stream, args []string) error {
	days := 30
	if v := flagValue(args, "--days", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			days = parsed
		}
	}
	n, err := s.Archive(days)
	if err != nil {
		return err
	}
	fmt.Printf("archived %d events\n", n)
	return nil
}

func streamStats(s *event.Stream) error {
	events, err := s.Query(event.QueryOptions{IncludeDistilled: true})
	if err != nil {
		return err
	}
	stats := map[string]interface{}{
		"total_events": len(events),
	}
	return printJSON(stats)
}

func streamValidate(cfg *config.Config) error {
	results := map[string][]validate.LineError{}
	s, err := openStream(cfg)
	if err != nil {
		return err
	}
	for _, path := range s.ListStreamFiles(nil) {
		errs, _, err := validate.StreamFile(path)
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			results[path] = errs
		}
	}
	return printJSON(results)
}

func streamUndistilled(s *event.Stream, args []string) error {
	date := flagValue(args, "--date", "")
	beforeDate := flagValue(args, "--before-date", "")
	events, err := s.QueryUndistilled(date, beforeDate)
	if err != nil {
		return err
	}
	return printJSON(events)
}

func runWake(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("wake: missing subcommand")
	}
	sched := scheduler.New(
		cfg.StatePath("scheduler-state.json"),
		cfg.StatePath("triggers.json"),
		cfg.StatePath("proactive-queue", "queue.json"),
		cfg.StatePath("calendar-cache.json"),
	)

	switch args[0] {
	case "check":
		return printJSON(sched.ShouldWakeNow())
	case "next":
		return printJSON(sched.GetNextWake())
	case "status":
		return printJSON(sched.GetStatus())
	case "record":
		wakeType := flagValue(args[1:], "--type", "full")
		return sched.RecordWake(wakeType)
	default:
		return fmt.Errorf("wake: unknown subcommand %q", args[0])
	}
}

func runTrigger(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("trigger: missing subcommand")
	}

	ev := trigger.New(
		cfg.StatePath("last-proactive-trigger.txt"),
		cfg.MemoryPath("episodes"),
		cfg.StatePath("trigger-evaluations.jsonl"),
		trigger.WithPatterns(trigger.NewFilePatternSource(cfg.StatePath("patterns.json"))),
		trigger.WithCalendar(trigger.NewFileCalendarSource(cfg.StatePath("calendar-cache.json"))),
	)

	switch args[0] {
	case "evaluate":
		return printJSON(ev.Evaluate(context.Background(), ""))
	case "safeguards":
		eval := ev.Evaluate(context.Background(), "")
		return printJSON(map[string]interface{}{
			"blocked":     eval.Blocked,
			"reason":      eval.BlockReason,
			"low_battery": eval.LowBattery,
		})
	case "summary":
		n := 10
		if v := flagValue(args[1:], "--count", ""); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				n = parsed
			}
		}
		summary, err := ev.GetEscalationSummary(n)
		if err != nil {
			return err
		}
		return printJSON(summary)
	default:
		return fmt.Errorf("trigger: unknown subcommand %q", args[0])
	}
}

func runAudit(cfg *config.Config, args []string) error {
	hours := audit.DefaultWindowHours
	if v := flagValue(args, "--hours", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			hours = parsed
		}
	}
	digestHours := audit.DefaultDigestHours
	if v := flagValue(args, "--digest-hours", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			digestHours = parsed
		}
	}
	format := flagValue(args, "--format", "json")
	output := flagValue(args, "--output", "")

	s, err := openStream(cfg)
	if err != nil {
		return err
	}
	hoursF := float64(hours)
	events, err := s.Query(event.QueryOptions{Hours: &hoursF, IncludeDistilled: true})
	if err != nil {
		return err
	}

	digestHoursF := float64(digestHours)
	result, err := digest.Build(context.Background(), events, digest.Request{
		Hours:      &digestHoursF,
		Summarizer: summarize.NewFallback(),
		Now:        time.Now(),
	})
	if err != nil {
		return err
	}

	disabled := map[string]bool{}
	for _, surface := range event.AllSurfaces {
		if !cfg.ServiceEnabled(string(surface)) {
			disabled[string(surface)] = true
		}
	}

	report := audit.AuditStream(events, result.Text, audit.Options{
		WindowHours:      hours,
		DigestHours:      digestHours,
		DisabledSurfaces: disabled,
	})

	if output != "" {
		if err := audit.WriteReportAtomic(output, report); err != nil {
			return err
		}
	}

	if format == "text" {
		fmt.Print(audit.FormatText(report))
		return nil
	}
	return printJSON(report)
}

func runThreads(cfg *config.Config, args []string) error {
	if len(args) < 1 || args[0] != "index" {
		return fmt.Errorf("threads: expected subcommand \"index\"")
	}
	handoffPath := flagValue(args[1:], "--handoff", "")
	if handoffPath == "" {
		return fmt.Errorf("threads index: --handoff is required")
	}
	raw, err := os.ReadFile(handoffPath)
	if err != nil {
		return err
	}
	sessionID := threads.ParseSessionID(string(raw))
	openTitles := threads.ParseOpenThreads(string(raw))

	path := cfg.StatePath("threads.json")
	existing := threads.Load(path)
	updated, touched := threads.Update(existing, openTitles, handoffPath, sessionID)
	if err := threads.WriteAtomic(path, updated); err != nil {
		return err
	}
	fmt.Printf("indexed %d open threads, updated %d thread records\n", len(openTitles), len(touched))
	return nil
}

func runSense(cfg *config.Config, args []string) error {
	if len(args) < 1 || args[0] != "watch" {
		return fmt.Errorf("sense: expected subcommand \"watch\"")
	}
	s, err := openStream(cfg)
	if err != nil {
		return err
	}
	w := sense.New(cfg.SensesPath(), s)

	if hasFlag(args[1:], "--once") {
		result, err := w.RunOnce(context.Background())
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx, 15*time.Minute)
}

func runStatusServer(cfg *config.Config, log zerolog.Logger) error {
	redisClient, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without pub/sub")
	}

	registry := telemetry.New()
	publisher := notify.New(log, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	publisher.Start(ctx)
	defer publisher.Stop()

	handler := statusserver.New(log, registry, func() error {
		return redisclient.Ping(redisClient)
	})

	srv := &http.Server{
		Addr:              flagValue(os.Args[2:], "--addr", ":8090"),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printJSON(v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
