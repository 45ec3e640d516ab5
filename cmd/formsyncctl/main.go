// formsyncctl drives plan form sessions against the configured draft store.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"formsync/internal/config"
	"formsync/internal/draft"
	"formsync/internal/form"
	"formsync/internal/kv"
	"formsync/internal/logging"
	"formsync/internal/notify"
	"formsync/internal/validation"
)

var (
	configPath = flag.String("config", "", "path to config file")
	modeFlag   = flag.String("mode", "create", "form mode: create, edit or view")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "has":
		err = cmdHas(ctx)
	case "show":
		err = cmdShow(ctx)
	case "clear":
		err = cmdClear(ctx)
	case "fill":
		err = cmdFill(ctx, os.Stdin)
	case "submit":
		err = cmdSubmit(ctx)
	case "init":
		err = cmdInit()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `formsyncctl - Plan form draft utility

Usage: formsyncctl [options] <command>

Commands:
  has       Report whether a draft exists
  show      Print the restored draft and active section
  clear     Delete the draft
  fill      Read edits from stdin and autosave them as a draft
              field=value     type a value into a field
              #blur field     leave a field
              @section name   switch the active section
  submit    Validate the draft and submit it
  init      Write a default config file
  help      Show this help message

Options:
  -config <path>  Path to config file (default: platform config dir)
  -mode <mode>    create, edit or view (default: create)`)
}

// env bundles everything a command needs.
type env struct {
	loader *config.Loader
	cfg    *config.Config
	logger *logging.Logger
	store  kv.Store
	drafts *draft.Store
	mode   draft.Mode
}

func setup(ctx context.Context) (*env, error) {
	mode, err := draft.ParseMode(*modeFlag)
	if err != nil {
		return nil, err
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	drafts := draft.New(store, draft.Options{
		Namespace: cfg.Draft.Namespace,
		Timeout:   cfg.Store.Timeout(),
		Logger:    logger.Logger,
	})

	return &env{
		loader: loader,
		cfg:    cfg,
		logger: logger,
		store:  store,
		drafts: drafts,
		mode:   mode,
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", "error", err)
	}
	e.loader.Close()
	e.logger.Close()
}

func newLogger(lc config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    lc.Output,
		FilePath:  lc.FilePath,
		AddSource: lc.AddSource,
		Component: "formsyncctl",
	})
}

func (e *env) openSession(ctx context.Context, validator validation.Validator, submitter form.Submitter) *form.Session {
	sessionLogger, id := e.logger.WithSession("")
	return form.Open(ctx, form.Options{
		Mode:             e.mode,
		Drafts:           e.drafts,
		Validator:        validator,
		Submitter:        submitter,
		Sink:             notify.Multi(notify.NewLogSink(sessionLogger.Logger), printSink(os.Stdout)),
		Logger:           sessionLogger.Logger,
		Debounce:         e.cfg.Debounce(),
		AutosaveInterval: e.cfg.AutosaveInterval(),
		FlushOnUnmount:   e.cfg.Field.FlushOnUnmount,
		SessionID:        id,
	})
}

func printSink(w io.Writer) notify.Sink {
	return notify.SinkFunc(func(m notify.Message) {
		fmt.Fprintln(w, m.String())
	})
}

func cmdHas(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.drafts.HasDraft(ctx, e.mode) {
		fmt.Println("Draft: present")
		if at, ok := e.drafts.SavedAt(ctx); ok {
			fmt.Printf("Saved: %s (%s ago)\n", at.Local().Format(time.RFC1123), time.Since(at).Round(time.Second))
		}
		return nil
	}
	fmt.Println("Draft: none")
	return nil
}

func cmdShow(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	s := e.openSession(ctx, nil, nil)
	defer s.Close()

	printSession(os.Stdout, s)
	return nil
}

func cmdClear(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	e.drafts.ClearDraft(ctx)
	fmt.Println("Draft cleared")
	return nil
}

func cmdFill(ctx context.Context, in io.Reader) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	s := e.openSession(ctx, nil, nil)
	defer s.Close()

	e.loader.OnChange(func(cfg *config.Config) {
		e.logger.Info("config reloaded", "debounce_ms", cfg.Field.DebounceMs)
		s.SetDebounce(cfg.Debounce())
	})
	if err := e.loader.Watch(); err != nil {
		e.logger.Warn("config watch unavailable", "error", err)
	} else {
		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer cancelWatch()
		go logWatchErrors(watchCtx, e.loader.Errors(), e.logger.Logger)
	}

	if err := applyEdits(ctx, s, in); err != nil {
		return err
	}

	if s.SaveNow(ctx) {
		fmt.Println("Draft saved")
	} else if e.mode.Persists() {
		return errors.New("draft could not be saved")
	}
	printSession(os.Stdout, s)
	return nil
}

// logWatchErrors logs reload failures until ctx ends.
func logWatchErrors(ctx context.Context, errs <-chan error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			logger.Warn("config reload failed", "error", err)
		}
	}
}

// applyEdits replays edit lines from r into the session.
func applyEdits(ctx context.Context, s *form.Session, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "@section "):
			name := strings.TrimSpace(strings.TrimPrefix(text, "@section "))
			if err := s.SetSection(ctx, draft.Section(name)); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		case strings.HasPrefix(text, "#blur "):
			s.Field(strings.TrimSpace(strings.TrimPrefix(text, "#blur "))).HandleBlur()
		default:
			name, value, ok := strings.Cut(scanner.Text(), "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return fmt.Errorf("line %d: expected field=value", line)
			}
			s.Field(name).HandleInput(value)
		}
	}
	return scanner.Err()
}

func cmdSubmit(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	validator, err := validation.FromConfig(e.cfg.Validation)
	if err != nil {
		return err
	}

	submitter := form.SubmitFunc(func(_ context.Context, values map[string]any) error {
		out, err := sonic.ConfigStd.MarshalIndent(values, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	})

	s := e.openSession(ctx, validator, submitter)
	defer s.Close()

	err = s.Submit(ctx)
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		for _, fe := range *verrs {
			fmt.Printf("  %s\n", fe.String())
		}
		return errors.New("validation failed")
	}
	return err
}

func cmdInit() error {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func printSession(w io.Writer, s *form.Session) {
	values := s.State().Values()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Mode: %s\n", s.Mode())
	fmt.Fprintf(w, "Section: %s\n", s.Section())
	fmt.Fprintln(w, "Fields:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %v\n", name, values[name])
	}
}
