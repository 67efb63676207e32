package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"nodemirror/golden"
	"nodemirror/mirror"
	"nodemirror/mirror/mirrortest"
	"nodemirror/mutation"
	"nodemirror/report"
	"nodemirror/reportdoc"
	"nodemirror/storage"
	"nodemirror/wire"
)

const (
	goldenCommand   = "golden"
	recordCommand   = "record"
	streamCommand   = "stream"
	sessionsCommand = "sessions"
	replayCommand   = "replay"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case goldenCommand:
		err = runGolden(os.Args[2:], os.Stdout)
	case recordCommand:
		err = runRecord(os.Args[2:], os.Stdout)
	case streamCommand:
		err = runStream(os.Args[2:], os.Stdout)
	case sessionsCommand:
		err = runSessions(os.Args[2:], os.Stdout)
	case replayCommand:
		err = runReplay(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: mirrorctl <command> [flags]

Commands:
  %-9s replay YAML fixtures and check their outcomes
  %-9s write a fixture from a seeded reference producer
  %-9s convert a fixture into a framed envelope stream
  %-9s list the sessions stored in a journal
  %-9s replay a journal session and print the final report
`, goldenCommand, recordCommand, streamCommand, sessionsCommand, replayCommand)
}

func quietEngine() *mirror.Engine {
	return mirror.NewEngine(
		mirror.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		mirror.WithMetrics(nil),
	)
}

func runGolden(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(goldenCommand, flag.ContinueOnError)
	dir := fs.String("dir", "", "Directory of *.yaml fixtures, used when no files are given")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var cases []golden.Case
	if fs.NArg() == 0 {
		if *dir == "" {
			return errors.New("give fixture files or -dir")
		}
		loaded, err := golden.LoadDir(*dir)
		if err != nil {
			return err
		}
		cases = loaded
	}
	for _, path := range fs.Args() {
		loaded, err := golden.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cases = append(cases, loaded...)
	}

	engine := quietEngine()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tAPPLIED\tREJECTED\tDIGEST\tRESULT")
	failed := 0
	for _, c := range cases {
		res, err := golden.Run(c, engine)
		result := "ok"
		if err != nil {
			failed++
			result = err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", c.Name, res.Applied, res.Failed, shortDigest(res.Digest), result)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fixtures failed", failed, len(cases))
	}
	return nil
}

func shortDigest(d [32]byte) string {
	if d == [32]byte{} {
		return "-"
	}
	return hex.EncodeToString(d[:8])
}

func runRecord(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(recordCommand, flag.ContinueOnError)
	seed := fs.Uint64("seed", 1, "Seed of the reference producer")
	steps := fs.Int("steps", 100, "Number of producer steps")
	name := fs.String("name", "", "Fixture name (default authority-<seed>)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 0 {
		return errors.New("steps must not be negative")
	}
	if *name == "" {
		*name = fmt.Sprintf("authority-%d", *seed)
	}

	auth := mirrortest.NewAuthority(*seed)
	initial := auth.Report()
	c, err := golden.Record(*name, initial, auth.Run(*steps), quietEngine())
	if err != nil {
		return err
	}
	return golden.Write(out, c)
}

// runStream converts fixtures into a framed stream: one full report per
// fixture followed by one batch per accepted step.
func runStream(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(streamCommand, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("give fixture files")
	}

	fw := wire.NewFrameWriter(out)
	engine := quietEngine()
	for _, path := range fs.Args() {
		cases, err := golden.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, c := range cases {
			r, err := c.Initial.ToReport()
			if err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			if err := fw.Write(wire.Envelope{FullReport: &r}); err != nil {
				return err
			}
			seq := uint64(0)
			for i, step := range c.Steps {
				m, err := step.Mutation.ToMutation()
				if err != nil {
					return fmt.Errorf("%s: step %d: %w", c.Name, i, err)
				}
				next, err := engine.Apply(r, m)
				if err != nil {
					continue
				}
				r = next
				seq++
				if err := fw.Write(wire.Envelope{Seq: seq, Mutations: []mutation.NodeReportMutation{m}}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func openJournal(dir string) (*storage.Journal, func() error, error) {
	if dir == "" {
		return nil, nil, errors.New("-journal is required")
	}
	if _, err := os.Stat(filepath.Join(dir, "CURRENT")); err != nil {
		return nil, nil, fmt.Errorf("no journal at %s: %w", dir, err)
	}
	db, err := storage.NewLevelDB(dir)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewJournal(db), db.Close, nil
}

func runSessions(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(sessionsCommand, flag.ContinueOnError)
	dir := fs.String("journal", "", "Journal directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	journal, closeFn, err := openJournal(*dir)
	if err != nil {
		return err
	}
	defer closeFn()

	sessions, err := journal.Sessions()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tENTRIES")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\n", s.ID, s.Started.UTC().Format(time.RFC3339), s.Entries)
	}
	return w.Flush()
}

func runReplay(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(replayCommand, flag.ContinueOnError)
	dir := fs.String("journal", "", "Journal directory")
	sessionFlag := fs.String("session", "", "Session to replay (default: the latest)")
	format := fs.String("format", "yaml", "Output format: yaml, json or digest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	journal, closeFn, err := openJournal(*dir)
	if err != nil {
		return err
	}
	defer closeFn()

	session, err := pickSession(journal, *sessionFlag)
	if err != nil {
		return err
	}
	r, err := replay(journal, session)
	if err != nil {
		return err
	}

	switch *format {
	case "yaml":
		return yaml.NewEncoder(out).Encode(reportdoc.FromReport(r))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reportdoc.FromReport(r))
	case "digest":
		d := wire.Digest(r)
		_, err := fmt.Fprintln(out, hex.EncodeToString(d[:]))
		return err
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func pickSession(journal *storage.Journal, raw string) (uuid.UUID, error) {
	if raw != "" {
		return uuid.Parse(raw)
	}
	sessions, err := journal.Sessions()
	if err != nil {
		return uuid.Nil, err
	}
	if len(sessions) == 0 {
		return uuid.Nil, errors.New("journal has no sessions")
	}
	return sessions[len(sessions)-1].ID, nil
}

// replay folds a journal session through a fresh mirror the same way the
// daemon did when recording it.
func replay(journal *storage.Journal, session uuid.UUID) (report.NodeReport, error) {
	m := mirror.New(quietEngine(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := journal.Replay(session, func(e wire.Envelope) error {
		if e.IsFullReport() {
			_, err := m.Reset(*e.FullReport)
			return err
		}
		return m.Apply(context.Background(), e.Mutations...)
	})
	if err != nil {
		return report.NodeReport{}, fmt.Errorf("replay %s: %w", session, err)
	}
	r, _, err := m.Snapshot()
	return r, err
}
