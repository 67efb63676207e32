// Package golden loads and replays mirror fixtures: an initial report, a list
// of mutations each with its expected outcome, and the expected final report.
package golden

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"nodemirror/mirror"
	"nodemirror/mutation"
	"nodemirror/report"
	"nodemirror/reportdoc"
	"nodemirror/wire"
)

// ExpectOK is the outcome of a mutation that applies cleanly. Other outcomes
// are the labels returned by mirror.KindName.
const ExpectOK = "ok"

// ErrMismatch is wrapped by every replay result that differs from the
// fixture.
var ErrMismatch = errors.New("golden: mismatch")

// Case is one fixture.
type Case struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Initial     reportdoc.Report  `yaml:"initial"`
	Steps       []Step            `yaml:"steps"`
	Final       *reportdoc.Report `yaml:"final,omitempty"`
}

// Step is a mutation and the outcome it must have. An empty Expect means ok.
type Step struct {
	Mutation reportdoc.Mutation `yaml:"mutation"`
	Expect   string             `yaml:"expect,omitempty"`
}

func (s Step) expect() string {
	if s.Expect == "" {
		return ExpectOK
	}
	return s.Expect
}

// Load reads every case from a YAML file. A file may hold several documents.
func Load(path string) ([]Case, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode reads every case from a YAML stream.
func Decode(r io.Reader) ([]Case, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cases []Case
	for {
		var c Case
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return cases, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode fixture %d: %w", len(cases), err)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("fixture %d: name required", len(cases))
		}
		cases = append(cases, c)
	}
}

// LoadDir reads every *.yaml file in dir, in file name order.
func LoadDir(dir string) ([]Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var all []Case
	for _, path := range paths {
		cases, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		all = append(all, cases...)
	}
	return all, nil
}

// Result is the outcome of replaying a case.
type Result struct {
	Final   report.NodeReport
	Digest  [32]byte
	Applied int
	Failed  int
}

// Run replays c through engine. A failing step leaves the report as it was,
// so later steps continue from the last good report. Run returns an error
// wrapping ErrMismatch for the first step whose outcome differs from the
// fixture, or when the final report does not match.
func Run(c Case, engine *mirror.Engine) (Result, error) {
	var res Result
	r, err := c.Initial.ToReport()
	if err != nil {
		return res, fmt.Errorf("%s: initial report: %w", c.Name, err)
	}
	if err := report.Validate(r); err != nil {
		return res, fmt.Errorf("%s: initial report: %w", c.Name, err)
	}

	for i, step := range c.Steps {
		m, err := step.Mutation.ToMutation()
		if err != nil {
			return res, fmt.Errorf("%s: step %d: %w", c.Name, i, err)
		}
		next, err := engine.Apply(r, m)
		got := ExpectOK
		if err != nil {
			got = mirror.KindName(err)
			res.Failed++
		} else {
			r = next
			res.Applied++
		}
		if got != step.expect() {
			return res, fmt.Errorf("%w: %s: step %d (%s): want %s, got %s (%v)",
				ErrMismatch, c.Name, i, mutation.Describe(m), step.expect(), got, err)
		}
	}

	res.Final = r
	res.Digest = wire.Digest(r)
	if c.Final == nil {
		return res, nil
	}
	want, err := c.Final.ToReport()
	if err != nil {
		return res, fmt.Errorf("%s: final report: %w", c.Name, err)
	}
	if !r.Equal(want) {
		got, _ := yaml.Marshal(reportdoc.FromReport(r))
		return res, fmt.Errorf("%w: %s: final report differs, got:\n%s", ErrMismatch, c.Name, got)
	}
	return res, nil
}

// Record builds a case from a report and the mutations applied to it, with
// the outcomes and final report produced by engine.
func Record(name string, initial report.NodeReport, ms []mutation.NodeReportMutation, engine *mirror.Engine) (Case, error) {
	c := Case{Name: name, Initial: reportdoc.FromReport(initial)}
	r := initial
	for i, m := range ms {
		doc, err := reportdoc.FromMutation(m)
		if err != nil {
			return c, fmt.Errorf("step %d: %w", i, err)
		}
		step := Step{Mutation: doc}
		if next, err := engine.Apply(r, m); err != nil {
			step.Expect = mirror.KindName(err)
		} else {
			r = next
		}
		c.Steps = append(c.Steps, step)
	}
	final := reportdoc.FromReport(r)
	c.Final = &final
	return c, nil
}

// Write encodes cases as a multi-document YAML stream.
func Write(w io.Writer, cases ...Case) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode fixture %s: %w", c.Name, err)
		}
	}
	return enc.Close()
}
