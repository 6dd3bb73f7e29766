// Command cmdbufcheck records YAML command scripts and reports whether the
// resulting command buffers pass validation.
//
// Usage:
//
//	cmdbufcheck [-json] [-stats] [-v] [-workers n] script.yaml...
//
// Without arguments a single script is read from stdin. Scripts are checked
// concurrently, each on its own builder, against one shared device. With
// -json every validated command stream is printed as JSON. The exit status
// is 1 when any script fails to load, record, validate or submit.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/cmdbuf"
	"github.com/gogpu/cmdbuf/internal/pool"
	"github.com/gogpu/cmdbuf/script"
)

func main() {
	var (
		dump    = flag.Bool("json", false, "print each command buffer as JSON")
		stats   = flag.Bool("stats", false, "print device statistics as JSON")
		verbose = flag.Bool("v", false, "log recording and validation")
		workers = flag.Int("workers", 0, "scripts checked in parallel (0 = GOMAXPROCS)")
	)
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("cmdbufcheck: ")

	if *verbose {
		cmdbuf.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	c := &checker{
		dev:  cmdbuf.NewDevice(cmdbuf.WithLabel("cmdbufcheck")),
		dump: *dump,
	}
	failed := c.checkAll(paths, *workers, os.Stdout, os.Stderr)
	if *stats {
		if err := c.writeStats(os.Stdout); err != nil {
			log.Fatal(err)
		}
	}
	if failed > 0 {
		log.Printf("%d of %d scripts failed", failed, len(paths))
		os.Exit(1)
	}
}

// checker validates scripts against one device.
type checker struct {
	dev  *cmdbuf.Device
	dump bool
}

// checkAll checks paths on a worker pool and prints the results in
// argument order. It returns the number of failed scripts.
func (c *checker) checkAll(paths []string, workers int, out, errOut io.Writer) int {
	p := pool.New(workers)
	defer p.Close()

	outputs := make([]bytes.Buffer, len(paths))
	jobs := make([]pool.Job, len(paths))
	for i, path := range paths {
		jobs[i] = func() error { return c.check(path, &outputs[i]) }
	}
	errs := p.Run(jobs)

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			fmt.Fprintf(errOut, "%s: %v\n", paths[i], err)
			if kind := cmdbuf.KindOf(err); kind != cmdbuf.KindUnknown {
				fmt.Fprintf(errOut, "%s: error kind: %s\n", paths[i], kind)
			}
			continue
		}
		_, _ = outputs[i].WriteTo(out)
	}
	return failed
}

// check loads, records and submits one script.
func (c *checker) check(path string, out io.Writer) error {
	in := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	s, err := script.Load(in)
	if err != nil {
		return err
	}
	cb, err := s.Run(c.dev)
	if err != nil {
		return err
	}
	defer cb.Release()

	if err := c.dev.Queue().Submit(cb); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: OK: %q, %d commands\n", path, cb.Label(), cb.Len())

	if c.dump {
		data, err := cb.DumpJSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", data)
	}
	return nil
}

func (c *checker) writeStats(out io.Writer) error {
	w := jwriter.NewWriter()
	c.dev.WriteStatsJSON(&w)
	if err := w.Error(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%s\n", w.Bytes())
	return err
}
