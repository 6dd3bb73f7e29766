package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/cmdbuf"
)

const copyScript = `
label: copy
buffers:
  - {name: src, size: 64, usage: [copy_src], initial: [copy_src]}
  - {name: dst, size: 64, usage: [copy_dst], initial: [copy_dst]}
commands:
  - {op: copy_buffer_to_buffer, source: src, destination: dst, size: 64}
`

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newChecker(dump bool) *checker {
	return &checker{dev: cmdbuf.NewDevice(cmdbuf.WithLabel("cmdbufcheck")), dump: dump}
}

func TestCheck(t *testing.T) {
	path := writeScript(t, "copy.yaml", copyScript)
	c := newChecker(true)

	var out bytes.Buffer
	if err := c.check(path, &out); err != nil {
		t.Fatalf("check() error = %v", err)
	}
	for _, want := range []string{`OK: "copy", 1 commands`, `"Op":"CopyBufferToBuffer"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("check() output = %q, missing %q", out.String(), want)
		}
	}

	var stats bytes.Buffer
	if err := c.writeStats(&stats); err != nil {
		t.Fatalf("writeStats() error = %v", err)
	}
	for _, want := range []string{`"Label":"cmdbufcheck"`, `"Submitted":1`} {
		if !strings.Contains(stats.String(), want) {
			t.Errorf("writeStats() = %q, missing %q", stats.String(), want)
		}
	}
}

func TestCheckAll(t *testing.T) {
	good := writeScript(t, "good.yaml", copyScript)
	bad := writeScript(t, "bad.yaml", "commands: [{op: begin_compute_pass}]\n")
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	paths := []string{good, bad, good, missing, good}
	var out, errOut bytes.Buffer
	failed := newChecker(false).checkAll(paths, 2, &out, &errOut)

	if failed != 2 {
		t.Errorf("checkAll() failed = %d, want 2", failed)
	}
	if got := strings.Count(out.String(), "OK:"); got != 3 {
		t.Errorf("checkAll() printed %d OK lines, want 3:\n%s", got, out.String())
	}
	if !strings.Contains(errOut.String(), "error kind: Validation") {
		t.Errorf("checkAll() errors = %q, missing the validation kind", errOut.String())
	}
	if !strings.Contains(errOut.String(), missing) {
		t.Errorf("checkAll() errors = %q, missing %s", errOut.String(), missing)
	}
}
