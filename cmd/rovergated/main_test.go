package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"help"}, &out, &errOut); code != 0 {
		t.Fatalf("unexpected exit code: %d", code)
	}
	if !strings.Contains(out.String(), "serve") {
		t.Fatalf("usage missing serve command: %q", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("unexpected exit code: %d", code)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("missing error output: %q", errOut.String())
	}
}

func TestRunServeBadFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"serve", "--no-such-flag"}, &out, &errOut); code != 2 {
		t.Fatalf("unexpected exit code: %d", code)
	}
}
