/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWritesRFC5424Line(t *testing.T) {
	var buf bytes.Buffer
	lgr := New(&buf)
	if err := lgr.Errorf("boom: %d", 99); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.Contains(s, "boom: 99") {
		t.Fatalf("missing message: %q", s)
	}
	if !strings.HasSuffix(s, "\n") {
		t.Fatalf("missing trailing newline: %q", s)
	}
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	lgr := New(&buf)
	if err := lgr.SetLevel(ERROR); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Warnf("should not appear"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output below threshold, got %q", buf.String())
	}
	if err := lgr.Errorf("should appear"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("missing logged message: %q", buf.String())
	}
}

func TestSetLevelOffSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	lgr := New(&buf)
	if err := lgr.SetLevel(OFF); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Criticalf("never"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected OFF to silence all logging, got %q", buf.String())
	}
}

func TestSetLevelRejectsInvalidLevel(t *testing.T) {
	lgr := New(&bytes.Buffer{})
	if err := lgr.SetLevel(Level(99)); err != ErrInvalidLevel {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]Level{
		"debug":    DEBUG,
		"INFO":     INFO,
		"Warn":     WARN,
		"error":    ERROR,
		"critical": CRITICAL,
		"fatal":    FATAL,
		"off":      OFF,
	}
	for s, want := range cases {
		got, err := LevelFromString(s)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if got != want {
			t.Fatalf("%s: got %v want %v", s, got, want)
		}
	}
	if _, err := LevelFromString("bogus"); err != ErrInvalidLevel {
		t.Fatalf("expected ErrInvalidLevel for bogus level, got %v", err)
	}
}

func TestLevelString(t *testing.T) {
	if WARN.String() != "WARN" {
		t.Fatalf("got %s", WARN.String())
	}
	if Level(99).String() != "UNKNOWN" {
		t.Fatalf("got %s", Level(99).String())
	}
}

func TestGetLevelDefaultsToInfo(t *testing.T) {
	lgr := New(&bytes.Buffer{})
	if lgr.GetLevel() != INFO {
		t.Fatalf("got %v want INFO", lgr.GetLevel())
	}
}

func TestTrimLengthKeepsSuffix(t *testing.T) {
	if got := trimLength(5, "abcdefgh"); got != "defgh" {
		t.Fatalf("got %q", got)
	}
	if got := trimLength(50, "short"); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestTrimPathLengthUsesBasename(t *testing.T) {
	got := trimPathLength(13, "aggregate/aggregate.go:118")
	if got != "regate.go:118" {
		t.Fatalf("got %q", got)
	}
}

func TestTrimPathLengthShortInputUnchanged(t *testing.T) {
	got := trimPathLength(32, "logging.go:42")
	if got != "logging.go:42" {
		t.Fatalf("got %q", got)
	}
}
