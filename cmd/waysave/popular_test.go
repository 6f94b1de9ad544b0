package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/waysave/waysave/internal/waysave"
)

func TestPrintLocations(t *testing.T) {
	var buf bytes.Buffer
	printLocations(&buf, nil)
	if !strings.Contains(buf.String(), "No searches") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	last := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	printLocations(&buf, []waysave.LocationLog{
		{Latitude: 53.35, Longitude: -6.26, SearchCount: 4, LastSearch: last},
		{Latitude: 40.42, Longitude: -3.7, SearchCount: 1, LastSearch: last},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if want := " 1. 53.35,-6.26  4 search(es), last 2026-10-16 09:30"; lines[0] != want {
		t.Errorf("first line = %q, want %q", lines[0], want)
	}
	if !strings.HasPrefix(lines[1], " 2. 40.42,-3.70") {
		t.Errorf("second line = %q", lines[1])
	}
}
