package utils

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("acción rápida", 6); got != "acción..." {
		t.Errorf("multibyte: got %q", got)
	}
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "one line", []string{"one line"}},
		{"blank separated", "\nP1\n\nP2\n", []string{"P1", "P2"}},
		{"multi-line block", "a\nb\n\n  \nc", []string{"a\nb", "c"}},
		{"crlf", "P1\r\n\r\nP2", []string{"P1", "P2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitParagraphs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitParagraphs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
