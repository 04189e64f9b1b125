package relay

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name string
		s    string
		size int
		want []string
	}{
		{"even split", "hi there", 2, []string{"hi", " t", "he", "re"}},
		{"trailing partial", "hello", 2, []string{"he", "ll", "o"}},
		{"size larger than text", "hi", 10, []string{"hi"}},
		{"single runes", "abc", 1, []string{"a", "b", "c"}},
		{"empty text", "", 2, []string{}},
		{"multi-byte runes", "你好世界啊", 2, []string{"你好", "世界", "啊"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitChunks(tt.s, tt.size)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitChunks(%q, %d) = %q, want %q", tt.s, tt.size, got, tt.want)
			}
		})
	}
}

func TestSplitChunksNeverNil(t *testing.T) {
	if got := SplitChunks("", 2); got == nil {
		t.Error("SplitChunks of empty text returned nil, want empty slice")
	}
}

func TestSplitChunksReassembles(t *testing.T) {
	inputs := []string{"hi there", "一二三四五六七", "mixed 中文 and ascii", "x"}
	for _, s := range inputs {
		for size := 1; size <= 4; size++ {
			if got := strings.Join(SplitChunks(s, size), ""); got != s {
				t.Errorf("chunks of %q at size %d rejoin to %q", s, size, got)
			}
		}
	}
}

func TestSplitChunksZeroSize(t *testing.T) {
	// A non-positive size degrades to single-rune chunks rather than looping.
	got := SplitChunks("ab", 0)
	if len(got) != 2 {
		t.Errorf("SplitChunks(%q, 0) = %q, want 2 single-rune chunks", "ab", got)
	}
}
