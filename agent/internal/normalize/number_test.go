package normalize

import (
	"strings"
	"testing"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{"grouped thousands", "1,234", 1234, true},
		{"percent", "42%", 42, true},
		{"empty", "", 0, false},
		{"no digits", "no data yet", 0, false},
		{"currency and unit", "$1,250.50 USD", 1250.5, true},
		{"unit word", "10,000 operations", 10000, true},
		{"leading label", "Operations used: 3,400", 3400, true},
		{"space grouping", "10 000", 10000, true},
		{"apostrophe grouping", "10'000", 10000, true},
		{"no-break space grouping", "12 345", 12345, true},
		{"narrow no-break space", "12 345", 12345, true},
		{"full-width digits", "１２３", 123, true},
		{"k suffix", "2.5k", 2500, true},
		{"M suffix", "1M", 1000000, true},
		{"suffix part of a word", "3Mb", 3, true},
		{"two numbers takes first", "15 of 20", 15, true},
		{"list commas are not grouping", "1, 2, 3", 1, true},
		{"negative", "-7 items", -7, true},
		{"hyphen inside word", "Q3-2024", 3, true},
		{"zero", "0", 0, true},
		{"only punctuation", ",.%$", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToNumber(tc.in)
			if ok != tc.wantOK {
				t.Fatalf("ToNumber(%q) ok: got %v, want %v", tc.in, ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("ToNumber(%q): got %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestToInt_Rounds(t *testing.T) {
	if v, ok := ToInt("12.6%"); !ok || v != 13 {
		t.Errorf("ToInt(12.6%%): got %d, %v", v, ok)
	}
	if _, ok := ToInt("n/a"); ok {
		t.Error("ToInt(n/a): expected absent")
	}
	if _, ok := ToInt(strings.Repeat("9", 40)); ok {
		t.Error("ToInt(huge): expected absent")
	}
}

func TestExtractRatio(t *testing.T) {
	tests := []struct {
		in     string
		want   Ratio
		wantOK bool
	}{
		{"1,234 of 10,000", Ratio{1234, 10000}, true},
		{"Operations: 1,234 of 10,000 used this month", Ratio{1234, 10000}, true},
		{"80 / 100 executions", Ratio{80, 100}, true},
		{"2.5k out of 10k", Ratio{2500, 10000}, true},
		{"450/1000", Ratio{450, 1000}, true},
		{"5 OF 20", Ratio{5, 20}, true},
		{"1 234 of 5 000", Ratio{1234, 5000}, true},
		{"no usage here", Ratio{}, false},
		{"only 42", Ratio{}, false},
	}
	for _, tc := range tests {
		got, ok := ExtractRatio(tc.in)
		if ok != tc.wantOK {
			t.Errorf("ExtractRatio(%q) ok: got %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ExtractRatio(%q): got %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestNumbers(t *testing.T) {
	got := Numbers("Created 12 Mar, 3 workflows, 1,200 runs")
	want := []float64{12, 3, 1200}
	if len(got) != len(want) {
		t.Fatalf("Numbers: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Numbers[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClean(t *testing.T) {
	if got := Clean("  a \tb\n\nc  "); got != "a b c" {
		t.Errorf("Clean: got %q", got)
	}
}

// FuzzToNumber asserts that no input makes the parsers panic and that inputs
// without any digit are always reported as absent.
func FuzzToNumber(f *testing.F) {
	for _, seed := range []string{"", "1,234", "42%", "１２３", "1,,,", "9'99'9", "-", "k", "1.2.3", "\xff\xfe"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		_, ok := ToNumber(s)
		_, _ = ExtractRatio(s)
		_ = Numbers(s)
		if ok && !strings.ContainsAny(Clean(s), "0123456789") {
			t.Errorf("ToNumber(%q) reported a number without digits", s)
		}
	})
}
