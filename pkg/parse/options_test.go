package parse

import "testing"

func TestSelectStrategy(t *testing.T) {
	opts := Options{ScalarMaxTriangles: 100, FlatArrayMinTriangles: 1000}.Normalize()

	tests := []struct {
		n    int
		want Strategy
	}{
		{0, StrategyScalar},
		{99, StrategyScalar},
		{100, StrategyBulk},
		{999, StrategyBulk},
		{1000, StrategyFlat},
		{5_000_000, StrategyFlat},
	}

	for _, tt := range tests {
		if got := opts.SelectStrategy(tt.n); got != tt.want {
			t.Errorf("SelectStrategy(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestSelectStrategyOverride(t *testing.T) {
	opts := Options{Strategy: StrategyFlat}.Normalize()
	if got := opts.SelectStrategy(1); got != StrategyFlat {
		t.Errorf("expected forced strategy flat, got %v", got)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	opts := DefaultOptions()

	if opts.MaxTriangles != DefaultMaxTriangles {
		t.Errorf("expected MaxTriangles %d, got %d", DefaultMaxTriangles, opts.MaxTriangles)
	}
	if opts.Workers <= 0 {
		t.Errorf("expected positive worker count, got %d", opts.Workers)
	}
	if opts.Logger == nil {
		t.Error("expected a no-op logger by default")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyAuto, StrategyScalar, StrategyBulk, StrategyFlat} {
		got, err := ParseStrategy(s.String())
		if err != nil {
			t.Fatalf("ParseStrategy(%q) failed: %v", s.String(), err)
		}
		if got != s {
			t.Errorf("ParseStrategy(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if _, err := ParseStrategy("simd"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
