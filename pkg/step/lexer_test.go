package step

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitter(t *testing.T) {
	data := []byte("ISO-10303-21;\n/* a; comment\nover lines */\n#1=A('x;y',\n  'it''s');\n#2=B(1.);")
	sp := newSplitter(data)

	want := []statement{
		{text: "ISO-10303-21", line: 1},
		{text: "#1=A('x;y',   'it''s')", line: 4},
		{text: "#2=B(1.)", line: 6},
	}
	for i, w := range want {
		st, ok, unterminated := sp.next()
		if !ok || unterminated {
			t.Fatalf("statement %d: expected ok, got ok=%v unterminated=%v", i, ok, unterminated)
		}
		if st != w {
			t.Errorf("statement %d: expected %+v, got %+v", i, w, st)
		}
	}
	if _, ok, unterminated := sp.next(); ok || unterminated {
		t.Errorf("expected end of input, got ok=%v unterminated=%v", ok, unterminated)
	}
}

func TestSplitRecord(t *testing.T) {
	tests := []struct {
		text     string
		id       string
		typeName string
		body     string
		ok       bool
	}{
		{"#12=cartesian_point('',(0.,1.,2.))", "12", "CARTESIAN_POINT", "('',(0.,1.,2.))", true},
		{"#3 = PLANE ('',#4)", "3", "PLANE", "('',#4)", true},
		{"#7=(A(1) B(2))", "7", "", "(A(1) B(2))", true},
		{"#x=PLANE('',#4)", "", "", "", false},
		{"PLANE('',#4)", "", "", "", false},
	}
	for _, tt := range tests {
		id, typeName, body, ok := splitRecord(tt.text)
		if ok != tt.ok || id != tt.id || typeName != tt.typeName || body != tt.body {
			t.Errorf("splitRecord(%q) = %q, %q, %q, %v", tt.text, id, typeName, body, ok)
		}
	}
}

func TestParseList(t *testing.T) {
	values, err := parseList(`('it''s',#12,$,*,.T.,(1.,-2.5E-1),LENGTH_MEASURE(2.5),"0F",())`)
	if err != nil {
		t.Fatalf("parseList() error = %v", err)
	}
	if len(values) != 9 {
		t.Fatalf("expected 9 values, got %d", len(values))
	}

	if values[0].Kind != KindString || values[0].Str != "it's" {
		t.Errorf("expected string it's, got %v", values[0])
	}
	if values[1].Kind != KindRef || values[1].Ref != 12 {
		t.Errorf("expected reference #12, got %v", values[1])
	}
	if values[2].IsSet() || values[3].IsSet() {
		t.Errorf("expected unset placeholders, got %v %v", values[2], values[3])
	}
	if b, ok := values[4].Bool(); !ok || !b {
		t.Errorf("expected .T., got %v", values[4])
	}
	if l := values[5]; l.Kind != KindList || len(l.List) != 2 || l.List[1].Num != -0.25 {
		t.Errorf("expected list (1,-0.25), got %v", l)
	}
	if v := values[6]; v.Kind != KindTyped || v.Str != "LENGTH_MEASURE" || v.List[0].Num != 2.5 {
		t.Errorf("expected typed measure, got %v", v)
	}
	if values[7].Kind != KindBinary || values[7].Str != "0F" {
		t.Errorf("expected binary 0F, got %v", values[7])
	}
	if values[8].Kind != KindList || len(values[8].List) != 0 {
		t.Errorf("expected empty list, got %v", values[8])
	}
	if got := values[0].String(); got != "'it''s'" {
		t.Errorf("String() failed: expected 'it''s', got %s", got)
	}
}

func TestParseListDepth(t *testing.T) {
	nested := func(n int) string {
		return strings.Repeat("(", n) + strings.Repeat(")", n)
	}
	if _, err := parseList(nested(maxListDepth)); err != nil {
		t.Errorf("parseList at depth %d: %v", maxListDepth, err)
	}
	_, err := parseList(nested(maxListDepth + 1))
	var syn *syntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("expected syntax error past depth %d, got %v", maxListDepth, err)
	}
	if syn.pos != maxListDepth {
		t.Errorf("expected error at column %d, got %d", maxListDepth+1, syn.pos+1)
	}
}

func TestParseListErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"(1.,2.",
		"(1. 2.)",
		"('open)",
		"(#)",
		"(.T)",
		"(1.) trailing",
	} {
		if _, err := parseList(input); err == nil {
			t.Errorf("parseList(%q): expected error", input)
		}
	}
}
