package step

import (
	"regexp"
	"strings"
)

// statement is one ';' terminated statement of an exchange file
type statement struct {
	text string
	line int
}

var (
	recordRe = regexp.MustCompile(`(?s)^#(\d+)\s*=\s*(.*)$`)
	typeRe   = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\s*(\(.*\))$`)
)

// splitter cuts exchange file text into statements. Semicolons inside
// quoted strings and comments do not terminate a statement.
type splitter struct {
	data []byte
	pos  int
	line int
}

func newSplitter(data []byte) *splitter {
	return &splitter{data: data, line: 1}
}

// offset returns the number of bytes consumed so far
func (s *splitter) offset() int {
	return s.pos
}

// next returns the next statement, or false at the end of input. A
// trailing fragment without a terminating ';' is returned with ok=false
// and unterminated=true.
func (s *splitter) next() (st statement, ok bool, unterminated bool) {
	var sb strings.Builder
	start := -1
	inString := false

	for s.pos < len(s.data) {
		c := s.data[s.pos]

		if inString {
			sb.WriteByte(c)
			if c == '\n' {
				s.line++
			}
			if c == '\'' {
				if s.pos+1 < len(s.data) && s.data[s.pos+1] == '\'' {
					sb.WriteByte('\'')
					s.pos += 2
					continue
				}
				inString = false
			}
			s.pos++
			continue
		}

		switch {
		case c == '/' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '*':
			end := strings.Index(string(s.data[s.pos+2:]), "*/")
			if end < 0 {
				s.pos = len(s.data)
				continue
			}
			comment := s.data[s.pos : s.pos+2+end+2]
			s.line += strings.Count(string(comment), "\n")
			s.pos += len(comment)
			continue
		case c == ';':
			s.pos++
			text := strings.TrimSpace(sb.String())
			if start < 0 {
				start = s.line
			}
			return statement{text: text, line: start}, true, false
		case c == '\'':
			inString = true
		case c == '\n':
			s.line++
		}

		if start < 0 && c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			start = s.line
		}
		if c == '\r' || c == '\n' {
			c = ' '
		}
		sb.WriteByte(c)
		s.pos++
	}

	if text := strings.TrimSpace(sb.String()); text != "" {
		return statement{text: text, line: start}, false, true
	}
	return statement{}, false, false
}

// record splits "#id = TYPE(params)" into its parts. Complex records of
// the form "#id = (A(...) B(...))" return an empty type name and the
// bracketed body.
func splitRecord(text string) (id string, typeName string, body string, ok bool) {
	m := recordRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", "", false
	}
	id, rest := m[1], strings.TrimSpace(m[2])
	if strings.HasPrefix(rest, "(") {
		return id, "", rest, true
	}
	t := typeRe.FindStringSubmatch(rest)
	if t == nil {
		return "", "", "", false
	}
	return id, strings.ToUpper(t[1]), t[2], true
}

// splitCall splits "NAME(params)" as used in the header section
func splitCall(text string) (string, string, bool) {
	t := typeRe.FindStringSubmatch(text)
	if t == nil {
		return "", "", false
	}
	return strings.ToUpper(t[1]), t[2], true
}
