// Package xpath resolves and mutates XML documents using a small subset of
// XPath: slash-separated element steps with optional predicates of the form
// [child='value'] and [@attr='value'].
//
// Unlike a general XPath engine, every path can also be used for writing:
// when no node matches, the missing element chain is synthesized, with each
// predicate turned into a child element or attribute so the path resolves
// afterwards.
package xpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPath is returned when a path expression cannot be parsed.
var ErrMalformedPath = errors.New("malformed path")

// PredicateKind distinguishes child-element predicates from attribute predicates.
type PredicateKind int

const (
	// ChildPredicate matches a child element whose text equals Value.
	ChildPredicate PredicateKind = iota
	// AttrPredicate matches an attribute whose value equals Value.
	AttrPredicate
)

// Predicate is a single bracketed condition on a step.
type Predicate struct {
	Kind  PredicateKind
	Name  string
	Value string
}

// Step is one slash-separated component of a path.
type Step struct {
	Name       string
	Predicates []Predicate
}

// Path is a compiled path expression.
type Path struct {
	raw   string
	Steps []Step
}

// String returns the expression the path was compiled from, or a rendering
// of its steps for paths assembled with Join.
func (p Path) String() string {
	if p.raw != "" {
		return p.raw
	}
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// String renders the step. Values holding both quote characters are shown
// with double quotes and cannot be parsed back.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, pred := range s.Predicates {
		b.WriteByte('[')
		if pred.Kind == AttrPredicate {
			b.WriteByte('@')
		}
		b.WriteString(pred.Name)
		b.WriteByte('=')
		if strings.Contains(pred.Value, "'") {
			b.WriteString(`"` + pred.Value + `"`)
		} else {
			b.WriteString("'" + pred.Value + "'")
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Where returns a step selecting name by the text of a child element. The
// value is compared verbatim, so unlike a parsed predicate it may contain
// any character.
func Where(name, child, value string) Step {
	return Step{Name: name, Predicates: []Predicate{{Kind: ChildPredicate, Name: child, Value: value}}}
}

// And returns a copy of s with one more child predicate.
func (s Step) And(child, value string) Step {
	preds := make([]Predicate, len(s.Predicates), len(s.Predicates)+1)
	copy(preds, s.Predicates)
	s.Predicates = append(preds, Predicate{Kind: ChildPredicate, Name: child, Value: value})
	return s
}

// Join returns a new path with steps appended to p.
func (p Path) Join(steps ...Step) Path {
	joined := make([]Step, 0, len(p.Steps)+len(steps))
	joined = append(joined, p.Steps...)
	joined = append(joined, steps...)
	return Path{Steps: joined}
}

// Elem returns a step without predicates.
func Elem(name string) Step {
	return Step{Name: name}
}

// MustParse is like Parse but panics on malformed input.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse compiles a path expression.
func Parse(expr string) (Path, error) {
	trimmed := strings.TrimSpace(expr)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return Path{}, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}

	parts, err := splitSteps(trimmed)
	if err != nil {
		return Path{}, fmt.Errorf("%w: %q: %v", ErrMalformedPath, expr, err)
	}

	steps := make([]Step, 0, len(parts))
	for _, part := range parts {
		step, err := parseStep(part)
		if err != nil {
			return Path{}, fmt.Errorf("%w: %q: %v", ErrMalformedPath, expr, err)
		}
		steps = append(steps, step)
	}

	return Path{raw: expr, Steps: steps}, nil
}

// ParseStep compiles a single step such as file[destination='a/b'].
func ParseStep(expr string) (Step, error) {
	step, err := parseStep(strings.TrimSpace(expr))
	if err != nil {
		return Step{}, fmt.Errorf("%w: %q: %v", ErrMalformedPath, expr, err)
	}
	return step, nil
}

// splitSteps splits on slashes that are outside brackets and quotes.
func splitSteps(s string) ([]string, error) {
	var (
		parts []string
		depth int
		quote rune
		start int
	)

	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			if depth == 0 {
				return nil, fmt.Errorf("quote outside predicate at offset %d", i)
			}
			quote = r
		case r == '[':
			if depth > 0 {
				return nil, fmt.Errorf("nested bracket at offset %d", i)
			}
			depth++
		case r == ']':
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced ']' at offset %d", i)
			}
			depth--
		case r == '/' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}

	if quote != 0 {
		return nil, errors.New("unterminated quoted value")
	}
	if depth != 0 {
		return nil, errors.New("unbalanced '['")
	}

	return append(parts, s[start:]), nil
}

// parseStep parses name followed by zero or more predicates.
func parseStep(s string) (Step, error) {
	if s == "" {
		return Step{}, errors.New("empty step")
	}

	open := strings.IndexByte(s, '[')
	name := s
	rest := ""
	if open >= 0 {
		name = s[:open]
		rest = s[open:]
	}
	if !validName(name) {
		return Step{}, fmt.Errorf("invalid element name %q", name)
	}

	step := Step{Name: name}
	for rest != "" {
		if rest[0] != '[' {
			return Step{}, fmt.Errorf("unexpected %q after predicate", rest)
		}
		end, err := predicateEnd(rest)
		if err != nil {
			return Step{}, err
		}
		pred, err := parsePredicate(rest[1:end])
		if err != nil {
			return Step{}, err
		}
		step.Predicates = append(step.Predicates, pred)
		rest = rest[end+1:]
	}

	return step, nil
}

// predicateEnd returns the index of the ']' closing the predicate that starts at s[0].
func predicateEnd(s string) (int, error) {
	var quote byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ']':
			return i, nil
		}
	}
	return 0, errors.New("unbalanced '['")
}

// parsePredicate parses the inside of a bracket: name='value' or @name='value'.
func parsePredicate(s string) (Predicate, error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return Predicate{}, fmt.Errorf("predicate %q has no '='", s)
	}

	name := strings.TrimSpace(s[:eq])
	kind := ChildPredicate
	if strings.HasPrefix(name, "@") {
		kind = AttrPredicate
		name = name[1:]
	}
	if !validName(name) {
		return Predicate{}, fmt.Errorf("predicate %q has invalid name", s)
	}

	value, err := unquote(strings.TrimSpace(s[eq+1:]))
	if err != nil {
		return Predicate{}, fmt.Errorf("predicate %q: %w", s, err)
	}

	return Predicate{Kind: kind, Name: name, Value: value}, nil
}

func unquote(s string) (string, error) {
	if len(s) < 2 {
		return "", errors.New("value must be quoted")
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return "", errors.New("value must be quoted")
	}
	inner := s[1 : len(s)-1]
	if strings.IndexByte(inner, q) >= 0 {
		return "", errors.New("stray quote in value")
	}
	return inner, nil
}

// validName accepts XML-ish element names, optionally namespace-prefixed.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == ':' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// Quote returns value wrapped in quotes suitable for a predicate.
// Single quotes are preferred; values containing both quote characters
// cannot be expressed and are rejected.
func Quote(value string) (string, error) {
	switch {
	case !strings.Contains(value, "'"):
		return "'" + value + "'", nil
	case !strings.Contains(value, `"`):
		return `"` + value + `"`, nil
	default:
		return "", fmt.Errorf("%w: value %q contains both quote characters", ErrMalformedPath, value)
	}
}

// Child returns a step string selecting tag by a child element value,
// e.g. Child("file", "destination", "a/b") == "file[destination='a/b']".
func Child(tag, child, value string) (string, error) {
	q, err := Quote(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%s=%s]", tag, child, q), nil
}
