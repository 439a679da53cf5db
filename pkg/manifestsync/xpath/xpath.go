package xpath

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// ErrNotFound is returned when a path resolves to no nodes.
var ErrNotFound = errors.New("no node matches path")

// OutcomeKind reports what a mutation did to the document.
type OutcomeKind int

const (
	// Updated means existing nodes matched and were modified.
	Updated OutcomeKind = iota
	// Created means no node matched and the element chain was synthesized.
	Created
)

// String returns the lowercase name of the outcome.
func (k OutcomeKind) String() string {
	switch k {
	case Updated:
		return "updated"
	case Created:
		return "created"
	default:
		return "unknown"
	}
}

// Outcome is the result of SetValue.
type Outcome struct {
	Kind  OutcomeKind
	Count int
}

// Find returns all elements matching expr in document order.
func Find(doc *etree.Document, expr string) ([]*etree.Element, error) {
	p, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return p.Find(doc), nil
}

// GetValue returns the text of the first element matching expr.
func GetValue(doc *etree.Document, expr string) (string, error) {
	p, err := Parse(expr)
	if err != nil {
		return "", err
	}
	return p.Value(doc)
}

// SetValue sets the text of every element matching expr. When nothing
// matches, the missing chain is created below the deepest existing ancestor
// and the text is set on the new leaf. A created leaf with an empty value is
// left without character data so it serializes as an empty element.
func SetValue(doc *etree.Document, expr, value string) (Outcome, error) {
	p, err := Parse(expr)
	if err != nil {
		return Outcome{}, err
	}
	return p.SetValue(doc, value), nil
}

// Remove deletes every element matching expr together with its subtree.
// It returns the number of removed elements.
func Remove(doc *etree.Document, expr string) (int, error) {
	p, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return p.Remove(doc), nil
}

// InsertAfter creates the element described by the single step sibling and
// places it immediately after the first element matching anchor.
func InsertAfter(doc *etree.Document, anchor, sibling string) (*etree.Element, error) {
	p, err := Parse(anchor)
	if err != nil {
		return nil, err
	}
	step, err := ParseStep(sibling)
	if err != nil {
		return nil, err
	}
	return p.InsertAfter(doc, step)
}

// Value returns the text of the first element matching the path.
func (p Path) Value(doc *etree.Document) (string, error) {
	matches := p.Find(doc)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return matches[0].Text(), nil
}

// SetValue is the compiled form of the package-level SetValue.
func (p Path) SetValue(doc *etree.Document, value string) Outcome {
	if matches := p.Find(doc); len(matches) > 0 {
		for _, e := range matches {
			e.SetText(value)
		}
		return Outcome{Kind: Updated, Count: len(matches)}
	}

	leaf := p.create(doc)
	if value != "" {
		leaf.SetText(value)
	}
	return Outcome{Kind: Created, Count: 1}
}

// Remove deletes every element matching the path and returns how many.
func (p Path) Remove(doc *etree.Document) int {
	matches := p.Find(doc)
	for _, e := range matches {
		if parent := e.Parent(); parent != nil {
			parent.RemoveChild(e)
		}
	}
	return len(matches)
}

// InsertAfter builds sibling and places it right after the first match of p.
func (p Path) InsertAfter(doc *etree.Document, sibling Step) (*etree.Element, error) {
	matches := p.Find(doc)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	target := matches[0]
	parent := target.Parent()
	if parent == nil {
		return nil, fmt.Errorf("%w: anchor %s has no parent", ErrNotFound, p)
	}

	e := sibling.build()
	parent.InsertChildAt(target.Index()+1, e)
	return e, nil
}

// Find returns all elements matching the path in document order.
func (p Path) Find(doc *etree.Document) []*etree.Element {
	current := []*etree.Element{&doc.Element}
	for _, step := range p.Steps {
		var next []*etree.Element
		for _, e := range current {
			for _, child := range e.ChildElements() {
				if step.matches(child) {
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// create synthesizes the shortest missing suffix of the path and returns the leaf.
func (p Path) create(doc *etree.Document) *etree.Element {
	parent := &doc.Element
	i := 0
	for ; i < len(p.Steps); i++ {
		found := firstMatch(parent, p.Steps[i])
		if found == nil {
			break
		}
		parent = found
	}

	for ; i < len(p.Steps); i++ {
		e := p.Steps[i].build()
		parent.AddChild(e)
		parent = e
	}
	return parent
}

func firstMatch(parent *etree.Element, step Step) *etree.Element {
	for _, child := range parent.ChildElements() {
		if step.matches(child) {
			return child
		}
	}
	return nil
}

// matches reports whether e has the step's tag and satisfies every predicate.
func (s Step) matches(e *etree.Element) bool {
	if e.FullTag() != s.Name && e.Tag != s.Name {
		return false
	}
	for _, pred := range s.Predicates {
		switch pred.Kind {
		case AttrPredicate:
			attr := e.SelectAttr(pred.Name)
			if attr == nil || attr.Value != pred.Value {
				return false
			}
		case ChildPredicate:
			if !hasChildText(e, pred.Name, pred.Value) {
				return false
			}
		}
	}
	return true
}

func hasChildText(e *etree.Element, tag, value string) bool {
	for _, child := range e.SelectElements(tag) {
		if child.Text() == value {
			return true
		}
	}
	return false
}

// build creates a detached element for the step, predicates applied in order.
func (s Step) build() *etree.Element {
	e := etree.NewElement(s.Name)
	for _, pred := range s.Predicates {
		switch pred.Kind {
		case AttrPredicate:
			e.CreateAttr(pred.Name, pred.Value)
		case ChildPredicate:
			e.CreateElement(pred.Name).SetText(pred.Value)
		}
	}
	return e
}
