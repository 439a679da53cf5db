package xpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Step
	}{
		{
			name:  "plain steps",
			input: "export/files/file",
			want:  []Step{{Name: "export"}, {Name: "files"}, {Name: "file"}},
		},
		{
			name:  "leading slash",
			input: "/export/info",
			want:  []Step{{Name: "export"}, {Name: "info"}},
		},
		{
			name:  "child predicate containing slashes",
			input: "export/files/file[destination='system/modules/a.png']/type",
			want: []Step{
				{Name: "export"},
				{Name: "files"},
				{Name: "file", Predicates: []Predicate{{Kind: ChildPredicate, Name: "destination", Value: "system/modules/a.png"}}},
				{Name: "type"},
			},
		},
		{
			name:  "attribute predicate with double quotes",
			input: `config[@name="x"]`,
			want:  []Step{{Name: "config", Predicates: []Predicate{{Kind: AttrPredicate, Name: "name", Value: "x"}}}},
		},
		{
			name:  "chained predicates keep order",
			input: "a/b[@id='1'][c='two']",
			want: []Step{
				{Name: "a"},
				{Name: "b", Predicates: []Predicate{
					{Kind: AttrPredicate, Name: "id", Value: "1"},
					{Kind: ChildPredicate, Name: "c", Value: "two"},
				}},
			},
		},
		{
			name:  "bracket inside quoted value",
			input: "a[b='x]y']",
			want:  []Step{{Name: "a", Predicates: []Predicate{{Kind: ChildPredicate, Name: "b", Value: "x]y"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Steps)
			assert.Equal(t, tt.input, p.String())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"/",
		"a//b",
		"a/b/",
		"a[b='c'",
		"a]b",
		"a[b='c']]",
		"a[[b='c']]",
		"a[b=c]",
		"a[b='c]",
		"a[='c']",
		"a[@='c']",
		"a[b]",
		"a[b='c']d",
		"1a",
		"a b",
		"a'b'",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPath)
		})
	}
}

func TestParseStep(t *testing.T) {
	step, err := ParseStep("file[destination='a']")
	require.NoError(t, err)
	assert.Equal(t, "file", step.Name)
	require.Len(t, step.Predicates, 1)

	_, err = ParseStep("file[destination='a'")
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestQuote(t *testing.T) {
	q, err := Quote("plain")
	require.NoError(t, err)
	assert.Equal(t, "'plain'", q)

	q, err = Quote("it's")
	require.NoError(t, err)
	assert.Equal(t, `"it's"`, q)

	_, err = Quote(`it's "both"`)
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestChild(t *testing.T) {
	s, err := Child("file", "destination", "a/b.png")
	require.NoError(t, err)
	assert.Equal(t, "file[destination='a/b.png']", s)

	step, err := ParseStep(s)
	require.NoError(t, err)
	assert.Equal(t, "a/b.png", step.Predicates[0].Value)
}

func TestWhereAndJoin(t *testing.T) {
	name := `it's "both".png`
	step := Where("file", "source", name).And("destination", name)
	require.Len(t, step.Predicates, 2)
	assert.Equal(t, Predicate{Kind: ChildPredicate, Name: "destination", Value: name}, step.Predicates[1])

	base := MustParse("export/files")
	p := base.Join(step, Elem("type"))
	assert.Len(t, base.Steps, 2)
	assert.Len(t, p.Steps, 4)
	assert.Equal(t, "export/files", base.String())

	attr := Step{Name: "module", Predicates: []Predicate{{Kind: AttrPredicate, Name: "name", Value: "core"}}}
	assert.Equal(t, "export/module[@name='core']/version", MustParse("export").Join(attr, Elem("version")).String())
	assert.Equal(t, `file[destination="it's"]`, Where("file", "destination", "it's").String())

	assert.Panics(t, func() { MustParse("a[") })
}
