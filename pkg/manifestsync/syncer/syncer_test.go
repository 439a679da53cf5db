package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

var clock = func() time.Time { return time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC) }

func counter() manifest.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
}

func tree(t *testing.T, files ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for _, f := range files {
		if f[len(f)-1] == '/' {
			require.NoError(t, fs.MkdirAll(f, 0o755))
			continue
		}
		require.NoError(t, util.WriteFile(fs, f, []byte("content"), 0o644))
	}
	return fs
}

func manifestWith(t *testing.T, destinations ...string) *manifest.Document {
	t.Helper()
	doc := manifest.New()
	ids := counter()
	for _, d := range destinations {
		doc.Append(manifest.NewEntry(d, manifest.TypeFolder, clock(), ids))
	}
	return doc
}

func newSyncer(fs billy.Filesystem, variant string, opts ...Option) *Syncer {
	v, err := LookupVariant(variant)
	if err != nil {
		panic(err)
	}
	return New(fs, append([]Option{WithVariant(v), WithClock(clock), WithIDGenerator(counter())}, opts...)...)
}

func order(doc *manifest.Document) []string {
	var out []string
	for _, e := range doc.Entries() {
		out = append(out, e.Destination)
	}
	return out
}

func types(doc *manifest.Document) map[string]manifest.EntryType {
	out := map[string]manifest.EntryType{}
	for _, e := range doc.Entries() {
		out[e.Destination] = e.Type
	}
	return out
}

func TestSync_NewDirectoryScenario(t *testing.T) {
	t.Parallel()

	fs := tree(t, "web/res/a.png", "web/res/b.txt", "web/res/c/d.js")
	doc := manifestWith(t, "web", "web/res")

	report, err := newSyncer(fs, VariantSync).Sync(context.Background(), doc, "web/res")
	require.NoError(t, err)

	assert.Equal(t, []string{"web", "web/res", "web/res/a.png", "web/res/b.txt", "web/res/c", "web/res/c/d.js"}, order(doc))

	got := types(doc)
	assert.Equal(t, manifest.TypeImage, got["web/res/a.png"])
	assert.Equal(t, manifest.TypeFolder, got["web/res/b.txt"])
	assert.Equal(t, manifest.TypeFolder, got["web/res/c"])
	assert.Equal(t, manifest.TypePlain, got["web/res/c/d.js"])

	assert.Equal(t, []Addition{
		{Destination: "web/res/a.png", Type: manifest.TypeImage, After: "web/res"},
		{Destination: "web/res/b.txt", Type: manifest.TypeFolder, After: "web/res/a.png"},
		{Destination: "web/res/c", Type: manifest.TypeFolder, After: "web/res/b.txt"},
		{Destination: "web/res/c/d.js", Type: manifest.TypePlain, After: "web/res/c"},
	}, report.Added)
	assert.Empty(t, report.Removed)
	assert.Equal(t, "web/res", report.Prefix)
	assert.Equal(t, VariantSync, report.Variant)
	assert.True(t, report.Changed())

	e, err := doc.Lookup("web/res/a.png")
	require.NoError(t, err)
	assert.Equal(t, "web/res/a.png", e.Source)
	assert.Equal(t, "Tue, 05 Mar 2024 10:30:00 GMT", e.DateCreated)
	assert.Equal(t, manifest.DefaultUser, e.UserCreated)
	assert.Equal(t, manifest.DefaultFlags, e.Flags)
	assert.NotEqual(t, e.UUIDStructure, e.UUIDResource)
}

func TestSync_RemovesStaleEntries(t *testing.T) {
	t.Parallel()

	fs := tree(t, "res/a.png", "other/x.png")
	doc := manifestWith(t, "res", "res/a.png", "res/old.png", "res/gone", "res/gone/f.js", "other", "other/old.png", "resources/old.png")

	report, err := newSyncer(fs, VariantSync).Sync(context.Background(), doc, "res")
	require.NoError(t, err)

	assert.Equal(t, []string{"res/old.png", "res/gone", "res/gone/f.js"}, report.Removed)
	assert.Empty(t, report.Added)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, []string{"res", "res/a.png", "other", "other/old.png", "resources/old.png"}, order(doc))
}

func TestSync_FileNamesWithBothQuotes(t *testing.T) {
	t.Parallel()

	odd := `res/it's "x".png`
	fs := tree(t, odd, "res/ok.png")
	doc := manifestWith(t, "res")

	report, err := newSyncer(fs, VariantSync).Sync(context.Background(), doc, "res")
	require.NoError(t, err)
	assert.Len(t, report.Added, 2)
	assert.Equal(t, []string{"res", odd, "res/ok.png"}, order(doc))
	assert.Equal(t, manifest.TypeImage, types(doc)[odd])

	require.NoError(t, fs.Remove(odd))
	report, err = newSyncer(fs, VariantSync).Sync(context.Background(), doc, "res")
	require.NoError(t, err)
	assert.Equal(t, []string{odd}, report.Removed)
	assert.Equal(t, []string{"res", "res/ok.png"}, order(doc))
}

func TestSync_Idempotent(t *testing.T) {
	t.Parallel()

	fs := tree(t, "res/a.png", "res/b.js", "res/c/d.css", "res/e/")
	doc := manifestWith(t, "res")
	s := newSyncer(fs, VariantSync)

	_, err := s.Sync(context.Background(), doc, "res")
	require.NoError(t, err)
	first, err := doc.Bytes()
	require.NoError(t, err)

	reloaded, err := manifest.ParseString(string(first))
	require.NoError(t, err)
	report, err := s.Sync(context.Background(), reloaded, "res")
	require.NoError(t, err)
	second, err := reloaded.Bytes()
	require.NoError(t, err)

	assert.False(t, report.Changed())
	assert.Equal(t, 5, report.Kept)
	assert.Equal(t, string(first), string(second))
}

func TestSync_InsertsAfterPrecedingSibling(t *testing.T) {
	t.Parallel()

	fs := tree(t, "res/a.png", "res/b.js", "res/c/")
	// Existing records are not in listing order.
	doc := manifestWith(t, "res", "res/c", "res/a.png", "tail")

	report, err := newSyncer(fs, VariantSync).Sync(context.Background(), doc, "res")
	require.NoError(t, err)

	require.Len(t, report.Added, 1)
	assert.Equal(t, "res/a.png", report.Added[0].After)
	assert.Equal(t, []string{"res", "res/c", "res/a.png", "res/b.js", "tail"}, order(doc))
}

func TestSync_AnchorMissing(t *testing.T) {
	t.Parallel()

	fs := tree(t, "res/a.png")

	_, err := newSyncer(fs, VariantSync).Sync(context.Background(), manifestWith(t, "other"), "res")
	assert.ErrorIs(t, err, ErrAnchorMissing)

	// Nothing to insert, nothing to anchor.
	doc := manifestWith(t, "res/a.png")
	report, err := newSyncer(fs, VariantSync).Sync(context.Background(), doc, "res")
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestSync_EnsureVariant(t *testing.T) {
	t.Parallel()

	fs := tree(t,
		"res/CVS/Entries",
		"res/b.txt",
		"res/c/CVS/Root",
		"res/c/page.jsp",
		"res/Main.class",
	)
	doc := manifestWith(t, "intro")

	report, err := newSyncer(fs, VariantEnsure).Sync(context.Background(), doc, "res")
	require.NoError(t, err)

	assert.Equal(t, []string{"intro", "res", "res/Main.class", "res/b.txt", "res/c", "res/c/page.jsp"}, order(doc))
	got := types(doc)
	assert.Equal(t, manifest.TypeFolder, got["res"])
	assert.Equal(t, manifest.TypeBinary, got["res/Main.class"])
	assert.Equal(t, manifest.TypePlain, got["res/b.txt"])
	assert.Equal(t, manifest.TypeJSP, got["res/c/page.jsp"])

	require.NotEmpty(t, report.Added)
	assert.Equal(t, Addition{Destination: "res", Type: manifest.TypeFolder}, report.Added[0])
	assert.Equal(t, VariantEnsure, report.Variant)
}

func TestSync_ExtraExcludes(t *testing.T) {
	t.Parallel()

	fs := tree(t, "res/a.png", "res/a.png.bak", "res/sub/x.bak")
	doc := manifestWith(t, "res")

	_, err := newSyncer(fs, VariantSync, WithExcludes("**.bak")).Sync(context.Background(), doc, "res")
	require.NoError(t, err)
	assert.Equal(t, []string{"res", "res/a.png", "res/sub"}, order(doc))
}

func TestSync_Sniffing(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "res/logo", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))
	require.NoError(t, util.WriteFile(fs, "res/notes", []byte("plain words\n"), 0o644))

	doc := manifestWith(t, "res")
	_, err := newSyncer(fs, VariantSync, WithSniffer(true)).Sync(context.Background(), doc, "res")
	require.NoError(t, err)

	got := types(doc)
	assert.Equal(t, manifest.TypeImage, got["res/logo"])
	assert.Equal(t, manifest.TypePlain, got["res/notes"])

	plain := manifestWith(t, "res")
	_, err = newSyncer(fs, VariantSync).Sync(context.Background(), plain, "res")
	require.NoError(t, err)
	assert.Equal(t, manifest.TypeFolder, types(plain)["res/logo"])
}

func TestSync_Errors(t *testing.T) {
	t.Parallel()

	fs := tree(t, "res/a.png")
	s := newSyncer(fs, VariantSync)

	for _, dir := range []string{"", ".", "..", "../res", "/res"} {
		_, err := s.Sync(context.Background(), manifestWith(t, "res"), dir)
		assert.ErrorIs(t, err, ErrOutsideBase, dir)
	}

	_, err := s.Sync(context.Background(), manifestWith(t, "missing"), "missing")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Sync(ctx, manifestWith(t, "res"), "res")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"res":          "res",
		"./res/":       "res",
		"res/sub/../x": "res/x",
		`res\win`:      "res/win",
	}
	for in, want := range tests {
		got, err := NormalizePrefix(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s := New(memfs.New())
	assert.Equal(t, VariantSync, s.Variant().Name)
	assert.NotNil(t, s.logger)
}
