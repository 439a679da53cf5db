package syncer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

// Built-in variant names.
const (
	VariantSync   = "sync"
	VariantEnsure = "ensure"
)

// CVSExcludes skips CVS bookkeeping directories and their contents.
var CVSExcludes = []string{"CVS", "CVS/**", "**/CVS", "**/CVS/**"}

// ErrUnknownVariant is returned when no variant is registered under a name.
var ErrUnknownVariant = errors.New("unknown variant")

// Variant is one flavour of the synchronizer.
type Variant struct {
	Name        string
	Description string

	// Classifier assigns entry types to new records.
	Classifier *manifest.Classifier

	// Excludes are glob patterns for listing items that are never added.
	Excludes []string

	// CreateAnchor appends a folder record for the synchronized directory
	// when the manifest has none. Without it a missing directory record is
	// an error as soon as something has to be inserted after it.
	CreateAnchor bool
}

var variants = struct {
	sync.RWMutex
	byName map[string]Variant
}{byName: make(map[string]Variant)}

func init() {
	MustRegister(Variant{
		Name:        VariantSync,
		Description: "classic extension table; the directory must already have a record",
		Classifier:  manifest.ClassicClassifier(),
	})
	MustRegister(Variant{
		Name:         VariantEnsure,
		Description:  "extended extension table, skips CVS, creates the directory record",
		Classifier:   manifest.ExtendedClassifier(),
		Excludes:     CVSExcludes,
		CreateAnchor: true,
	})
}

// Register adds v to the variant registry.
func Register(v Variant) error {
	if v.Name == "" {
		return errors.New("variant name is empty")
	}
	if v.Classifier == nil {
		return fmt.Errorf("variant %s has no classifier", v.Name)
	}

	variants.Lock()
	defer variants.Unlock()

	if _, exists := variants.byName[v.Name]; exists {
		return fmt.Errorf("variant %s already registered", v.Name)
	}
	variants.byName[v.Name] = v
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister(v Variant) {
	if err := Register(v); err != nil {
		panic(err)
	}
}

// LookupVariant returns the variant registered as name.
func LookupVariant(name string) (Variant, error) {
	variants.RLock()
	defer variants.RUnlock()

	v, ok := variants.byName[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownVariant, name, variantNames())
	}
	return v, nil
}

// Variants returns the registered variant names, sorted.
func Variants() []string {
	variants.RLock()
	defer variants.RUnlock()
	return variantNames()
}

// variantNames must be called with the registry lock held.
func variantNames() []string {
	names := make([]string, 0, len(variants.byName))
	for name := range variants.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
