package classdict

import (
	"sort"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
)

// Dictionary is the registry of class descriptors a network is built
// from (spec §4.2). It is built once at startup by a sequence of
// Register calls and treated as immutable afterward — reads need no
// lock once construction is done, matching the teacher's plugin catalog
// (built once in an init-time map, read concurrently by every chain
// thereafter).
type Dictionary struct {
	classes map[string]*ClassDescriptor
}

// New returns an empty dictionary ready for Register calls.
func New() *Dictionary {
	return &Dictionary{classes: make(map[string]*ClassDescriptor)}
}

// Register adds desc to the dictionary under desc.Label. Registering the
// same label twice is a Duplicate error (spec §4.2: class labels are
// unique within a dictionary).
func (d *Dictionary) Register(desc *ClassDescriptor) error {
	if desc.Label == "" {
		return ferr.New(ferr.InvalidArgument, "class descriptor has no label")
	}
	if _, exists := d.classes[desc.Label]; exists {
		return ferr.New(ferr.Duplicate, "class %q already registered", desc.Label)
	}
	d.classes[desc.Label] = desc
	return nil
}

// Lookup returns the class descriptor for label, or EleNotFound.
func (d *Dictionary) Lookup(label string) (*ClassDescriptor, error) {
	c, ok := d.classes[label]
	if !ok {
		return nil, ferr.New(ferr.EleNotFound, "class %q not registered", label)
	}
	return c, nil
}

// Labels returns every registered class label, sorted, for introspection
// and diagnostics.
func (d *Dictionary) Labels() []string {
	out := make([]string, 0, len(d.classes))
	for label := range d.classes {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of registered classes.
func (d *Dictionary) Len() int { return len(d.classes) }
