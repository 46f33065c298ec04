package rudeedit

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capabilities is the set of edit categories the host runtime allows.
type Capabilities uint16

// Capability bits.
const (
	CapBaseline Capabilities = 1 << iota
	CapAddMethod
	CapAddInstanceField
	CapAddStaticField
	CapNewType
	CapEditSuspendedIterator
	CapEditSuspendedAsync

	capabilityLimit
)

// DefaultCapabilities is what a host that supports every edit category grants.
const DefaultCapabilities = capabilityLimit - 1

var capabilityNames = []string{
	"baseline",
	"add-method",
	"add-instance-field",
	"add-static-field",
	"new-type",
	"edit-suspended-iterator",
	"edit-suspended-async",
}

// ParseCapabilities builds a set from capability names.
func ParseCapabilities(names []string) (Capabilities, error) {
	var caps Capabilities

	for _, name := range names {
		capability, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}

		caps |= capability
	}

	return caps, nil
}

// ParseCapability maps one capability name to its bit.
func ParseCapability(name string) (Capabilities, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))

	for idx, known := range capabilityNames {
		if known == normalized {
			return 1 << idx, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// Has reports whether every capability in want is present.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// Names returns the names of the capabilities in the set.
func (c Capabilities) Names() []string {
	names := make([]string, 0, bits.OnesCount16(uint16(c)))

	for idx, name := range capabilityNames {
		if c&(1<<idx) != 0 {
			names = append(names, name)
		}
	}

	return names
}

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}

	return strings.Join(c.Names(), ",")
}
