// Package rudeedit classifies edits that cannot be applied to a running
// process. Classification is table driven: rules are keyed by edit kind and
// node kind and filtered by the structural context of the edited node.
package rudeedit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for diagnostics and rule tables.
var (
	ErrUnknownKind       = errors.New("unknown rude edit kind")
	ErrUnknownSeverity   = errors.New("unknown severity")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrUnknownContext    = errors.New("unknown rule context")
	ErrInvalidTable      = errors.New("invalid rule table")
)

// Kind is the closed taxonomy of rude edits.
type Kind uint8

// Rude edit kinds.
const (
	KindNone Kind = iota
	KindSignatureChanged
	KindModifiersChanged
	KindCaptureChanged
	KindSuspensionPointChanged
	KindStateMachineKindChanged
	KindUnsupportedConstruct
	KindActiveStatementDeleted
	KindActiveStatementUpdated
	KindExceptionRegionDeleted
	KindInsertAroundActiveStatement
	KindDeleteAroundActiveStatement
	KindUpdateAroundActiveStatement
	KindLocalStateLost
	KindDeclarationDeleted
	KindTypeChanged
	KindCallTargetChanged
	KindMissingImplementation
	KindCapabilityRequired
	KindMemberReordered

	kindCount
)

type kindInfo struct {
	name     string
	template string
}

var kinds = [kindCount]kindInfo{
	KindNone:                        {"none", ""},
	KindSignatureChanged:            {"signature-changed", "changing the signature of '%s' requires restarting the program"},
	KindModifiersChanged:            {"modifiers-changed", "changing the modifiers of '%s' from '%s' to '%s' requires restarting the program"},
	KindCaptureChanged:              {"capture-changed", "changing the variables captured by a lambda in '%s' from [%s] to [%s]"},
	KindSuspensionPointChanged:      {"suspension-point-changed", "state machine shape of '%s' changed while suspended: %s"},
	KindStateMachineKindChanged:     {"state-machine-kind-changed", "changing '%s' from %s to %s while it has a live instance"},
	KindUnsupportedConstruct:        {"unsupported-construct", "'%s' is not fully supported when editing a running program"},
	KindActiveStatementDeleted:      {"active-statement-deleted", "an active statement in '%s' has been deleted"},
	KindActiveStatementUpdated:      {"active-statement-updated", "an active statement in '%s' has been updated"},
	KindExceptionRegionDeleted:      {"exception-region-deleted", "the '%s' region around an active statement was removed or emptied"},
	KindInsertAroundActiveStatement: {"insert-around-active-statement", "inserting '%s' around an active statement"},
	KindDeleteAroundActiveStatement: {"delete-around-active-statement", "deleting '%s' around an active statement"},
	KindUpdateAroundActiveStatement: {"update-around-active-statement", "updating '%s' around an active statement"},
	KindLocalStateLost:              {"local-state-lost", "local '%s' declared before a suspended statement cannot be preserved"},
	KindDeclarationDeleted:          {"declaration-deleted", "deleting '%s'"},
	KindTypeChanged:                 {"type-changed", "changing the type of '%s' from '%s' to '%s'"},
	KindCallTargetChanged:           {"call-target-changed", "call '%s' now binds to '%s' instead of '%s'"},
	KindMissingImplementation:       {"missing-implementation", "deleting '%s' removes the only implementation of '%s'"},
	KindCapabilityRequired:          {"capability-required", "'%s' requires the '%s' capability"},
	KindMemberReordered:             {"member-reordered", "reordering '%s' changes the layout of its type"},
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}

	return kinds[k].name
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for idx, info := range kinds {
		if info.name == strings.ToLower(name) {
			return Kind(idx), nil
		}
	}

	return KindNone, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// Kinds returns every rude edit kind except KindNone.
func Kinds() []Kind {
	all := make([]Kind, 0, kindCount-1)

	for k := KindNone + 1; k < kindCount; k++ {
		all = append(all, k)
	}

	return all
}

// Severity grades a diagnostic. Blocking sorts before Informational.
type Severity uint8

// Severities.
const (
	Informational Severity = iota
	Blocking
)

func (s Severity) String() string {
	if s == Blocking {
		return "blocking"
	}

	return "informational"
}

// ParseSeverity maps a severity name back to its Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(name) {
	case "blocking":
		return Blocking, nil
	case "informational", "info":
		return Informational, nil
	default:
		return Informational, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
