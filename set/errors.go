package set

import (
	"fmt"
)

// UnknownTypeError is returned when no registered type matches the
// requested name and family of a create command.
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("syntax error: unknown settype %s", e.TypeName)
}

// DupRevisionError is returned when a type with the same name and revision
// is registered twice.
type DupRevisionError struct {
	Name     string
	Revision uint8
}

func (e *DupRevisionError) Error() string {
	return fmt.Sprintf("settype %s with revision %d is already registered", e.Name, e.Revision)
}

// ExistsError is returned when a set name is added to the cache twice.
type ExistsError struct {
	Name string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("set %s is already in the cache", e.Name)
}

// NotFoundError is returned by cache operations referencing an absent set.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("set %s is not in the cache", e.Name)
}

// MismatchDirection tells the user which side of the version mismatch has
// to be upgraded.
type MismatchDirection uint8

const (
	// UpgradeLibrary: the kernel's minimum supported revision is newer
	// than anything this library implements.
	UpgradeLibrary MismatchDirection = iota
	// UpgradeKernel: the kernel's maximum supported revision is older
	// than anything this library implements.
	UpgradeKernel
)

// VersionMismatchError is returned when the library's and the kernel's
// supported revision ranges for a type do not overlap.
type VersionMismatchError struct {
	Direction   MismatchDirection
	TypeName    string
	Family      Family
	LibBound    uint8
	KernelBound uint8
}

func (e *VersionMismatchError) Error() string {
	if e.Direction == UpgradeLibrary {
		return fmt.Sprintf(
			"kernel supports %s type with family %s in minimal revision %d "+
				"while the library in maximal revision %d. "+
				"You need to upgrade your ipset library.",
			e.TypeName, e.Family, e.KernelBound, e.LibBound)
	}
	return fmt.Sprintf(
		"kernel supports %s type with family %s in maximal revision %d "+
			"while the library in minimal revision %d. "+
			"You need to upgrade your kernel.",
		e.TypeName, e.Family, e.KernelBound, e.LibBound)
}

// IncompatibleError is returned when the kernel reports a concrete type,
// family and revision the library has no exact match for.
type IncompatibleError struct {
	SetName  string
	TypeName string
	Family   Family
	Revision uint8
}

func (e *IncompatibleError) Error() string {
	if e.SetName != "" {
		return fmt.Sprintf(
			"kernel-library incompatibility: set %s in kernel has got settype %s "+
				"with family %s and revision %d while the library does not support "+
				"the settype with that family and revision",
			e.SetName, e.TypeName, e.Family, e.Revision)
	}
	return fmt.Sprintf(
		"kernel and userspace incompatible: settype %s with family %s and "+
			"revision %d not supported by userspace",
		e.TypeName, e.Family, e.Revision)
}
