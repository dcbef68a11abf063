package checking

import "fmt"

// The kind of a problem found in the program under test
type ErrorKind uint8

const (
	OK ErrorKind = iota
	Safety
	RaceNotAtomic
	AccessNonMalloc
	AccessFreed
	DoubleFree
	FreeNonMalloc
	UninitializedMem
	MixedSize
	InvalidJoin
	InvalidUnlock
	Liveness
	Annotation
	WWRace
	UnfreedMemory
)

var errorNames = [...]string{
	OK:               "No error",
	Safety:           "Safety violation",
	RaceNotAtomic:    "Non-atomic race",
	AccessNonMalloc:  "Attempt to access non-allocated memory",
	AccessFreed:      "Attempt to access freed memory",
	DoubleFree:       "Double-free attempt",
	FreeNonMalloc:    "Attempt to free non-allocated memory",
	UninitializedMem: "Attempt to read from uninitialized memory",
	MixedSize:        "Mixed-size accesses",
	InvalidJoin:      "Invalid join() operation",
	InvalidUnlock:    "Invalid unlock() operation",
	Liveness:         "Liveness violation",
	Annotation:       "Annotation error",
	WWRace:           "Unordered writes",
	UnfreedMemory:    "Unfreed memory",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorNames) {
		return errorNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Returns true for kinds that do not stop the exploration by themselves
func (k ErrorKind) IsWarning() bool {
	return k == WWRace || k == UnfreedMemory
}
