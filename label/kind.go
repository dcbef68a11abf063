package label

import "fmt"

// The kind of a label.
//
// Read and Write labels come in several flavours that share their
// representation but differ in how the explorer treats them.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindInit
	KindThreadStart
	KindThreadCreate
	KindThreadJoin
	KindThreadFinish
	KindThreadKill
	KindBlock

	KindRead
	KindCasRead
	KindFaiRead
	KindLockCasRead
	KindHelpedCasRead
	KindConfirmingRead
	KindSpeculativeRead

	KindWrite
	KindCasWrite
	KindFaiWrite
	KindLockCasWrite
	KindHelpedCasWrite
	KindUnlockWrite
	KindFinalWrite

	KindFence
	KindMalloc
	KindFree
	KindHpRetire
	KindHpProtect
	KindHelpingCas
	KindOptional
)

var kindNames = map[Kind]string{
	KindEmpty:           "EMPTY",
	KindInit:            "INIT",
	KindThreadStart:     "THREAD_START",
	KindThreadCreate:    "THREAD_CREATE",
	KindThreadJoin:      "THREAD_JOIN",
	KindThreadFinish:    "THREAD_END",
	KindThreadKill:      "KILL",
	KindBlock:           "BLOCK",
	KindRead:            "R",
	KindCasRead:         "CR",
	KindFaiRead:         "UR",
	KindLockCasRead:     "LR",
	KindHelpedCasRead:   "HR",
	KindConfirmingRead:  "CONFR",
	KindSpeculativeRead: "SPECR",
	KindWrite:           "W",
	KindCasWrite:        "CW",
	KindFaiWrite:        "UW",
	KindLockCasWrite:    "LW",
	KindHelpedCasWrite:  "HW",
	KindUnlockWrite:     "UL",
	KindFinalWrite:      "FW",
	KindFence:           "F",
	KindMalloc:          "MALLOC",
	KindFree:            "FREE",
	KindHpRetire:        "HP_RETIRE",
	KindHpProtect:       "HP_PROTECT",
	KindHelpingCas:      "HELPING_CAS",
	KindOptional:        "OPTIONAL",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) IsRead() bool {
	return k >= KindRead && k <= KindSpeculativeRead
}

func (k Kind) IsWrite() bool {
	return k >= KindWrite && k <= KindFinalWrite
}

func (k Kind) IsMemAccess() bool {
	return k.IsRead() || k.IsWrite()
}

// Returns true for the read part of a read-modify-write
func (k Kind) IsRMWRead() bool {
	switch k {
	case KindCasRead, KindFaiRead, KindLockCasRead, KindHelpedCasRead:
		return true
	}
	return false
}

// Returns true for the write part of a read-modify-write
func (k Kind) IsRMWWrite() bool {
	switch k {
	case KindCasWrite, KindFaiWrite, KindLockCasWrite, KindHelpedCasWrite:
		return true
	}
	return false
}

// Returns true for reads that compare against an expected value
func (k Kind) IsCasRead() bool {
	return k == KindCasRead || k == KindLockCasRead || k == KindHelpedCasRead
}

// Returns the kind of the write that completes an RMW read of kind k
func (k Kind) WriteCounterpart() Kind {
	switch k {
	case KindCasRead:
		return KindCasWrite
	case KindFaiRead:
		return KindFaiWrite
	case KindLockCasRead:
		return KindLockCasWrite
	case KindHelpedCasRead:
		return KindHelpedCasWrite
	}
	return KindWrite
}
