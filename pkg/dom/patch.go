package dom

import "fmt"

// PatchOp identifies a single tree mutation.
type PatchOp uint8

const (
	// OpCreateElement introduces a new element node. The node is not yet in
	// the tree; a later InsertNode places it.
	OpCreateElement PatchOp = iota
	// OpCreateText introduces a new text node.
	OpCreateText
	// OpInsertNode places a previously created node under Parent at Index.
	OpInsertNode
	// OpMoveNode re-parents an existing node under Parent at Index. The
	// node's subtree travels with it untouched.
	OpMoveNode
	// OpRemoveNode detaches a node (and its subtree) from the tree.
	OpRemoveNode
	// OpSetAttr sets attribute Key to Value.
	OpSetAttr
	// OpRemoveAttr removes attribute Key.
	OpRemoveAttr
	// OpSetStyle replaces the inline style with Value ("" clears it).
	OpSetStyle
	// OpSetText replaces a text node's content with Value.
	OpSetText
	// OpAttachShadow attaches an open shadow root to EID. Child carries the
	// shadow root's own EID.
	OpAttachShadow
)

// String returns a short mnemonic for logging.
func (op PatchOp) String() string {
	switch op {
	case OpCreateElement:
		return "createElement"
	case OpCreateText:
		return "createText"
	case OpInsertNode:
		return "insertNode"
	case OpMoveNode:
		return "moveNode"
	case OpRemoveNode:
		return "removeNode"
	case OpSetAttr:
		return "setAttr"
	case OpRemoveAttr:
		return "removeAttr"
	case OpSetStyle:
		return "setStyle"
	case OpSetText:
		return "setText"
	case OpAttachShadow:
		return "attachShadow"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// Patch is one recorded mutation. Field use depends on Op:
//
//	CreateElement: EID, Tag
//	CreateText:    EID, Value
//	InsertNode:    EID, Parent, Index
//	MoveNode:      EID, Parent, Index
//	RemoveNode:    EID
//	SetAttr:       EID, Key, Value
//	RemoveAttr:    EID, Key
//	SetStyle:      EID, Value
//	SetText:       EID, Value
//	AttachShadow:  EID, Child (shadow root EID)
type Patch struct {
	Op     PatchOp
	EID    string
	Parent string
	Child  string
	Tag    string
	Key    string
	Value  string
	Index  int
}

func (p Patch) String() string {
	switch p.Op {
	case OpCreateElement:
		return fmt.Sprintf("%s %s <%s>", p.Op, p.EID, p.Tag)
	case OpCreateText:
		return fmt.Sprintf("%s %s %q", p.Op, p.EID, p.Value)
	case OpInsertNode, OpMoveNode:
		return fmt.Sprintf("%s %s -> %s[%d]", p.Op, p.EID, p.Parent, p.Index)
	case OpSetAttr:
		return fmt.Sprintf("%s %s %s=%q", p.Op, p.EID, p.Key, p.Value)
	case OpRemoveAttr:
		return fmt.Sprintf("%s %s %s", p.Op, p.EID, p.Key)
	case OpSetStyle, OpSetText:
		return fmt.Sprintf("%s %s %q", p.Op, p.EID, p.Value)
	case OpAttachShadow:
		return fmt.Sprintf("%s %s shadow=%s", p.Op, p.EID, p.Child)
	default:
		return fmt.Sprintf("%s %s", p.Op, p.EID)
	}
}

// PatchSink receives every mutation applied to a Document, in order.
type PatchSink interface {
	Record(Patch)
}

// Recorder is a PatchSink that appends patches to a slice. The server uses
// one per session as its outbound queue; tests use it to assert on emitted
// mutations.
type Recorder struct {
	patches []Patch
}

// Record appends p.
func (r *Recorder) Record(p Patch) {
	r.patches = append(r.patches, p)
}

// Patches returns the recorded mutations without clearing them.
func (r *Recorder) Patches() []Patch {
	return r.patches
}

// Drain returns the recorded mutations and resets the recorder.
func (r *Recorder) Drain() []Patch {
	ps := r.patches
	r.patches = nil
	return ps
}

// Len reports the number of recorded mutations.
func (r *Recorder) Len() int {
	return len(r.patches)
}
