package server

import (
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/protocol"
)

// wireOp maps a document mutation op to its wire op.
func wireOp(op dom.PatchOp) protocol.PatchOp {
	switch op {
	case dom.OpCreateElement:
		return protocol.PatchCreateElement
	case dom.OpCreateText:
		return protocol.PatchCreateText
	case dom.OpInsertNode:
		return protocol.PatchInsertNode
	case dom.OpMoveNode:
		return protocol.PatchMoveNode
	case dom.OpRemoveNode:
		return protocol.PatchRemoveNode
	case dom.OpSetAttr:
		return protocol.PatchSetAttr
	case dom.OpRemoveAttr:
		return protocol.PatchRemoveAttr
	case dom.OpSetStyle:
		return protocol.PatchSetStyle
	case dom.OpSetText:
		return protocol.PatchSetText
	case dom.OpAttachShadow:
		return protocol.PatchAttachShadow
	default:
		panic("server: unknown patch op " + op.String())
	}
}

// wirePatch converts a recorded document mutation into its wire form.
func wirePatch(p dom.Patch) protocol.Patch {
	return protocol.Patch{
		Op:       wireOp(p.Op),
		EID:      p.EID,
		ParentID: p.Parent,
		ChildID:  p.Child,
		Tag:      p.Tag,
		Key:      p.Key,
		Value:    p.Value,
		Index:    p.Index,
	}
}
