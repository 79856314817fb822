package protocol

import "errors"

// PatchOp is the type of node operation.
// Values mirror dom.PatchOp one for one; the server translates between the
// two when flushing a session's patch queue.
type PatchOp uint8

const (
	PatchCreateElement PatchOp = 0x01 // Create a detached element node
	PatchCreateText    PatchOp = 0x02 // Create a detached text node
	PatchInsertNode    PatchOp = 0x03 // Insert a created node under a parent
	PatchMoveNode      PatchOp = 0x04 // Re-parent an existing node, subtree intact
	PatchRemoveNode    PatchOp = 0x05 // Remove a node and its subtree
	PatchSetAttr       PatchOp = 0x06 // Set attribute
	PatchRemoveAttr    PatchOp = 0x07 // Remove attribute
	PatchSetStyle      PatchOp = 0x08 // Replace inline style ("" clears)
	PatchSetText       PatchOp = 0x09 // Replace text node content
	PatchAttachShadow  PatchOp = 0x0A // Attach an open shadow root
)

// String returns the string representation of the patch operation.
func (op PatchOp) String() string {
	switch op {
	case PatchCreateElement:
		return "CreateElement"
	case PatchCreateText:
		return "CreateText"
	case PatchInsertNode:
		return "InsertNode"
	case PatchMoveNode:
		return "MoveNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchSetStyle:
		return "SetStyle"
	case PatchSetText:
		return "SetText"
	case PatchAttachShadow:
		return "AttachShadow"
	default:
		return "Unknown"
	}
}

// ErrInvalidPatchOp is returned when decoding hits an unknown operation.
// Unknown ops cannot be skipped: the payload length depends on the op.
var ErrInvalidPatchOp = errors.New("protocol: invalid patch op")

// Patch represents a single node operation. Field use depends on Op:
//
//	CreateElement: EID, Tag
//	CreateText:    EID, Value
//	InsertNode:    EID, ParentID, Index
//	MoveNode:      EID, ParentID, Index
//	RemoveNode:    EID
//	SetAttr:       EID, Key, Value
//	RemoveAttr:    EID, Key
//	SetStyle:      EID, Value
//	SetText:       EID, Value
//	AttachShadow:  EID, ChildID (the shadow root's EID)
type Patch struct {
	Op       PatchOp
	EID      string // Target node
	ParentID string // Parent EID for InsertNode/MoveNode
	ChildID  string // Shadow root EID for AttachShadow
	Tag      string // Tag name for CreateElement
	Key      string // Attribute key
	Value    string // Text/attr/style value
	Index    int    // Insert/move position
}

// PatchesFrame represents a batch of patches with a sequence number.
type PatchesFrame struct {
	Seq     uint64
	Patches []Patch
}

// EncodePatches encodes a patches frame to bytes.
func EncodePatches(pf *PatchesFrame) []byte {
	e := NewEncoder()
	EncodePatchesTo(e, pf)
	return e.Bytes()
}

// EncodePatchesTo encodes a patches frame using the provided encoder.
func EncodePatchesTo(e *Encoder, pf *PatchesFrame) {
	e.WriteUvarint(pf.Seq)
	e.WriteUvarint(uint64(len(pf.Patches)))
	for i := range pf.Patches {
		encodePatch(e, &pf.Patches[i])
	}
}

func encodePatch(e *Encoder, p *Patch) {
	e.WriteByte(byte(p.Op))
	e.WriteString(p.EID)

	switch p.Op {
	case PatchCreateElement:
		e.WriteString(p.Tag)

	case PatchCreateText:
		e.WriteString(p.Value)

	case PatchInsertNode, PatchMoveNode:
		e.WriteString(p.ParentID)
		e.WriteUvarint(uint64(p.Index))

	case PatchRemoveNode:
		// EID is sufficient

	case PatchSetAttr:
		e.WriteString(p.Key)
		e.WriteString(p.Value)

	case PatchRemoveAttr:
		e.WriteString(p.Key)

	case PatchSetStyle, PatchSetText:
		e.WriteString(p.Value)

	case PatchAttachShadow:
		e.WriteString(p.ChildID)
	}
}

// DecodePatches decodes a patches frame from bytes.
func DecodePatches(data []byte) (*PatchesFrame, error) {
	d := NewDecoder(data)
	return DecodePatchesFrom(d)
}

// DecodePatchesFrom decodes a patches frame from a decoder.
func DecodePatchesFrom(d *Decoder) (*PatchesFrame, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	patches := make([]Patch, count)
	for i := 0; i < count; i++ {
		if err := decodePatch(d, &patches[i]); err != nil {
			return nil, err
		}
	}

	return &PatchesFrame{
		Seq:     seq,
		Patches: patches,
	}, nil
}

func decodePatch(d *Decoder, p *Patch) error {
	opByte, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = PatchOp(opByte)

	p.EID, err = d.ReadString()
	if err != nil {
		return err
	}

	switch p.Op {
	case PatchCreateElement:
		p.Tag, err = d.ReadString()

	case PatchCreateText:
		p.Value, err = d.ReadString()

	case PatchInsertNode, PatchMoveNode:
		p.ParentID, err = d.ReadString()
		if err != nil {
			return err
		}
		var idx uint64
		idx, err = d.ReadUvarint()
		p.Index = int(idx)

	case PatchRemoveNode:
		// EID is sufficient

	case PatchSetAttr:
		p.Key, err = d.ReadString()
		if err != nil {
			return err
		}
		p.Value, err = d.ReadString()

	case PatchRemoveAttr:
		p.Key, err = d.ReadString()

	case PatchSetStyle, PatchSetText:
		p.Value, err = d.ReadString()

	case PatchAttachShadow:
		p.ChildID, err = d.ReadString()

	default:
		return ErrInvalidPatchOp
	}

	return err
}

// NewCreateElementPatch creates a CreateElement patch.
func NewCreateElementPatch(eid, tag string) Patch {
	return Patch{Op: PatchCreateElement, EID: eid, Tag: tag}
}

// NewCreateTextPatch creates a CreateText patch.
func NewCreateTextPatch(eid, text string) Patch {
	return Patch{Op: PatchCreateText, EID: eid, Value: text}
}

// NewInsertNodePatch creates an InsertNode patch.
func NewInsertNodePatch(eid, parentID string, index int) Patch {
	return Patch{Op: PatchInsertNode, EID: eid, ParentID: parentID, Index: index}
}

// NewMoveNodePatch creates a MoveNode patch.
func NewMoveNodePatch(eid, parentID string, index int) Patch {
	return Patch{Op: PatchMoveNode, EID: eid, ParentID: parentID, Index: index}
}

// NewRemoveNodePatch creates a RemoveNode patch.
func NewRemoveNodePatch(eid string) Patch {
	return Patch{Op: PatchRemoveNode, EID: eid}
}

// NewSetAttrPatch creates a SetAttr patch.
func NewSetAttrPatch(eid, key, value string) Patch {
	return Patch{Op: PatchSetAttr, EID: eid, Key: key, Value: value}
}

// NewRemoveAttrPatch creates a RemoveAttr patch.
func NewRemoveAttrPatch(eid, key string) Patch {
	return Patch{Op: PatchRemoveAttr, EID: eid, Key: key}
}

// NewSetStylePatch creates a SetStyle patch.
func NewSetStylePatch(eid, css string) Patch {
	return Patch{Op: PatchSetStyle, EID: eid, Value: css}
}

// NewSetTextPatch creates a SetText patch.
func NewSetTextPatch(eid, text string) Patch {
	return Patch{Op: PatchSetText, EID: eid, Value: text}
}

// NewAttachShadowPatch creates an AttachShadow patch.
func NewAttachShadowPatch(eid, shadowEID string) Patch {
	return Patch{Op: PatchAttachShadow, EID: eid, ChildID: shadowEID}
}
