package protocol

import "errors"

// EventType identifies the type of client event.
type EventType uint8

// Event type constants.
const (
	// Mouse events
	EventClick    EventType = 0x01
	EventDblClick EventType = 0x02

	// Form events
	EventInput  EventType = 0x10
	EventChange EventType = 0x11
	EventSubmit EventType = 0x12

	// Keyboard events
	EventKeyDown EventType = 0x20

	// Custom events carry an application-defined name and opaque payload.
	EventCustom EventType = 0xFF
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	switch et {
	case EventClick:
		return "Click"
	case EventDblClick:
		return "DblClick"
	case EventInput:
		return "Input"
	case EventChange:
		return "Change"
	case EventSubmit:
		return "Submit"
	case EventKeyDown:
		return "KeyDown"
	case EventCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Modifiers represents keyboard modifier keys.
type Modifiers uint8

const (
	ModCtrl  Modifiers = 0x01
	ModShift Modifiers = 0x02
	ModAlt   Modifiers = 0x04
	ModMeta  Modifiers = 0x08
)

// Has returns true if the specified modifier is set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod != 0
}

// KeyboardEventData contains keyboard event data.
type KeyboardEventData struct {
	Key       string
	Code      string // Physical key code (e.g. "KeyA", "Enter")
	Modifiers Modifiers
	Repeat    bool
}

// SubmitEventData contains form submission data.
type SubmitEventData struct {
	Fields map[string]string
}

// CustomEventData contains custom event data.
type CustomEventData struct {
	Name string
	Data []byte
}

// Event represents a decoded event from the client.
type Event struct {
	Seq     uint64
	Type    EventType
	EID     string // Target node
	Payload any    // Type-specific payload (nil for Click/DblClick)
}

// Event encoding errors.
var (
	ErrInvalidEventType = errors.New("protocol: invalid event type")
	ErrInvalidPayload   = errors.New("protocol: invalid event payload")
)

// EncodeEvent encodes an event to bytes.
func EncodeEvent(e *Event) []byte {
	enc := NewEncoder()
	EncodeEventTo(enc, e)
	return enc.Bytes()
}

// EncodeEventTo encodes an event using the provided encoder.
func EncodeEventTo(enc *Encoder, e *Event) {
	enc.WriteUvarint(e.Seq)
	enc.WriteByte(byte(e.Type))
	enc.WriteString(e.EID)

	switch e.Type {
	case EventClick, EventDblClick:
		// No payload

	case EventInput, EventChange:
		if s, ok := e.Payload.(string); ok {
			enc.WriteString(s)
		} else {
			enc.WriteString("")
		}

	case EventSubmit:
		data, ok := e.Payload.(*SubmitEventData)
		if !ok || data == nil {
			enc.WriteUvarint(0)
			return
		}
		enc.WriteUvarint(uint64(len(data.Fields)))
		for k, v := range data.Fields {
			enc.WriteString(k)
			enc.WriteString(v)
		}

	case EventKeyDown:
		data, ok := e.Payload.(*KeyboardEventData)
		if !ok || data == nil {
			data = &KeyboardEventData{}
		}
		enc.WriteString(data.Key)
		enc.WriteString(data.Code)
		enc.WriteByte(byte(data.Modifiers))
		enc.WriteBool(data.Repeat)

	case EventCustom:
		data, ok := e.Payload.(*CustomEventData)
		if !ok || data == nil {
			data = &CustomEventData{}
		}
		enc.WriteString(data.Name)
		enc.WriteLenBytes(data.Data)
	}
}

// DecodeEvent decodes an event from bytes.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	return DecodeEventFrom(d)
}

// DecodeEventFrom decodes an event from a decoder.
func DecodeEventFrom(d *Decoder) (*Event, error) {
	e := &Event{}
	var err error

	e.Seq, err = d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	typeByte, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	e.Type = EventType(typeByte)

	e.EID, err = d.ReadString()
	if err != nil {
		return nil, err
	}

	switch e.Type {
	case EventClick, EventDblClick:
		// No payload

	case EventInput, EventChange:
		s, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		e.Payload = s

	case EventSubmit:
		count, err := d.ReadCollectionCount()
		if err != nil {
			return nil, err
		}
		fields := make(map[string]string, count)
		for i := 0; i < count; i++ {
			k, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			v, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			fields[k] = v
		}
		e.Payload = &SubmitEventData{Fields: fields}

	case EventKeyDown:
		data := &KeyboardEventData{}
		if data.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if data.Code, err = d.ReadString(); err != nil {
			return nil, err
		}
		mods, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		data.Modifiers = Modifiers(mods)
		if data.Repeat, err = d.ReadBool(); err != nil {
			return nil, err
		}
		e.Payload = data

	case EventCustom:
		data := &CustomEventData{}
		if data.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		if data.Data, err = d.ReadLenBytes(); err != nil {
			return nil, err
		}
		e.Payload = data

	default:
		return nil, ErrInvalidEventType
	}

	return e, nil
}

// NewClickEvent creates a click event for the given target.
func NewClickEvent(seq uint64, eid string) *Event {
	return &Event{Seq: seq, Type: EventClick, EID: eid}
}

// NewInputEvent creates an input event carrying the control's value.
func NewInputEvent(seq uint64, eid, value string) *Event {
	return &Event{Seq: seq, Type: EventInput, EID: eid, Payload: value}
}

// NewChangeEvent creates a change event carrying the control's value.
func NewChangeEvent(seq uint64, eid, value string) *Event {
	return &Event{Seq: seq, Type: EventChange, EID: eid, Payload: value}
}

// NewCustomEvent creates a custom event with an opaque payload.
func NewCustomEvent(seq uint64, eid, name string, data []byte) *Event {
	return &Event{Seq: seq, Type: EventCustom, EID: eid, Payload: &CustomEventData{Name: name, Data: data}}
}
