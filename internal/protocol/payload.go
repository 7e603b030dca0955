package protocol

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// Payload keys.
const (
	keyEvents    = "events"
	keyDigest    = "digest"
	keyName      = "name"
	keyFields    = "fields"
	keyKey       = "key"
	keyValue     = "value"
	keyNodeID    = "node_id"
	keyVersion   = "version"
	keyMAC       = "mac"
	keySessionID = "session_id"
	keyReason    = "reason"
)

var marshalOpts = proto.MarshalOptions{Deterministic: true}

func encodePayload(m Message) ([]byte, error) {
	var st *structpb.Struct

	switch m.Kind {
	case KindSwapReady, KindSwapGo:
		return nil, nil
	case KindHello:
		st = &structpb.Struct{Fields: map[string]*structpb.Value{
			keyNodeID:  structpb.NewStringValue(m.NodeID),
			keyVersion: structpb.NewNumberValue(float64(m.Version)),
			keyMAC:     structpb.NewStringValue(m.MAC),
		}}
	case KindWelcome:
		st = &structpb.Struct{Fields: map[string]*structpb.Value{
			keySessionID: structpb.NewStringValue(m.SessionID),
			keyNodeID:    structpb.NewStringValue(m.NodeID),
		}}
	case KindReject:
		st = &structpb.Struct{Fields: map[string]*structpb.Value{
			keyReason: structpb.NewStringValue(m.Reason),
		}}
	case KindEventSubmit:
		st = &structpb.Struct{Fields: map[string]*structpb.Value{
			keyEvents: structpb.NewListValue(EncodeEvents(m.Events)),
		}}
	case KindEventSync:
		st = &structpb.Struct{Fields: map[string]*structpb.Value{
			keyEvents: structpb.NewListValue(EncodeEvents(m.Events)),
			keyDigest: structpb.NewStringValue(strconv.FormatUint(m.Digest, 16)),
		}}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(m.Kind))
	}

	b, err := marshalOpts.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", m.Kind, err)
	}
	return b, nil
}

func decodePayload(m *Message, payload []byte) error {
	switch m.Kind {
	case KindSwapReady, KindSwapGo:
		if len(payload) != 0 {
			return fmt.Errorf("%w: %s carries %d bytes", ErrUnexpectedPayload, m.Kind, len(payload))
		}
		return nil
	}

	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	f := st.GetFields()

	switch m.Kind {
	case KindHello:
		m.NodeID = f[keyNodeID].GetStringValue()
		m.Version = int(f[keyVersion].GetNumberValue())
		m.MAC = f[keyMAC].GetStringValue()
		if m.NodeID == "" {
			return fmt.Errorf("%w: hello without node_id", ErrMalformedPayload)
		}
	case KindWelcome:
		m.SessionID = f[keySessionID].GetStringValue()
		m.NodeID = f[keyNodeID].GetStringValue()
	case KindReject:
		m.Reason = f[keyReason].GetStringValue()
	case KindEventSubmit, KindEventSync:
		events, err := DecodeEvents(f[keyEvents].GetListValue())
		if err != nil {
			return err
		}
		m.Events = events
		if m.Kind == KindEventSync {
			d, err := strconv.ParseUint(f[keyDigest].GetStringValue(), 16, 64)
			if err != nil {
				return fmt.Errorf("%w: digest: %v", ErrMalformedPayload, err)
			}
			if got := Digest(events); got != d {
				return fmt.Errorf("%w: got %x, want %x", ErrDigestMismatch, got, d)
			}
			m.Digest = d
		}
	}
	return nil
}

// EncodeEvents converts events to their wire list form.
func EncodeEvents(events []domain.Event) *structpb.ListValue {
	lv := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(events))}
	for _, e := range events {
		lv.Values = append(lv.Values, encodeEvent(e))
	}
	return lv
}

func encodeEvent(e domain.Event) *structpb.Value {
	fields := e.Fields()
	fv := make([]*structpb.Value, 0, len(fields))
	for _, f := range fields {
		fv = append(fv, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			keyKey:   structpb.NewStringValue(f.Key),
			keyValue: f.Proto(),
		}}))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		keyName:   structpb.NewStringValue(e.Name()),
		keyFields: structpb.NewListValue(&structpb.ListValue{Values: fv}),
	}})
}

// DecodeEvents converts a wire list back into events, preserving order.
// A nil list decodes to an empty event list.
func DecodeEvents(lv *structpb.ListValue) ([]domain.Event, error) {
	values := lv.GetValues()
	out := make([]domain.Event, 0, len(values))
	for i, v := range values {
		st := v.GetStructValue()
		if st == nil {
			return nil, fmt.Errorf("%w: event %d is not an object", ErrMalformedPayload, i)
		}
		name := st.GetFields()[keyName].GetStringValue()

		rawFields := st.GetFields()[keyFields].GetListValue().GetValues()
		fields := make([]domain.Field, 0, len(rawFields))
		for j, rf := range rawFields {
			fst := rf.GetStructValue()
			if fst == nil {
				return nil, fmt.Errorf("%w: event %d field %d is not an object", ErrMalformedPayload, i, j)
			}
			fields = append(fields, domain.NewField(fst.GetFields()[keyKey].GetStringValue(), fst.GetFields()[keyValue]))
		}

		e, err := domain.NewEventFromFields(name, fields)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrMalformedPayload, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
