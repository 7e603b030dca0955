package journal

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/framesync-go/internal/protocol"
)

var marshalOpts = proto.MarshalOptions{Deterministic: true}

func encodeEntry(e Entry) ([]byte, error) {
	st := &structpb.Struct{Fields: map[string]*structpb.Value{
		"round":     structpb.NewStringValue(strconv.FormatUint(e.Round, 10)),
		"digest":    structpb.NewStringValue(strconv.FormatUint(e.Digest, 16)),
		"at":        structpb.NewStringValue(e.At.UTC().Format(time.RFC3339Nano)),
		"nodes":     stringList(e.Nodes),
		"missing":   stringList(e.Missing),
		"timed_out": structpb.NewBoolValue(e.TimedOut),
		"events":    structpb.NewListValue(protocol.EncodeEvents(e.Events)),
	}}
	b, err := marshalOpts.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("journal: encode round %d: %w", e.Round, err)
	}
	return b, nil
}

func decodeEntry(b []byte) (Entry, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Entry{}, fmt.Errorf("journal: decode: %w", err)
	}
	f := st.GetFields()

	var e Entry
	var err error
	if e.Round, err = strconv.ParseUint(f["round"].GetStringValue(), 10, 64); err != nil {
		return Entry{}, fmt.Errorf("journal: decode round: %w", err)
	}
	if e.Digest, err = strconv.ParseUint(f["digest"].GetStringValue(), 16, 64); err != nil {
		return Entry{}, fmt.Errorf("journal: decode digest: %w", err)
	}
	if e.At, err = time.Parse(time.RFC3339Nano, f["at"].GetStringValue()); err != nil {
		return Entry{}, fmt.Errorf("journal: decode time: %w", err)
	}
	e.Nodes = stringsOf(f["nodes"])
	e.Missing = stringsOf(f["missing"])
	e.TimedOut = f["timed_out"].GetBoolValue()
	if e.Events, err = protocol.DecodeEvents(f["events"].GetListValue()); err != nil {
		return Entry{}, fmt.Errorf("journal: decode events: %w", err)
	}
	return e, nil
}

func stringList(ss []string) *structpb.Value {
	vals := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vals[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func stringsOf(v *structpb.Value) []string {
	vals := v.GetListValue().GetValues()
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, len(vals))
	for i, x := range vals {
		out[i] = x.GetStringValue()
	}
	return out
}
