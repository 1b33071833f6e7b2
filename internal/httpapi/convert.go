package httpapi

import (
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

// ── Scan ingest ──────────────────────────────────────────────────────────────

// scanEventFromProto reads a google.protobuf.Struct carrying the same keys
// as the JSON body. A numeric scanned_id is accepted as its integer text.
func scanEventFromProto(p *structpb.Struct) types.ScanEvent {
	fields := p.GetFields()
	return types.ScanEvent{
		ScannedID:       stringField(fields["scanned_id"]),
		DeviceTimestamp: fields["device_timestamp"].GetStringValue(),
	}
}

func scanAckToProto(a types.ScanAck) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":          structpb.NewBoolValue(a.OK),
		"server_time": structpb.NewStringValue(a.ServerTime),
	}}
}

func stringField(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		if k.NumberValue == math.Trunc(k.NumberValue) {
			return strconv.FormatFloat(k.NumberValue, 'f', 0, 64)
		}
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	}
	return ""
}
