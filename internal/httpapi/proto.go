package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

// Registration and scan bodies are a few dozen bytes.
const maxRequestBody = 4096

// wantsProtobuf reports whether the scanner bridge sent a binary
// google.protobuf.Struct instead of JSON.
func wantsProtobuf(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	switch mt {
	case "application/x-protobuf", "application/protobuf", "application/octet-stream":
		return true
	}
	return false
}

// decodeScan reads a scan event in whichever format the device used.
func decodeScan(w http.ResponseWriter, r *http.Request, binary bool) (types.ScanEvent, error) {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)

	if binary {
		raw, err := io.ReadAll(body)
		if err != nil {
			return types.ScanEvent{}, fmt.Errorf("read scan body: %w", err)
		}
		var msg structpb.Struct
		if err := proto.Unmarshal(raw, &msg); err != nil {
			return types.ScanEvent{}, fmt.Errorf("decode protobuf scan: %w", err)
		}
		return scanEventFromProto(&msg), nil
	}

	var in struct {
		ScannedID       types.FlexID `json:"scanned_id"`
		DeviceTimestamp string       `json:"device_timestamp"`
	}
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		return types.ScanEvent{}, fmt.Errorf("decode json scan: %w", err)
	}
	return types.ScanEvent{ScannedID: string(in.ScannedID), DeviceTimestamp: in.DeviceTimestamp}, nil
}

// writeScanAck answers in the format the scan arrived in. Always 200.
func writeScanAck(w http.ResponseWriter, binary bool, ack types.ScanAck) {
	if !binary {
		writeJSON(w, http.StatusOK, ack)
		return
	}

	data, err := proto.Marshal(scanAckToProto(ack))
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
