package runtimeprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

type fakeSender struct {
	responses map[string]json.RawMessage
	errs      map[string]error
}

func (f *fakeSender) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	if raw, ok := f.responses[method]; ok {
		return raw, nil
	}
	return nil, fmt.Errorf("unexpected method %q", method)
}

func TestFetchAssemblesRuntimeInfo(t *testing.T) {
	sender := &fakeSender{responses: map[string]json.RawMessage{
		"state_getRuntimeVersion": json.RawMessage(`{"specName":"polkadot","specVersion":9430}`),
		"state_getMetadata":       json.RawMessage(`"0x1004"`),
		"system_properties":       json.RawMessage(`{"ss58Format":0}`),
	}}

	info, err := Fetch(context.Background(), sender, "", true)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if info.SpecName != "polkadot" || info.SpecVersion != 9430 {
		t.Errorf("info = %+v, want specName=polkadot specVersion=9430", info)
	}
	if len(info.Metadata) != 2 || info.Metadata[0] != 0x10 {
		t.Errorf("Metadata = %x, want 1004", info.Metadata)
	}
	if info.SS58Prefix == nil || *info.SS58Prefix != 0 {
		t.Errorf("SS58Prefix = %v, want pointer to 0", info.SS58Prefix)
	}
}

func TestFetchSystemPropertiesFailureIsNonFatal(t *testing.T) {
	sender := &fakeSender{
		responses: map[string]json.RawMessage{
			"state_getRuntimeVersion": json.RawMessage(`{"specName":"polkadot","specVersion":1}`),
			"state_getMetadata":       json.RawMessage(`"0x10"`),
		},
		errs: map[string]error{"system_properties": fmt.Errorf("boom")},
	}

	info, err := Fetch(context.Background(), sender, "", true)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (system_properties failure is non-fatal)", err)
	}
	if info.SS58Prefix != nil {
		t.Errorf("SS58Prefix = %v, want nil", info.SS58Prefix)
	}
}

func TestFetchMetadataFailureIsFatal(t *testing.T) {
	sender := &fakeSender{
		responses: map[string]json.RawMessage{
			"state_getRuntimeVersion": json.RawMessage(`{"specName":"polkadot","specVersion":1}`),
		},
		errs: map[string]error{"state_getMetadata": fmt.Errorf("boom")},
	}

	_, err := Fetch(context.Background(), sender, "", true)
	if err == nil {
		t.Fatal("expected error when state_getMetadata fails")
	}
}

func TestFetchSkipsMetadataWhenNotRequested(t *testing.T) {
	sender := &fakeSender{responses: map[string]json.RawMessage{
		"state_getRuntimeVersion": json.RawMessage(`{"specName":"polkadot","specVersion":7}`),
		"system_properties":       json.RawMessage(`{"ss58Format":2}`),
	}}

	info, err := Fetch(context.Background(), sender, "", false)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (state_getMetadata should not be called)", err)
	}
	if info.SpecVersion != 7 {
		t.Errorf("SpecVersion = %d, want 7", info.SpecVersion)
	}
	if info.Metadata != nil {
		t.Errorf("Metadata = %x, want nil", info.Metadata)
	}
}
