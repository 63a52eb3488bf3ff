package qapi

import "fmt"

// DecodeDiagnostic describes metadata decode recovery for one spec
// version. Connect and the per-block table lookup write their QAPI_DEBUG
// recovery messages to stderr directly and do not construct this type.
type DecodeDiagnostic struct {
	SpecVersion uint32
	Messages    []string
}

func (d *DecodeDiagnostic) Error() string {
	return fmt.Sprintf("qapi: metadata decode recovered %d issue(s) for spec version %d", len(d.Messages), d.SpecVersion)
}

// ErrNoRuntimeInfo reports that no probed RuntimeInfo is available. No
// operation in this package returns it: Connect fails outright when the
// runtime probe fails, so a connected Client always holds one.
var ErrNoRuntimeInfo = fmt.Errorf("qapi: no runtime info available")
