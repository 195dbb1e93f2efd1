package protocol

import (
	masterminds "github.com/Masterminds/semver/v3"
)

// Version is the bridge protocol version reported to clients.
const Version = "1.1.0"

var bridgeVersion = masterminds.MustParse(Version)

// CheckProtocol validates a client's protocol constraint against Version.
// An empty constraint always passes. The returned envelope is non-nil when the
// command must be rejected.
func CheckProtocol(constraint string) *Envelope {
	if constraint == "" {
		return nil
	}
	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		env := Error("Invalid protocol constraint: "+constraint, map[string]string{"detail": err.Error()})
		return &env
	}
	if !c.Check(bridgeVersion) {
		env := Error("Unsupported protocol version: "+constraint, map[string]string{"bridgeVersion": Version})
		return &env
	}
	return nil
}
