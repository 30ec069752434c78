// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/connector/lib/fault"
)

// AgentType is the role an agent declares at registration.
type AgentType uint8

const (
	// Sensory agents send sensor payloads.
	Sensory AgentType = iota + 1
	// Motor agents receive motor output.
	Motor
	// Both agents send sensor payloads and receive motor output.
	Both
	// Visualization agents observe neural activity.
	Visualization
	// Infrastructure agents carry control traffic only.
	Infrastructure
)

var agentTypeNames = [...]string{
	Sensory:        "sensory",
	Motor:          "motor",
	Both:           "both",
	Visualization:  "visualization",
	Infrastructure: "infrastructure",
}

// Valid reports whether t is one of the declared agent types.
func (t AgentType) Valid() bool {
	return t >= Sensory && int(t) < len(agentTypeNames)
}

func (t AgentType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("AgentType(%d)", uint8(t))
	}
	return agentTypeNames[t]
}

// SendsSensory reports whether agents of this type may send sensory
// frames.
func (t AgentType) SendsSensory() bool {
	return t == Sensory || t == Both
}

// ParseAgentType resolves a case-insensitive agent type name.
func ParseAgentType(name string) (AgentType, error) {
	lowered := strings.ToLower(name)
	for t := Sensory; t.Valid(); t++ {
		if agentTypeNames[t] == lowered {
			return t, nil
		}
	}
	return 0, fault.Configurationf("unknown agent type %q (want sensory, motor, both, visualization or infrastructure)", name)
}

// MarshalText encodes the type as its name.
func (t AgentType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fault.Configurationf("cannot encode agent type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *AgentType) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
