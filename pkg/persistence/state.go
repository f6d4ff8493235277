package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// StateFile is the file name used inside a state directory.
const StateFile = "agent-state.json"

// AgentState is the agent's runtime state.
type AgentState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// DeviceID identifies the node the state belongs to.
	DeviceID string `json:"device_id"`

	// Gateway is the last connected gateway; nil when disconnected.
	Gateway *GatewayRecord `json:"gateway,omitempty"`

	// Will is the last will in effect.
	Will *WillRecord `json:"will,omitempty"`

	// Loop describes the publish loop, if one was running.
	Loop *LoopRecord `json:"loop,omitempty"`

	// Subscriptions lists active topic subscriptions in slot order.
	Subscriptions []SubscriptionRecord `json:"subscriptions,omitempty"`

	// Channels holds the last simulated values by channel name.
	Channels map[string]float64 `json:"channels,omitempty"`
}

// GatewayRecord is a gateway address.
type GatewayRecord struct {
	Addr string `json:"addr"`
	Port uint16 `json:"port"`
}

// WillRecord is a last will.
type WillRecord struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	QoS     uint8  `json:"qos"`
}

// LoopRecord is a publish loop configuration.
type LoopRecord struct {
	Topic string `json:"topic"`
	QoS   uint8  `json:"qos"`
}

// SubscriptionRecord is one subscription.
type SubscriptionRecord struct {
	Topic string `json:"topic"`
	QoS   uint8  `json:"qos"`
}

// StateStore persists AgentState to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStateStore creates a store writing to path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path, now: time.Now}
}

// NewStateStoreInDir creates a store writing StateFile inside dir.
func NewStateStoreInDir(dir string) *StateStore {
	return NewStateStore(filepath.Join(dir, StateFile))
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.path
}

// Save writes the state. The file is replaced atomically so a crash never
// leaves a half-written state behind.
func (s *StateStore) Save(state *AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = s.now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".agent-state-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the state. It returns nil, nil if no state was saved.
func (s *StateStore) Load() (*AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &AgentState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported %d", state.Version, StateVersion)
	}
	return state, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
