package log

import (
	"time"

	"github.com/google/uuid"
)

// Session stamps events with the run's identity before passing them on.
// It is safe for concurrent use as long as the underlying Logger is.
type Session struct {
	id       string
	deviceID string
	profile  string
	logger   Logger
	now      func() time.Time
}

// NewSession creates a session with a fresh UUID. A nil logger discards events.
func NewSession(logger Logger, deviceID, profile string) *Session {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Session{
		id:       uuid.NewString(),
		deviceID: deviceID,
		profile:  profile,
		logger:   logger,
		now:      time.Now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Log fills in the timestamp, session, device and profile, then logs the event.
func (s *Session) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.SessionID = s.id
	if event.DeviceID == "" {
		event.DeviceID = s.deviceID
	}
	if event.Profile == "" {
		event.Profile = s.profile
	}
	s.logger.Log(event)
}

// Message logs a transport operation and its outcome.
func (s *Session) Message(dir Direction, layer Layer, gateway string, msg MessageEvent) {
	s.Log(Event{
		Direction: dir,
		Layer:     layer,
		Category:  CategoryMessage,
		Gateway:   gateway,
		Message:   &msg,
	})
}

// State logs a state change.
func (s *Session) State(layer Layer, gateway string, change StateChangeEvent) {
	s.Log(Event{
		Direction:   DirectionLocal,
		Layer:       layer,
		Category:    CategoryState,
		Gateway:     gateway,
		StateChange: &change,
	})
}

// Failure logs an error.
func (s *Session) Failure(layer Layer, gateway, context string, err error) {
	s.Log(Event{
		Direction: DirectionLocal,
		Layer:     layer,
		Category:  CategoryError,
		Gateway:   gateway,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

var _ Logger = (*Session)(nil)
