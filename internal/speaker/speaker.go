package speaker

import "context"

// Tracker reports who is currently speaking in the meeting UI and the
// participant roster. Implementations live close to the capture surface;
// the orchestrator only consumes the callbacks.
type Tracker interface {
	// Start begins reporting. onSpeaker fires with the current speaker's
	// name, or "" when nobody is speaking. onRoster fires with full
	// participant-list snapshots.
	Start(ctx context.Context, onSpeaker func(name string), onRoster func(names []string)) error
	Stop() error
}

// Static is a tracker with a fixed roster and no active-speaker signal.
// Useful when the meeting platform offers no speaker detection.
type Static struct {
	Roster []string
}

func (s *Static) Start(ctx context.Context, onSpeaker func(string), onRoster func([]string)) error {
	if onRoster != nil && len(s.Roster) > 0 {
		onRoster(append([]string(nil), s.Roster...))
	}
	return nil
}

func (s *Static) Stop() error { return nil }
