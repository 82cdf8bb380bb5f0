// SPDX-License-Identifier: MIT
package detector

// Phase is the reporting tag of a detector State.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseDetecting
	PhaseMeasuring
	PhaseFinished
)

// String returns the upper-case name used in progress reports.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseDetecting:
		return "DETECTING"
	case PhaseMeasuring:
		return "MEASURING"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets Phase travel as its name in JSON progress messages.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the detector's state machine position. The set of implementations is
// closed: Idle, Detecting, Measuring and Finished. Fields that only make sense in
// one phase (the locked reference interval, the final result) live on that phase's
// type only.
type State interface {
	Phase() Phase
	state()
}

// Lock is the BPH standard committed to at lock-on.
type Lock struct {
	BPH         int     // Locked standard from the Standards table.
	RefInterval float64 // Expected seconds between ticks, 3600 / BPH.
	ObservedBPH float64 // BPH measured from the valid intervals at lock time.
}

// Idle is the state of a detector that has not been started.
type Idle struct{}

// Detecting searches for the movement's beat rate.
type Detecting struct {
	MinInterval float64 // Debounce spacing in seconds, conservative until locked.
}

// Measuring accumulates statistics against a locked standard.
type Measuring struct {
	Lock        Lock
	MinInterval float64 // 0.85 x Lock.RefInterval.
}

// Finished is terminal and carries the final result record.
type Finished struct {
	Result Result
}

func (Idle) Phase() Phase      { return PhaseIdle }
func (Detecting) Phase() Phase { return PhaseDetecting }
func (Measuring) Phase() Phase { return PhaseMeasuring }
func (Finished) Phase() Phase  { return PhaseFinished }

func (Idle) state()      {}
func (Detecting) state() {}
func (Measuring) state() {}
func (Finished) state()  {}
