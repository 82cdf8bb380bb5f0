// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"timegrapher/internal/audio"
	"timegrapher/internal/detector"
	"timegrapher/internal/meter"

	tea "github.com/charmbracelet/bubbletea"
)

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMeasureModelProgress(t *testing.T) {
	m := NewMeasureModel("Timegrapher", 30, 0.00075)
	if !strings.Contains(m.View(), "Waiting for audio") {
		t.Errorf("initial view = %q", m.View())
	}

	next, cmd := m.Update(progressMsg(meter.Progress{
		SecondsRemaining: 12,
		Elapsed:          18,
		Ticks:            144,
		Level:            0.01,
		Phase:            detector.PhaseMeasuring,
		Stats:            &detector.Stats{BPH: 28800, Rate: 1.5, BeatError: 0.3},
	}))
	if cmd != nil {
		t.Error("progress produced a command")
	}

	view := next.View()
	for _, want := range []string{"MEASURING", "12s left", "144 ticks", "28800 bph, +1.5 s/d, 0.3 ms"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMeasureModelDetectingView(t *testing.T) {
	m := NewMeasureModel("Timegrapher", 30, 0.00075)
	next, _ := m.Update(progressMsg(meter.Progress{SecondsRemaining: 29, Elapsed: 1, Phase: detector.PhaseDetecting}))

	view := next.View()
	if !strings.Contains(view, "DETECTING") || !strings.Contains(view, "Listening for the beat") {
		t.Errorf("view = %q", view)
	}
}

func TestMeasureModelResultQuits(t *testing.T) {
	m := NewMeasureModel("Timegrapher", 30, 0.00075)
	next, cmd := m.Update(resultMsg(detector.Result{BPH: 21600, BPHActual: 21598, Rate: -4.2, BeatError: 0.6, Ticks: 179}))
	if !isQuit(cmd) {
		t.Fatal("result did not quit the program")
	}

	res, ok := next.(MeasureModel).Result()
	if !ok || res.BPH != 21600 {
		t.Errorf("Result() = %+v, %v", res, ok)
	}
	view := next.View()
	for _, want := range []string{"21600 BPH (measured 21598)", "-4.2 s/d", "0.6 ms"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMeasureModelErrorRecord(t *testing.T) {
	m := NewMeasureModel("Timegrapher", 30, 0.00075)
	next, _ := m.Update(resultMsg(detector.Result{Error: detector.ErrNotEnoughClicks.Error(), Ticks: 3}))
	if !strings.Contains(next.View(), "Volume too low?") {
		t.Errorf("view = %q", next.View())
	}
}

func TestMeasureModelQuitKey(t *testing.T) {
	m := NewMeasureModel("Timegrapher", 30, 0.00075)
	next, cmd := m.Update(runes("q"))
	if !isQuit(cmd) {
		t.Fatal("q did not quit")
	}
	if _, ok := next.(MeasureModel).Result(); ok {
		t.Error("cancelled view reported a result")
	}
	if !next.(MeasureModel).canceled {
		t.Error("quit key did not mark the view cancelled")
	}
}

func TestMeasureModelError(t *testing.T) {
	m := NewMeasureModel("Timegrapher", 30, 0.00075)
	next, cmd := m.Update(errMsg{errors.New("device vanished")})
	if !isQuit(cmd) || !strings.Contains(next.View(), "device vanished") {
		t.Errorf("error view = %q", next.View())
	}
}

func TestLevelMeter(t *testing.T) {
	tests := []struct {
		name  string
		level float64
		want  int
	}{
		{"Silence", 0, 0},
		{"At threshold", 0.001, levelCells / 2},
		{"Far above", 1, levelCells},
		{"Far below", 1e-9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Count(levelMeter(tt.level, 0.001), "█")
			if got != tt.want {
				t.Errorf("levelMeter(%g) filled %d cells, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestDeviceListSelection(t *testing.T) {
	var m tea.Model = NewDeviceListModel()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(devicesMsg{[]audio.Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 3, Name: "USB Interface", MaxInputChannels: 2, DefaultSampleRate: 48000},
	}})

	if !strings.Contains(m.View(), "USB Interface") {
		t.Fatalf("device list view = %q", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.(DeviceListModel).activeScreen != ConfigScreen {
		t.Fatal("enter did not open the sample rate screen")
	}
	if !strings.Contains(m.View(), "▶ 48000 Hz") {
		t.Errorf("config view does not preselect the device rate:\n%s", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !isQuit(cmd) {
		t.Fatal("confirming did not quit")
	}

	sel, ok := m.(DeviceListModel).Selection()
	if !ok || sel.DeviceID != 3 || sel.SampleRate != 88200 {
		t.Errorf("Selection() = %+v, %v, want device 3 at 88200 Hz", sel, ok)
	}
}

func TestDeviceListBackAndQuit(t *testing.T) {
	var m tea.Model = NewDeviceListModel()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(devicesMsg{[]audio.Device{{ID: 0, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 96000}}})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.(DeviceListModel).activeScreen != ListScreen {
		t.Error("esc did not return to the list")
	}

	m, cmd := m.Update(runes("q"))
	if !isQuit(cmd) {
		t.Error("q did not quit")
	}
	if _, ok := m.(DeviceListModel).Selection(); ok {
		t.Error("quitting produced a selection")
	}
}

func TestNearestRateIndex(t *testing.T) {
	tests := map[float64]float64{
		44100: 44100,
		50000: 48000,
		96000: 96000,
		8000:  44100,
	}
	for in, want := range tests {
		if got := sampleRates[nearestRateIndex(in)]; got != want {
			t.Errorf("nearestRateIndex(%.0f) = %.0f, want %.0f", in, got, want)
		}
	}
}
