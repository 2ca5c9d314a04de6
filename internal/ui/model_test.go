// ABOUTME: Tests for the mixer console model
// ABOUTME: Drives key handling against a recording controller
package ui

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/mixbus/pkg/mixer"
)

type fakeController struct {
	streams []mixer.StreamInfo
	calls   []string
	err     error
}

func (f *fakeController) GetAllStreamsInfo() []mixer.StreamInfo { return f.streams }

func (f *fakeController) PauseStream(id string)  { f.calls = append(f.calls, "pause "+id) }
func (f *fakeController) ResumeStream(id string) { f.calls = append(f.calls, "resume "+id) }
func (f *fakeController) StopStream(id string)   { f.calls = append(f.calls, "stop "+id) }

func (f *fakeController) SetStreamVolume(id string, v float64) {
	f.calls = append(f.calls, "volume "+id+" "+strconv.FormatFloat(v, 'f', -1, 64))
}

func (f *fakeController) FadeOutAndPause(id string, d time.Duration) error {
	f.calls = append(f.calls, "fade-out "+id+" "+d.String())
	return f.err
}

func (f *fakeController) FadeInAndResume(id string, d time.Duration) error {
	f.calls = append(f.calls, "fade-in "+id+" "+d.String())
	return f.err
}

func (f *fakeController) CrossfadeStreams(outID, inID string, d time.Duration) error {
	f.calls = append(f.calls, "crossfade "+outID+" "+inID)
	return f.err
}

func newTestModel(streams ...mixer.StreamInfo) (Model, *fakeController) {
	ctrl := &fakeController{streams: streams}
	m := NewModel(ctrl, time.Second)
	updated, _ := m.Update(tickMsg(time.Now()))
	return updated.(Model), ctrl
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func lastCall(ctrl *fakeController) string {
	if len(ctrl.calls) == 0 {
		return ""
	}
	return ctrl.calls[len(ctrl.calls)-1]
}

func TestSelectionStaysInRange(t *testing.T) {
	m, _ := newTestModel(
		mixer.StreamInfo{ID: "stream_1"},
		mixer.StreamInfo{ID: "stream_2"},
	)

	m = press(m, "up")
	if m.selected != 0 {
		t.Errorf("expected selection 0, got %d", m.selected)
	}
	m = press(m, "down")
	m = press(m, "down")
	if m.selected != 1 {
		t.Errorf("expected selection 1, got %d", m.selected)
	}
}

func TestSelectionClampedAfterRefresh(t *testing.T) {
	m, ctrl := newTestModel(
		mixer.StreamInfo{ID: "stream_1"},
		mixer.StreamInfo{ID: "stream_2"},
	)
	m = press(m, "down")

	ctrl.streams = ctrl.streams[:1]
	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if m.selected != 0 {
		t.Errorf("expected selection clamped to 0, got %d", m.selected)
	}
}

func TestKeyBindings(t *testing.T) {
	playing := mixer.StreamInfo{ID: "stream_1", Volume: 1, BaseVolume: 1}
	paused := mixer.StreamInfo{ID: "stream_2", Paused: true, Volume: 0.5, BaseVolume: 0.5}

	tests := []struct {
		name     string
		streams  []mixer.StreamInfo
		keys     []string
		expected string
	}{
		{"pause playing", []mixer.StreamInfo{playing}, []string{" "}, "pause stream_1"},
		{"resume paused", []mixer.StreamInfo{paused}, []string{" "}, "resume stream_2"},
		{"fade out playing", []mixer.StreamInfo{playing}, []string{"f"}, "fade-out stream_1 1s"},
		{"fade in paused", []mixer.StreamInfo{paused}, []string{"f"}, "fade-in stream_2 1s"},
		{"volume up", []mixer.StreamInfo{paused}, []string{"+"}, "volume stream_2 0.6"},
		{"volume down", []mixer.StreamInfo{paused}, []string{"-"}, "volume stream_2 0.4"},
		{"volume floor", []mixer.StreamInfo{{ID: "s", BaseVolume: 0.05}}, []string{"-"}, "volume s 0"},
		{"volume ceiling", []mixer.StreamInfo{{ID: "s", BaseVolume: 2}}, []string{"+"}, "volume s 2"},
		{"crossfade to next", []mixer.StreamInfo{playing, paused}, []string{"c"}, "crossfade stream_1 stream_2"},
		{"crossfade wraps", []mixer.StreamInfo{playing, paused}, []string{"down", "c"}, "crossfade stream_2 stream_1"},
		{"stop", []mixer.StreamInfo{playing}, []string{"x"}, "stop stream_1"},
		{"no streams", nil, []string{" "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctrl := newTestModel(tt.streams...)
			for _, key := range tt.keys {
				m = press(m, key)
			}
			if got := lastCall(ctrl); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCrossfadeNeedsTwoStreams(t *testing.T) {
	m, ctrl := newTestModel(mixer.StreamInfo{ID: "stream_1"})
	m = press(m, "c")

	if len(ctrl.calls) != 0 {
		t.Errorf("expected no calls, got %v", ctrl.calls)
	}
	if !m.isError {
		t.Error("expected an error message")
	}
}

func TestMixerErrorsAreShown(t *testing.T) {
	m, ctrl := newTestModel(mixer.StreamInfo{ID: "stream_1"})
	ctrl.err = errors.New("fade_out stream_1: already fading")

	m = press(m, "f")
	if !m.isError || !strings.Contains(m.message, "already fading") {
		t.Errorf("expected error message, got %q (error=%v)", m.message, m.isError)
	}
	if !strings.Contains(m.View(), "already fading") {
		t.Error("expected error in view")
	}
}

func TestQuitSignals(t *testing.T) {
	m, _ := newTestModel()
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(Model)

	if !m.quitting {
		t.Error("expected quitting")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	select {
	case <-m.quitChan:
	default:
		t.Error("expected quit signal")
	}
}

func TestStatusMsg(t *testing.T) {
	m, _ := newTestModel()
	connected := true
	updated, _ := m.Update(StatusMsg{Connected: &connected, BrokerAddr: "localhost:3001"})
	m = updated.(Model)

	if !m.connected || m.brokerAddr != "localhost:3001" {
		t.Errorf("unexpected status connected=%v addr=%q", m.connected, m.brokerAddr)
	}
	if !strings.Contains(m.View(), "connected to localhost:3001") {
		t.Error("expected broker address in view")
	}
}

func TestViewShowsStreams(t *testing.T) {
	m, _ := newTestModel(
		mixer.StreamInfo{
			ID:           "stream_1",
			Volume:       0.5,
			Metadata:     map[string]string{"title": "Morning News"},
			FadeState:    mixer.FadingOut,
			FadeProgress: 0.5,
			Elapsed:      65 * time.Second,
			Duration:     2 * time.Minute,
			Remaining:    55 * time.Second,
		},
	)

	view := m.View()
	for _, want := range []string{"Streams (1)", "stream_1", "Morning News", "fading_out", "1:05 / -0:55"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value    float64
		max      float64
		expected string
	}{
		{0, 1, "░░░░"},
		{0.5, 1, "██░░"},
		{1, 1, "████"},
		{3, 2, "████"},
	}

	for _, tt := range tests {
		if got := renderBar(tt.value, tt.max, 4); got != tt.expected {
			t.Errorf("renderBar(%v, %v) = %q, expected %q", tt.value, tt.max, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := truncate("a very long stream title", 10); got != "a very ..." {
		t.Errorf("expected truncated, got %q", got)
	}
}
