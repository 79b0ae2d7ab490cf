package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/oven-monitor/internal/logic"
	"github.com/sweeney/oven-monitor/internal/sim"
	"github.com/sweeney/oven-monitor/internal/telemetry"
)

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(cmd string) {
	f.sent = append(f.sent, cmd)
}

type recorder struct {
	transitions []logic.Transition
}

func (r *recorder) RelayChanged(tr logic.Transition) {
	r.transitions = append(r.transitions, tr)
}

func mustProfile(t *testing.T, name string) Profile {
	t.Helper()
	p, err := LookupProfile(name)
	if err != nil {
		t.Fatalf("LookupProfile(%q): %v", name, err)
	}
	return p
}

// Noise of 0.5 cancels the bias near the target, so the model only drifts.
func newSimEngine(t *testing.T, profile string) (*Engine, *recorder) {
	t.Helper()
	e, err := New(Options{
		Profile:     mustProfile(t, profile),
		Driver:      Simulated,
		Capacity:    1000,
		InitialTemp: 300,
		Simulator:   sim.New(sim.DefaultConfig(), sim.Fixed(0.5)),
	}, start)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	e.Subscribe(rec)
	return e, rec
}

func newLiveEngine(t *testing.T, profile string) (*Engine, *fakeSender, *recorder) {
	t.Helper()
	s := &fakeSender{}
	e, err := New(Options{
		Profile:  mustProfile(t, profile),
		Driver:   Live,
		Capacity: 100,
		Sender:   s,
	}, start)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	e.Subscribe(rec)
	return e, s, rec
}

func decode(t *testing.T, msg string) []telemetry.Update {
	t.Helper()
	u, err := telemetry.Decode([]byte(msg))
	if err != nil {
		t.Fatalf("Decode(%s): %v", msg, err)
	}
	return u
}

func TestNewValidatesOptions(t *testing.T) {
	p := mustProfile(t, "dual")
	if _, err := New(Options{Profile: p, Driver: Simulated}, start); err == nil {
		t.Error("expected error for simulated driver without simulator")
	}
	if _, err := New(Options{Profile: p, Driver: Live}, start); err == nil {
		t.Error("expected error for live driver without sender")
	}
	if _, err := New(Options{Profile: p, Driver: "replay", Sender: &fakeSender{}}, start); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := New(Options{Profile: Profile{Name: "x"}, Driver: Live, Sender: &fakeSender{}}, start); err == nil {
		t.Error("expected error for profile without strategy")
	}
}

func TestSimulatedSwitchOnAfterDwell(t *testing.T) {
	e, rec := newSimEngine(t, "dual")
	step := 250 * time.Millisecond

	var tr *logic.Transition
	var at time.Time
	for now := start.Add(step); now.Sub(start) <= 2*time.Minute; now = now.Add(step) {
		lower := e.profile.Strategy.Derive(e.cfg, e.Control().LastSwitch, now).Lower
		tr = e.Tick(now)
		if tr != nil {
			at = now
			temp, _ := e.Temperature()
			if temp >= lower {
				t.Fatalf("switched on at %v with temp %v not below lower %v", now.Sub(start), temp, lower)
			}
			break
		}
	}

	if tr == nil {
		t.Fatal("expected relay to switch on")
	}
	if tr.From != logic.StateOff || tr.To != logic.StateOn {
		t.Errorf("expected OFF->ON, got %s->%s", tr.From, tr.To)
	}
	// First tick strictly past the 100s dwell
	if want := 100*time.Second + step; at.Sub(start) != want {
		t.Errorf("expected switch at %v, got %v", want, at.Sub(start))
	}

	cs := e.Control()
	if cs.LastSwitchDuration != at.Sub(start) {
		t.Errorf("expected last switch duration %v, got %v", at.Sub(start), cs.LastSwitchDuration)
	}
	if !cs.LastSwitch.Equal(at) {
		t.Errorf("expected last switch at %v, got %v", at, cs.LastSwitch)
	}
	if th := e.Thresholds(); th != logic.Collapsed(300) {
		t.Errorf("expected bounds collapsed to target, got %+v", th)
	}
	if len(rec.transitions) != 1 {
		t.Errorf("expected 1 notification, got %d", len(rec.transitions))
	}
}

func TestSimulatedNoSwitchBeforeDwell(t *testing.T) {
	e, rec := newSimEngine(t, "dual")
	for now := start.Add(250 * time.Millisecond); now.Sub(start) <= 100*time.Second; now = now.Add(250 * time.Millisecond) {
		if tr := e.Tick(now); tr != nil {
			t.Fatalf("unexpected transition at %v", now.Sub(start))
		}
	}
	if len(rec.transitions) != 0 {
		t.Errorf("expected no notifications, got %d", len(rec.transitions))
	}
}

func TestSimulatedRecordsBothSignals(t *testing.T) {
	e, _ := newSimEngine(t, "dual")
	for i := 1; i <= 10; i++ {
		e.Tick(start.Add(time.Duration(i) * time.Second))
	}

	v := e.View()
	// Initial sample plus one per tick
	if len(v.Temperatures) != 11 || len(v.Relays) != 11 {
		t.Errorf("expected 11 samples each, got %d temps %d relays", len(v.Temperatures), len(v.Relays))
	}
	for i := range v.Temperatures {
		if !v.Temperatures[i].Time.Equal(v.Relays[i].Time) {
			t.Errorf("sample %d: timestamps differ", i)
		}
	}
}

func TestSimulatedBoundsRampBetweenSwitches(t *testing.T) {
	e, _ := newSimEngine(t, "dual")
	e.Tick(start.Add(90 * time.Second))

	th := e.Thresholds()
	if th.Upper != 290 || th.Lower != 310 {
		t.Errorf("expected 290/310 half way through the ramp, got %+v", th)
	}
}

func TestSimulatedHistoryBounded(t *testing.T) {
	e, err := New(Options{
		Profile:     mustProfile(t, "dual"),
		Driver:      Simulated,
		Capacity:    8,
		InitialTemp: 20,
		Simulator:   sim.New(sim.DefaultConfig(), nil),
	}, start)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 1; i <= 50; i++ {
		e.Tick(start.Add(time.Duration(i) * time.Second))
	}
	v := e.View()
	if len(v.Temperatures) != 8 || len(v.Relays) != 8 {
		t.Fatalf("expected histories bounded to 8, got %d/%d", len(v.Temperatures), len(v.Relays))
	}
	if !v.Temperatures[7].Time.Equal(start.Add(50 * time.Second)) {
		t.Errorf("expected newest sample kept, got %v", v.Temperatures[7].Time)
	}
}

func TestModeProfileWaitsForAuto(t *testing.T) {
	e, rec := newSimEngine(t, "mode")
	if v := e.View(); v.Mode != string(logic.ModeOff) {
		t.Fatalf("expected mode off at start, got %q", v.Mode)
	}

	e.Tick(start.Add(150 * time.Second))
	if len(rec.transitions) != 0 {
		t.Fatal("controller must not act in off mode")
	}

	if err := e.SetMode("auto_switch"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if tr := e.Tick(start.Add(151 * time.Second)); tr == nil || tr.To != logic.StateOn {
		t.Fatalf("expected switch on in auto mode, got %+v", tr)
	}
}

func TestSetModeErrors(t *testing.T) {
	e, _ := newSimEngine(t, "dual")
	if err := e.SetMode("auto_switch"); !errors.Is(err, ErrModeUnsupported) {
		t.Errorf("expected ErrModeUnsupported, got %v", err)
	}

	m, _ := newSimEngine(t, "mode")
	if err := m.SetMode("turbo"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestSimulatedManualToggle(t *testing.T) {
	e, rec := newSimEngine(t, "mode")
	now := start.Add(10 * time.Second)

	e.ToggleRelay(now)
	if e.Control().Relay != logic.StateOn {
		t.Fatalf("expected relay on after toggle, got %s", e.Control().Relay)
	}
	if len(rec.transitions) != 1 || !rec.transitions[0].Forced {
		t.Fatalf("expected one forced transition, got %+v", rec.transitions)
	}
	if rec.transitions[0].PreviousDuration != 10*time.Second {
		t.Errorf("expected previous duration 10s, got %v", rec.transitions[0].PreviousDuration)
	}

	e.ToggleRelay(now.Add(time.Second))
	if e.Control().Relay != logic.StateOff {
		t.Errorf("expected relay off after second toggle, got %s", e.Control().Relay)
	}
}

func TestSimulatedSetTarget(t *testing.T) {
	e, _ := newSimEngine(t, "dual")
	e.Tick(start.Add(90 * time.Second))

	if err := e.SetTarget(250); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	if e.Target().Target != 250 {
		t.Errorf("expected target 250, got %v", e.Target().Target)
	}
	if th := e.Thresholds(); th != logic.Collapsed(250) {
		t.Errorf("expected bounds reset to new target, got %+v", th)
	}
}

func TestSetTargetRejectsNonFinite(t *testing.T) {
	e, _ := newSimEngine(t, "dual")
	for _, v := range []float64{math.NaN(), math.Inf(1), -5, 1200} {
		if err := e.SetTarget(v); !errors.Is(err, telemetry.ErrInvalidTarget) {
			t.Errorf("SetTarget(%v): expected ErrInvalidTarget, got %v", v, err)
		}
	}
	if e.Target().Target != 300 {
		t.Errorf("target must be unchanged, got %v", e.Target().Target)
	}
}

func TestSimulatedIgnoresTelemetry(t *testing.T) {
	e, _ := newSimEngine(t, "dual")
	e.Apply(decode(t, `{"temperature":20,"relais":1}`), start.Add(time.Second))
	if temp, _ := e.Temperature(); temp != 300 {
		t.Errorf("expected telemetry ignored, temp is %v", temp)
	}
}

func TestLiveApplyReadings(t *testing.T) {
	e, _, rec := newLiveEngine(t, "dual")
	if _, ok := e.Temperature(); ok {
		t.Fatal("expected no temperature before first reading")
	}

	e.Apply(decode(t, `{"temperature":280.5,"relais":1}`), start.Add(time.Second))

	temp, ok := e.Temperature()
	if !ok || temp != 280.5 {
		t.Errorf("expected 280.5, got %v %v", temp, ok)
	}
	if e.Control().Relay != logic.StateOn {
		t.Errorf("expected relay seeded ON, got %s", e.Control().Relay)
	}
	if len(rec.transitions) != 0 {
		t.Errorf("first relay report should seed state without a transition, got %d", len(rec.transitions))
	}

	e.Apply(decode(t, `{"temperature":281,"relais":1}`), start.Add(2*time.Second))
	if len(rec.transitions) != 0 {
		t.Errorf("unchanged relay should not notify, got %d", len(rec.transitions))
	}

	e.Apply(decode(t, `{"temperature":290,"relais":0}`), start.Add(3*time.Second))
	if len(rec.transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(rec.transitions))
	}
	if tr := rec.transitions[0]; tr.To != logic.StateOff || !tr.Forced {
		t.Errorf("unexpected transition %+v", tr)
	}

	v := e.View()
	if len(v.Temperatures) != 3 || len(v.Relays) != 3 {
		t.Errorf("expected 3 samples each, got %d/%d", len(v.Temperatures), len(v.Relays))
	}
	if len(v.Bands) != 1 {
		t.Fatalf("expected 1 band, got %d", len(v.Bands))
	}
	if !v.Bands[0].From.Equal(start.Add(time.Second)) || !v.Bands[0].To.Equal(start.Add(3*time.Second)) {
		t.Errorf("unexpected band %+v", v.Bands[0])
	}
}

func TestLiveRelaySwitchCollapsesBounds(t *testing.T) {
	e, _, _ := newLiveEngine(t, "dual")

	var seen []logic.Thresholds
	e.Subscribe(ObserverFunc(func(logic.Transition) {
		seen = append(seen, e.Thresholds())
	}))

	e.Apply(decode(t, `{"temperature":300,"relais":0}`), start)
	e.Apply(decode(t, `{"temperature":270,"relais":1}`), start.Add(5*time.Minute))

	cs := e.Control()
	if cs.Relay != logic.StateOn || cs.LastSwitchDuration != 5*time.Minute {
		t.Fatalf("unexpected control state %+v", cs)
	}
	if th := e.Thresholds(); th.Upper != 300 || th.Lower != 300 {
		t.Errorf("expected bounds collapsed to 300/300, got %+v", th)
	}
	if len(seen) != 1 || seen[0].Upper != 300 || seen[0].Lower != 300 {
		t.Errorf("observers should see collapsed bounds, got %+v", seen)
	}
	if v := e.View(); v.Thresholds.Upper != 300 || v.Thresholds.Lower != 300 {
		t.Errorf("view carries stale bounds %+v", v.Thresholds)
	}
}

func TestLiveRelaySwitchKeepsDeviceBounds(t *testing.T) {
	e, _, _ := newLiveEngine(t, "dual")

	e.Apply(decode(t, `{"relais":0,"derived_overshoot":285,"derived_undershoot":305}`), start)
	e.Apply(decode(t, `{"relais":1}`), start.Add(5*time.Minute))

	if th := e.Thresholds(); th.Upper != 285 || th.Lower != 305 {
		t.Errorf("controller bounds must survive a switch, got %+v", th)
	}
}

func TestLiveDeviceBoundsOverride(t *testing.T) {
	e, _, _ := newLiveEngine(t, "dual")

	e.Apply(decode(t, `{"temperature":300}`), start.Add(90*time.Second))
	if th := e.Thresholds(); th.Upper != 290 || th.Lower != 310 {
		t.Fatalf("expected locally derived 290/310, got %+v", th)
	}

	e.Apply(decode(t, `{"derived_overshoot":285,"derived_undershoot":305}`), start.Add(91*time.Second))
	e.Apply(decode(t, `{"temperature":301}`), start.Add(150*time.Second))

	th := e.Thresholds()
	if th.Upper != 285 || th.Lower != 305 {
		t.Errorf("expected device bounds to stick, got %+v", th)
	}
	if !e.View().DeviceBounds {
		t.Error("expected DeviceBounds in view")
	}
}

func TestLiveTargetModeAndExtras(t *testing.T) {
	e, _, _ := newLiveEngine(t, "mode")
	e.Apply(decode(t, `{"target_temp":250,"mode":"auto_switch","humidity":40,"firmware":"v2"}`), start.Add(time.Second))

	if e.Target().Target != 250 {
		t.Errorf("expected target 250, got %v", e.Target().Target)
	}
	v := e.View()
	if v.Mode != "auto_switch" {
		t.Errorf("expected mode auto_switch, got %q", v.Mode)
	}
	if v.Extras["humidity"] != 40 {
		t.Errorf("expected humidity extra, got %v", v.Extras)
	}
	if _, ok := v.Extras["firmware"]; ok {
		t.Error("non-numeric extras should not be kept")
	}

	// View extras are a copy
	v.Extras["humidity"] = 0
	if e.View().Extras["humidity"] != 40 {
		t.Error("view extras must not alias engine state")
	}
}

func TestLiveCommandsAreSent(t *testing.T) {
	e, s, rec := newLiveEngine(t, "mode")

	e.ToggleRelay(start.Add(time.Second))
	if err := e.SetTarget(50); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	if err := e.SetMode("auto_switch"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	want := []string{"switchRelais", "setTargetTemp: 050", "setMode: auto_switch"}
	if len(s.sent) != len(want) {
		t.Fatalf("expected %d commands, got %v", len(want), s.sent)
	}
	for i := range want {
		if s.sent[i] != want[i] {
			t.Errorf("command %d: got %q, want %q", i, s.sent[i], want[i])
		}
	}

	// The device is authoritative: nothing changes until telemetry arrives.
	if e.Control().Relay != logic.StateOff || len(rec.transitions) != 0 {
		t.Error("live toggle must not change local state")
	}
	if e.Target().Target != 300 {
		t.Errorf("live target must not change locally, got %v", e.Target().Target)
	}
}

func TestLiveTickIsNoop(t *testing.T) {
	e, _, _ := newLiveEngine(t, "dual")
	if tr := e.Tick(start.Add(time.Hour)); tr != nil {
		t.Errorf("expected no transition from Tick in live mode, got %+v", tr)
	}
	if len(e.View().Temperatures) != 0 {
		t.Error("Tick must not record samples in live mode")
	}
}

func TestViewCarriesSessionInfo(t *testing.T) {
	e, _ := newSimEngine(t, "single")
	v := e.View()
	if v.SessionID == "" || v.SessionID != e.ID() {
		t.Errorf("unexpected session id %q", v.SessionID)
	}
	if v.Profile != "single" || v.Driver != Simulated || v.Switchable {
		t.Errorf("unexpected view header %+v", v)
	}
	if !v.StartTime.Equal(start) {
		t.Errorf("unexpected start time %v", v.StartTime)
	}
}

func TestLookupProfile(t *testing.T) {
	names := ProfileNames()
	if len(names) != 3 || names[0] != "dual" || names[1] != "mode" || names[2] != "single" {
		t.Errorf("unexpected profile names %v", names)
	}
	if _, err := LookupProfile("triple"); err == nil {
		t.Error("expected error for unknown profile")
	}
}
