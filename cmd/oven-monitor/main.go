// Command oven-monitor follows an oven controller over websocket (or
// simulates one), keeps the recent temperature and relay history, and
// publishes relay transitions to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/oven-monitor/internal/device"
	"github.com/sweeney/oven-monitor/internal/engine"
	"github.com/sweeney/oven-monitor/internal/gpio"
	"github.com/sweeney/oven-monitor/internal/history"
	"github.com/sweeney/oven-monitor/internal/logic"
	"github.com/sweeney/oven-monitor/internal/metrics"
	"github.com/sweeney/oven-monitor/internal/mqtt"
	"github.com/sweeney/oven-monitor/internal/sim"
	"github.com/sweeney/oven-monitor/internal/status"
	"github.com/sweeney/oven-monitor/internal/telemetry"
	"github.com/sweeney/oven-monitor/internal/web"
)

type config struct {
	profile      string
	driver       string
	deviceURL    string
	interval     time.Duration
	retention    time.Duration
	initialTemp  float64
	broker       string
	heartbeat    time.Duration
	httpAddr     string
	indicatorPin int
}

func main() {
	var cfg config
	flag.StringVar(&cfg.profile, "profile", "dual", "Controller profile ("+strings.Join(engine.ProfileNames(), ", ")+")")
	flag.StringVar(&cfg.driver, "driver", "live", `Data source: "live" (websocket controller) or "sim" (local model)`)
	flag.StringVar(&cfg.deviceURL, "device", "ws://oven.local/ws", "Controller websocket URL")
	flag.DurationVar(&cfg.interval, "interval", 250*time.Millisecond, "Sample interval")
	flag.DurationVar(&cfg.retention, "retention", 60*time.Minute, "History kept in memory")
	flag.Float64Var(&cfg.initialTemp, "initial-temp", 20, "Starting temperature for the simulator")
	flag.StringVar(&cfg.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&cfg.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.IntVar(&cfg.indicatorPin, "indicator-pin", -1, fmt.Sprintf("BCM pin mirroring the relay, e.g. %d (-1 to disable)", gpio.DefaultPin))

	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func parseDriver(s string) (engine.Driver, error) {
	switch s {
	case "live":
		return engine.Live, nil
	case "sim", "simulated":
		return engine.Simulated, nil
	}
	return "", fmt.Errorf("unknown driver %q (want live or sim)", s)
}

func run(cfg config) error {
	profile, err := engine.LookupProfile(cfg.profile)
	if err != nil {
		return err
	}
	driver, err := parseDriver(cfg.driver)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startTime := nowMillis()
	opts := engine.Options{
		Profile:  profile,
		Driver:   driver,
		Capacity: history.CapacityFor(cfg.retention, cfg.interval),
	}

	// Controller link
	var client *device.Client
	inbound := make(chan []byte, 64)
	if driver == engine.Live {
		client = device.NewClient(cfg.deviceURL)
		opts.Sender = client
	} else {
		opts.Simulator = sim.New(sim.DefaultConfig(), nil)
		opts.InitialTemp = cfg.initialTemp
	}

	eng, err := engine.New(opts, startTime)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	// Relay indicator
	var indicator *gpio.Mirror
	if cfg.indicatorPin >= 0 {
		out, err := gpio.NewRealIndicator(cfg.indicatorPin)
		if err != nil {
			return fmt.Errorf("init indicator: %w", err)
		}
		defer out.Close()
		indicator = gpio.NewMirror(out)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(reg)
	if client != nil {
		mx.WatchReconnects(client.Reconnects)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.broker, "oven-monitor")
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		Profile:      profile.Name,
		Driver:       string(driver),
		DeviceURL:    deviceURLFor(driver, cfg.deviceURL),
		IntervalMs:   cfg.interval.Milliseconds(),
		RetentionMin: int64(cfg.retention / time.Minute),
		HeartbeatMs:  cfg.heartbeat.Milliseconds(),
		Broker:       cfg.broker,
		HTTPAddr:     cfg.httpAddr,
		IndicatorPin: cfg.indicatorPin,
	})
	tracker.Update(eng.View())
	tracker.SetMQTTConnected(publisher.IsConnected())
	publishStartup(publisher, tracker)

	commands := make(chan command)

	// Start HTTP status server
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker, newControlQueue(commands, 5*time.Second), reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	if client != nil {
		go client.Run(ctx, inbound)
	}

	log.Printf("started: session=%s profile=%s driver=%s interval=%v retention=%v broker=%s heartbeat=%v",
		eng.ID(), profile.Name, driver, cfg.interval, cfg.retention, cfg.broker, cfg.heartbeat)

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	deps := loopDeps{
		engine:     eng,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    mx,
		indicator:  indicator,
		heartbeat:  cfg.heartbeat,
	}
	if client != nil {
		deps.device = client
	}
	return runLoop(deps, nowMillis, ticker.C, inbound, commands, sigCh)
}

// nowMillis is the session clock. History is exported in milliseconds, so
// transitions are stamped at the same resolution as the samples.
func nowMillis() time.Time {
	return time.Now().Truncate(time.Millisecond)
}

func deviceURLFor(driver engine.Driver, url string) string {
	if driver != engine.Live {
		return ""
	}
	return url
}

// publishStartup sends the retained STARTUP event with a full status snapshot.
func publishStartup(publisher mqtt.Publisher, tracker *status.Tracker) {
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}
}

// command is an operator request executed on the run loop goroutine.
type command struct {
	apply func(e *engine.Engine, now time.Time) error
	reply chan error
}

// controlQueue implements web.Control by handing commands to the run loop.
type controlQueue struct {
	ch      chan<- command
	timeout time.Duration
}

func newControlQueue(ch chan<- command, timeout time.Duration) *controlQueue {
	return &controlQueue{ch: ch, timeout: timeout}
}

func (q *controlQueue) do(fn func(e *engine.Engine, now time.Time) error) error {
	c := command{apply: fn, reply: make(chan error, 1)}
	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.ch <- c:
	case <-timer.C:
		return context.DeadlineExceeded
	}
	select {
	case err := <-c.reply:
		return err
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func (q *controlQueue) ToggleRelay() error {
	return q.do(func(e *engine.Engine, now time.Time) error {
		e.ToggleRelay(now)
		return nil
	})
}

func (q *controlQueue) SetTarget(v float64) error {
	return q.do(func(e *engine.Engine, _ time.Time) error {
		return e.SetTarget(v)
	})
}

func (q *controlQueue) SetMode(name string) error {
	return q.do(func(e *engine.Engine, _ time.Time) error {
		return e.SetMode(name)
	})
}

type connectionStatus interface {
	IsConnected() bool
}

// loopDeps are the collaborators of runLoop. Only engine, publisher and
// tracker are required.
type loopDeps struct {
	engine     *engine.Engine
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	device     connectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	indicator  *gpio.Mirror
	heartbeat  time.Duration
}

func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, inbound <-chan []byte, commands <-chan command, sig <-chan os.Signal) error {
	eng := d.engine
	eng.Subscribe(engine.ObserverFunc(func(tr logic.Transition) {
		publishTransition(d, tr)
	}))
	if d.metrics != nil {
		eng.Subscribe(d.metrics)
	}
	refresh(d)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh(d)
			snap := d.tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case msg := <-inbound:
			t := now()
			updates, err := telemetry.Decode(msg)
			if err != nil {
				log.Printf("discarding telemetry: %v", err)
				if d.metrics != nil {
					d.metrics.DecodeError()
				}
				continue
			}
			if d.metrics != nil {
				d.metrics.Message(t)
			}
			eng.Apply(updates, t)
			refresh(d)

		case c := <-commands:
			c.reply <- c.apply(eng, now())
			refresh(d)

		case <-tick:
			t := now()
			if eng.Driver() == engine.Simulated {
				eng.Tick(t)
				refresh(d)
			} else {
				// Live state only changes on messages and commands.
				refreshLinks(d)
			}

			if hb := eng.CheckHeartbeat(t, d.heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v relay_on=%d relay_off=%d", hb.Uptime, hb.Counts.On, hb.Counts.Off)
				snap := d.tracker.Snapshot()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hb.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func publishTransition(d loopDeps, tr logic.Transition) {
	eng := d.engine
	temp, _ := eng.Temperature()
	log.Printf("relay: %s -> %s after %v (temp=%.2f forced=%t)", tr.From, tr.To, tr.PreviousDuration, temp, tr.Forced)

	event := mqtt.RelayEvent{
		Session:     eng.ID(),
		Transition:  tr,
		Temperature: temp,
		Thresholds:  eng.Thresholds(),
		Target:      eng.Target().Target,
	}
	if err := d.publisher.Publish(event); err != nil {
		// Don't crash on publish failure
		log.Printf("publish error: %v", err)
	}
}

// refresh pushes the session state to the tracker, metrics and indicator.
// It copies the full histories, so call it only after the session changed.
func refresh(d loopDeps) {
	v := d.engine.View()
	d.tracker.Update(v)
	refreshLinks(d)
	if d.metrics != nil {
		d.metrics.Observe(v)
	}
	if d.indicator != nil {
		if err := d.indicator.Apply(v.Control.Relay == logic.StateOn); err != nil {
			log.Printf("indicator error: %v", err)
		}
	}
}

// refreshLinks updates the connectivity flags only.
func refreshLinks(d loopDeps) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.device != nil {
		d.tracker.SetDeviceConnected(d.device.IsConnected())
	}
}

var _ web.Control = (*controlQueue)(nil)
