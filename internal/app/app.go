// Package app wires the crewpager services together and exposes the
// operations the console (or any other frontend) invokes.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crewpager/internal/compose"
	"crewpager/internal/config"
	"crewpager/internal/device"
	"crewpager/internal/dispatch"
	"crewpager/internal/eventbus"
	"crewpager/internal/history"
	"crewpager/internal/message"
	"crewpager/internal/schedule"
	"crewpager/internal/storage"
	"crewpager/internal/template"
	"crewpager/pkg/logx"
)

const defaultSimulatorInterval = 15 * time.Second

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store     storage.Store
	templates *template.Store
	devices   *device.Registry
	composer  *compose.Composer
	hist      *history.Log
	engine    *dispatch.Engine
	sched     *schedule.Service

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	bus := eventbus.New()

	// Audit storage (optional).
	var store storage.Store
	if sc, enabled, err := mapStorage(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	templates := template.NewStore()
	if err := seedTemplates(templates, cfg); err != nil {
		return nil, err
	}

	devices := device.NewRegistry(cfg.Devices.Count)
	composer := compose.New(templates, devices)
	hist := history.NewLog(bus, log.With(logx.String("comp", "history")))

	dcfg, err := mapDispatch(cfg)
	if err != nil {
		return nil, err
	}
	clock := schedule.RealClock()
	engine := dispatch.New(dcfg, devices, hist, bus, clock, log.With(logx.String("comp", "dispatch")))

	sched := schedule.New(schedule.Config{Timezone: cfg.Scheduler.Timezone},
		engine, hist, bus, clock, log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		templates: templates,
		devices:   devices,
		composer:  composer,
		hist:      hist,
		engine:    engine,
		sched:     sched,
	}, nil
}

// Start brings up the scheduler, the optional worker auto-responder and
// the config hot-reload watcher.
func (a *App) Start(ctx context.Context) error {
	a.sched.Start(ctx)

	cfg := a.cfgm.Get()
	if sim := cfg.Simulator; sim != nil && sim.Enabled {
		every, err := config.ParseDurationOrDefault("simulator.interval", sim.Interval, defaultSimulatorInterval)
		if err != nil {
			return err
		}
		err = a.sched.AddInterval("worker-sim", every, func(ctx context.Context) error {
			if n := a.engine.SimulateAll(); n > 0 {
				a.log.Debug("simulated worker responses", logx.Int("count", n))
			}
			return nil
		})
		if err != nil {
			return err
		}
		a.log.Info("worker auto-responder enabled", logx.Duration("interval", every))
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.watchCancel = cancel
	a.mu.Unlock()

	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		_ = a.cfgm.Watch(watchCtx)
	}()
	updates := a.cfgm.Subscribe(1)
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-watchCtx.Done():
				a.cfgm.Unsubscribe(updates)
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				// Only logging is hot-swappable; everything else needs a
				// restart and is intentionally left alone.
				a.logs.Apply(mapLogging(cfg))
				a.log.Info("logging config applied")
			}
		}
	}()

	a.log.Info("crewpager started", logx.Int("devices", len(a.devices.IDs())))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.watchCancel
	a.watchCancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		a.watchWG.Wait()
	}

	a.sched.Stop(ctx)
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("crewpager stopped")
	return a.logs.Close()
}

// ---- Operations invoked by the frontend ----

// Send validates in and either dispatches immediately or hands the message
// to the scheduler. The message is recorded in history either way.
func (a *App) Send(in compose.Input) (*message.Message, error) {
	msg, err := a.composer.Compose(in)
	if err != nil {
		a.audit(storage.AuditEntry{Action: "send", OK: false, Error: err.Error()})
		return nil, err
	}

	a.hist.Record(msg)
	if msg.Status == message.StatusScheduled {
		if err := a.sched.Schedule(msg); err != nil {
			return nil, err
		}
		a.audit(storage.AuditEntry{
			Action: "schedule", MessageID: msg.ID, OK: true,
			Detail: fmt.Sprintf("at=%s recurrence=%s", msg.ScheduledAt.Format(time.RFC3339), msg.Recurrence),
		})
	} else {
		a.engine.Dispatch(msg)
		a.audit(storage.AuditEntry{
			Action: "send", MessageID: msg.ID, OK: true,
			Detail: fmt.Sprintf("devices=%d", len(msg.Devices)),
		})
	}
	return msg.Clone(), nil
}

// CancelScheduled removes a still-scheduled message from future firing and
// from history. Messages that already fired are rejected untouched.
func (a *App) CancelScheduled(id int64) error {
	m, ok := a.hist.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", history.ErrNotFound, id)
	}
	if m.Status != message.StatusScheduled {
		return history.ErrNotScheduled
	}
	if err := a.sched.Cancel(id); err != nil {
		return err
	}
	if err := a.hist.Delete(id); err != nil {
		return err
	}
	a.audit(storage.AuditEntry{Action: "cancel", MessageID: id, OK: true})
	return nil
}

// Respond records deviceID's reply to whatever is on its screen.
func (a *App) Respond(deviceID int, text string) error {
	err := a.engine.Respond(deviceID, text)
	a.audit(storage.AuditEntry{
		Action: "respond", Device: deviceID, Detail: text,
		OK: err == nil, Error: errString(err),
	})
	return err
}

// Reuse returns a composer draft built from a history entry.
func (a *App) Reuse(id int64) (history.Draft, error) {
	return a.hist.Reuse(id)
}

// SaveTemplate creates or edits a template.
func (a *App) SaveTemplate(key string, t template.Template) error {
	err := a.templates.Upsert(key, t)
	a.audit(storage.AuditEntry{
		Action: "template.save", Template: key,
		OK: err == nil, Error: errString(err),
	})
	return err
}

// DeleteTemplate removes a custom template; built-ins are protected.
func (a *App) DeleteTemplate(key string) error {
	err := a.templates.Remove(key)
	a.audit(storage.AuditEntry{
		Action: "template.delete", Template: key,
		OK: err == nil, Error: errString(err),
	})
	return err
}

func (a *App) Templates() []template.Entry { return a.templates.List() }

func (a *App) Template(key string) (template.Template, error) { return a.templates.Get(key) }

func (a *App) Devices() []device.State { return a.devices.Snapshot() }

func (a *App) History() []*message.Message { return a.hist.Snapshot() }

func (a *App) Message(id int64) (*message.Message, bool) { return a.hist.Get(id) }

func (a *App) Pending() []schedule.PendingInfo { return a.sched.Pending() }

func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) Logger() logx.Logger { return a.log }

// ClearDevice wipes one device screen.
func (a *App) ClearDevice(deviceID int) {
	a.engine.ClearDevice(deviceID)
	a.audit(storage.AuditEntry{Action: "clear", Device: deviceID, OK: true})
}

// ClearAllScreens wipes every device screen (the Escape shortcut).
func (a *App) ClearAllScreens() {
	a.engine.ClearAll()
	a.audit(storage.AuditEntry{Action: "clear", OK: true})
}

// SetDeviceOnline flips a device's simulated connection flag. The screen
// contents are untouched; the device just renders as OFFLINE until
// brought back.
func (a *App) SetDeviceOnline(deviceID int, online bool) error {
	if err := a.devices.SetOnline(deviceID, online); err != nil {
		return err
	}
	for _, st := range a.devices.Snapshot() {
		if st.ID == deviceID {
			a.bus.Publish(eventbus.Event{Type: eventbus.TypeDeviceStatus, Data: st})
			break
		}
	}
	detail := "offline"
	if online {
		detail = "online"
	}
	a.audit(storage.AuditEntry{Action: "online", Device: deviceID, Detail: detail, OK: true})
	return nil
}

// SimulateResponses answers every pending device with a canned reply.
func (a *App) SimulateResponses() int { return a.engine.SimulateAll() }

func (a *App) audit(e storage.AuditEntry) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.store.AppendAudit(ctx, e); err != nil {
		a.log.Warn("audit append failed", logx.Err(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
