package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"RSIScreener/internal/model"
	"RSIScreener/internal/notifier"
	"RSIScreener/internal/strategy"
)

// MinInterval is the shortest accepted pause between continuous cycles.
const MinInterval = time.Second

// State is the scheduler's lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateSleeping:
		return "SLEEPING"
	default:
		return "STOPPED"
	}
}

// CycleRunner executes one screening pass.
type CycleRunner interface {
	RunCycle(ctx context.Context) *model.CycleReport
}

// Notifier receives every finished cycle.
type Notifier interface {
	Notify(ctx context.Context, report *model.CycleReport) ([]model.Alert, error)
}

// CycleObserver is told about finished cycles and sleep phases.
type CycleObserver interface {
	ObserveCycle(report *model.CycleReport)
	SetSleeping(sleeping bool)
}

// Scheduler drives screening cycles once, on a fixed interval, or on a cron
// schedule. Cycles never overlap.
type Scheduler struct {
	Runner   CycleRunner
	Notifier Notifier
	Observer CycleObserver
	Out      io.Writer
	Interval time.Duration

	// CycleContext is the parent of in-flight cycle work. It is separate from
	// the stop context passed to Run*, so a stop request lets the current
	// cycle finish; cancelling CycleContext aborts in-flight fetches.
	CycleContext context.Context

	state  atomic.Int32
	cycles atomic.Int64
	last   atomic.Pointer[model.CycleReport]
}

// NewScheduler creates a Scheduler. Intervals below MinInterval are clamped.
func NewScheduler(runner CycleRunner, n Notifier, out io.Writer, interval time.Duration) *Scheduler {
	if interval < MinInterval {
		log.Printf("[WARN] interval %v below minimum, using %v", interval, MinInterval)
		interval = MinInterval
	}
	return &Scheduler{
		Runner:       runner,
		Notifier:     n,
		Out:          out,
		Interval:     interval,
		CycleContext: context.Background(),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cycles returns how many cycles have completed.
func (s *Scheduler) Cycles() int64 { return s.cycles.Load() }

// LastReport returns the most recent cycle report, or nil before the first.
func (s *Scheduler) LastReport() *model.CycleReport { return s.last.Load() }

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	if s.Observer != nil {
		s.Observer.SetSleeping(st == StateSleeping)
	}
}

// RunOnce runs a single cycle, emits it and returns the report.
func (s *Scheduler) RunOnce() *model.CycleReport {
	s.setState(StateRunning)
	defer s.setState(StateStopped)
	return s.runCycle()
}

// RunContinuous runs cycles back to back with Interval of sleep in between
// until stop is cancelled. A stop during a cycle lets it finish; a stop
// during sleep returns immediately.
func (s *Scheduler) RunContinuous(stop context.Context) error {
	log.Printf("[INFO] continuous mode, checking every %v (Ctrl+C to stop)", s.Interval)
	defer s.setState(StateStopped)

	for {
		s.setState(StateRunning)
		s.runCycle()
		if stop.Err() != nil {
			break
		}

		s.setState(StateSleeping)
		log.Printf("[INFO] waiting %v before next check", s.Interval)
		timer := time.NewTimer(s.Interval)
		select {
		case <-stop.Done():
			timer.Stop()
			log.Println("[INFO] stop requested while sleeping")
			return nil
		case <-timer.C:
		}
	}
	log.Println("[INFO] stop requested, current cycle finished")
	return nil
}

// RunCron runs cycles on the given cron schedule until stop is cancelled.
// Runs that would overlap a still-running cycle are skipped. When runOnStart
// is set a cycle runs immediately.
func (s *Scheduler) RunCron(stop context.Context, schedule cron.Schedule, runOnStart bool) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))))
	job := cron.FuncJob(func() {
		s.setState(StateRunning)
		s.runCycle()
		s.setState(StateSleeping)
	})
	c.Schedule(schedule, job)

	s.setState(StateSleeping)
	if runOnStart {
		log.Println("[INFO] run on start enabled, executing a cycle now")
		job.Run()
	}
	c.Start()
	log.Printf("[INFO] cron scheduler started, next run at %s", schedule.Next(time.Now()).Format(time.RFC3339))

	<-stop.Done()
	log.Println("[INFO] stop requested, waiting for running cycle")
	<-c.Stop().Done()
	s.setState(StateStopped)
	log.Println("[INFO] cron scheduler stopped")
	return nil
}

func (s *Scheduler) runCycle() *model.CycleReport {
	ctx := s.CycleContext
	if ctx == nil {
		ctx = context.Background()
	}
	log.Println("[INFO] running screening cycle")
	report := s.Runner.RunCycle(ctx)
	s.cycles.Add(1)
	s.last.Store(report)

	if s.Out != nil {
		if err := notifier.WriteCycleReport(s.Out, report); err != nil {
			log.Printf("[ERROR] write report: %v", err)
		}
	}
	if s.Notifier != nil {
		alerts, err := s.Notifier.Notify(ctx, report)
		if err != nil {
			log.Printf("[ERROR] notifications: %v", err)
		}
		if len(alerts) > 0 {
			log.Printf("[INFO] %d alert(s) triggered", len(alerts))
		}
	}
	if s.Observer != nil {
		s.Observer.ObserveCycle(report)
	}
	return report
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	var cmd string
	if fields := strings.Fields(command); len(fields) > 0 {
		cmd, _, _ = strings.Cut(fields[0], "@")
	}
	report := s.LastReport()
	switch strings.ToLower(cmd) {
	case "/status":
		var b strings.Builder
		fmt.Fprintf(&b, "state: %s\ncycles: %d\n", s.State(), s.Cycles())
		if report != nil {
			fmt.Fprintf(&b, "last cycle: %s (%s)\n", report.StartedAt.Format("2006-01-02 15:04:05"), report.Duration.Round(time.Millisecond))
			fmt.Fprintf(&b, "%d overbought, %d oversold, %d neutral, %d unavailable",
				report.Count(model.SignalOverbought), report.Count(model.SignalOversold),
				report.Count(model.SignalNeutral), report.Count(model.SignalUnavailable))
		}
		return strings.TrimRight(b.String(), "\n")
	case "/report":
		if report == nil {
			return "no cycle has completed yet"
		}
		var buf bytes.Buffer
		if err := notifier.WriteCycleReport(&buf, report); err != nil {
			return fmt.Sprintf("report unavailable: %v", err)
		}
		return buf.String()
	case "/alerts":
		if report == nil {
			return "no cycle has completed yet"
		}
		alerts := strategy.Alerts(report)
		if len(alerts) == 0 {
			return "no tickers outside thresholds"
		}
		lines := make([]string, len(alerts))
		for i, a := range alerts {
			lines[i] = notifier.FormatAlertLine(a)
		}
		return strings.Join(lines, "\n")
	default:
		return "commands:\n/status - scheduler state and last cycle\n/report - last screening table\n/alerts - overbought and oversold tickers"
	}
}
