package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lialabs/liameet/internal/backend"
	"github.com/lialabs/liameet/internal/bus"
	"github.com/lialabs/liameet/internal/capture"
	"github.com/lialabs/liameet/internal/config"
	"github.com/lialabs/liameet/internal/llm"
	"github.com/lialabs/liameet/internal/metrics"
	"github.com/lialabs/liameet/internal/notify"
	"github.com/lialabs/liameet/internal/playback"
	"github.com/lialabs/liameet/internal/realtime"
	"github.com/lialabs/liameet/internal/session"
	"github.com/lialabs/liameet/internal/store"
)

// Daemon owns the control socket and at most one live session. Each session
// gets a fresh orchestrator with its own audio source and realtime link.
type Daemon struct {
	mu      sync.Mutex
	manager *config.Manager
	store   *store.SQLite
	metrics *metrics.Metrics

	orch *session.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
}

func New(manager *config.Manager) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{manager: manager, ctx: ctx, cancel: cancel}
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	cfg := d.manager.GetConfig()

	if cfg.Storage.Enabled {
		path, err := cfg.StoragePath()
		if err != nil {
			return err
		}
		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		d.store = st
		defer st.Close()
		log.Printf("daemon: session store at %s", path)
	}

	if cfg.Metrics.Enabled {
		d.metrics = metrics.New()
		go d.serveMetrics(cfg.Metrics.Addr)
	}

	if err := d.manager.StartWatching(d.ctx); err != nil {
		log.Printf("daemon: config watch unavailable: %v", err)
	}
	defer d.manager.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("daemon: received signal %v, shutting down", sig)
		d.cancel()
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Printf("daemon: listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.shutdownSession()
				log.Printf("daemon: shutdown complete")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("daemon: metrics on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("daemon: metrics server: %v", err)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	cmd, arg := bus.ParseCommand(line)

	switch cmd {
	case bus.CmdStart:
		d.cmdStart(c, arg)
	case bus.CmdEnd:
		d.cmdEnd(c, arg != "no-summary")
	case bus.CmdPause:
		d.cmdSimple(c, func(o *session.Orchestrator) error { return o.Pause() })
	case bus.CmdResume:
		d.cmdSimple(c, func(o *session.Orchestrator) error { return o.Resume() })
	case bus.CmdInvoke:
		d.cmdSimple(c, func(o *session.Orchestrator) error { return o.InvokeAssistant(arg) })
	case bus.CmdStatus:
		d.cmdStatus(c)
	case bus.CmdTranscript:
		d.cmdTranscript(c)
	case bus.CmdSummary:
		d.cmdSummary(c, arg)
	case bus.CmdStop:
		fmt.Fprint(c, "OK stopping\n")
		d.cancel()
	default:
		fmt.Fprintf(c, "ERR unknown command %q\n", cmd)
	}
}

func (d *Daemon) cmdStart(c net.Conn, title string) {
	d.mu.Lock()
	if d.orch != nil {
		st := d.orch.Status()
		if st != session.StatusEnded && st != session.StatusError && st != session.StatusIdle {
			d.mu.Unlock()
			fmt.Fprint(c, "ERR a session is already active\n")
			return
		}
	}
	orch := d.buildOrchestrator()
	d.orch = orch
	d.mu.Unlock()

	sess, err := orch.StartSession(d.ctx, session.StartOptions{Title: title})
	if err != nil {
		fmt.Fprintf(c, "ERR %v\n", err)
		return
	}
	fmt.Fprintf(c, "OK session=%s\n", sess.ID)
}

// buildOrchestrator wires a fresh orchestrator from the current config.
func (d *Daemon) buildOrchestrator() *session.Orchestrator {
	cfg := d.manager.GetConfig()

	var adapter llm.Adapter
	if llmCfg, ok := cfg.ToLLMConfig(); ok {
		a, err := llm.NewAdapter(llmCfg)
		if err != nil {
			log.Printf("daemon: llm adapter unavailable: %v", err)
		} else {
			adapter = a
		}
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notifications.Enabled {
		notifier = notify.NewDesktop(true)
	}

	var st session.Store
	if d.store != nil {
		st = d.store
	}

	pb := cfg.ToPlaybackConfig()
	deps := session.Deps{
		Source: capture.NewPipeWireSource(cfg.ToCaptureConfig()),
		NewBackend: func(name string) (backend.Backend, error) {
			return backend.New(cfg.ToBackendConfig(name))
		},
		Link:     realtime.New(cfg.ToRealtimeConfig()),
		Store:    st,
		LLM:      adapter,
		Playback: playback.NewQueue(pb, playback.PipeWireSinkFactory(pb.SampleRate, pb.Channels)),
		Notifier: notifier,
		Metrics:  d.metrics,
	}

	events := session.Events{
		OnStatus: func(s session.Status) { log.Printf("daemon: session status: %s", s) },
		OnError:  func(err error) { log.Printf("daemon: session error: %v", err) },
		OnSegment: func(seg session.Segment) {
			log.Printf("daemon: [%s] %s", seg.Speaker, seg.Text)
		},
	}

	return session.NewOrchestrator(cfg.ToSessionConfig(), deps, events)
}

func (d *Daemon) current() *session.Orchestrator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.orch
}

func (d *Daemon) cmdSimple(c net.Conn, fn func(*session.Orchestrator) error) {
	orch := d.current()
	if orch == nil {
		fmt.Fprint(c, "ERR no session\n")
		return
	}
	if err := fn(orch); err != nil {
		fmt.Fprintf(c, "ERR %v\n", err)
		return
	}
	fmt.Fprint(c, "OK\n")
}

func (d *Daemon) cmdEnd(c net.Conn, withSummary bool) {
	orch := d.current()
	if orch == nil {
		fmt.Fprint(c, "ERR no session\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sess, err := orch.EndSession(ctx, withSummary)
	if err != nil {
		fmt.Fprintf(c, "ERR %v\n", err)
		return
	}
	if sess == nil {
		fmt.Fprint(c, "OK no active session\n")
		return
	}
	fmt.Fprintf(c, "OK session=%s segments=%d\n", sess.ID, len(orch.Transcript()))
	if sess.Summary != "" {
		fmt.Fprintf(c, "\n%s\n", sess.Summary)
	}
}

func (d *Daemon) cmdStatus(c net.Conn) {
	orch := d.current()
	if orch == nil {
		fmt.Fprintf(c, "STATUS status=idle proto=%s\n", bus.ProtoVer)
		return
	}
	status := orch.Status()
	if sess := orch.Current(); sess != nil {
		fmt.Fprintf(c, "STATUS status=%s session=%s elapsed=%s proto=%s\n",
			status, sess.ID, time.Since(sess.StartedAt).Round(time.Second), bus.ProtoVer)
		return
	}
	fmt.Fprintf(c, "STATUS status=%s proto=%s\n", status, bus.ProtoVer)
}

func (d *Daemon) cmdTranscript(c net.Conn) {
	orch := d.current()
	if orch == nil {
		fmt.Fprint(c, "ERR no session\n")
		return
	}
	var sb strings.Builder
	for _, seg := range orch.Transcript() {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", seg.Offset.Round(time.Second), speaker, seg.Text)
	}
	if sb.Len() == 0 {
		fmt.Fprint(c, "OK transcript empty\n")
		return
	}
	fmt.Fprint(c, sb.String())
}

func (d *Daemon) cmdSummary(c net.Conn, kind string) {
	orch := d.current()
	if orch == nil {
		fmt.Fprint(c, "ERR no session\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	summary, err := orch.GenerateSummary(ctx, llm.SummaryKind(kind))
	if err != nil {
		fmt.Fprintf(c, "ERR %v\n", err)
		return
	}
	fmt.Fprintf(c, "%s\n", summary)
}

// shutdownSession ends any live session before the daemon exits.
func (d *Daemon) shutdownSession() {
	orch := d.current()
	if orch == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := orch.EndSession(ctx, false); err != nil {
		log.Printf("daemon: end session on shutdown: %v", err)
	}
}
