package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "hwbot/pkg/logx"
)

// sdNotifier speaks the sd_notify protocol. Outside systemd (no
// NOTIFY_SOCKET) every call is a no-op.
type sdNotifier struct {
	log logx.Logger
}

func (n sdNotifier) notify(states ...string) {
	for _, st := range states {
		if _, err := daemon.SdNotify(false, st); err != nil {
			n.log.Debug("sd_notify failed", logx.String("state", st), logx.Err(err))
		}
	}
}

func (n sdNotifier) ready()          { n.notify(daemon.SdNotifyReady) }
func (n sdNotifier) status(s string) { n.notify("STATUS=" + s) }
func (n sdNotifier) stopping(reason string) {
	n.notify(daemon.SdNotifyStopping, "STATUS=stopping: "+reason)
}

// watchdog pings WATCHDOG=1 at half the interval systemd asked for, until ctx
// is done. It returns immediately when the watchdog is not enabled.
func (n sdNotifier) watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	every := interval / 2
	if every < time.Second {
		every = time.Second
	}
	n.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
