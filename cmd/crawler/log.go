package main

import (
	"io"
	"os"

	"github.com/decred/slog"

	"github.com/p2p-crawler/crawler/internal/crawl"
	"github.com/p2p-crawler/crawler/internal/dnsseeds"
	"github.com/p2p-crawler/crawler/internal/frontier"
	"github.com/p2p-crawler/crawler/internal/output"
	"github.com/p2p-crawler/crawler/internal/session"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/p2p-crawler/crawler/internal/wire"
)

var crawlerLog = slog.Disabled

// subsystemLoggers maps each package's UseLogger hook to the tag its
// messages are prefixed with, mirroring dcrd's per-subsystem tagging
// (XFRT, XWIR, XSES, ...).
type subsystemLoggers struct {
	XCTL slog.Logger
	XWIR slog.Logger
	XTRN slog.Logger
	XSES slog.Logger
	XFRT slog.Logger
	XSED slog.Logger
	XOUT slog.Logger
}

func initLogging(storeDebugLog bool, debugLogPath string, level slog.Level) (*subsystemLoggers, func(), error) {
	writers := []io.Writer{os.Stdout}
	closer := func() {}

	if storeDebugLog {
		f, err := os.Create(debugLogPath)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closer = func() { f.Close() }
	}

	backend := slog.NewBackend(io.MultiWriter(writers...))

	loggers := &subsystemLoggers{
		XCTL: backend.Logger("XCTL"),
		XWIR: backend.Logger("XWIR"),
		XTRN: backend.Logger("XTRN"),
		XSES: backend.Logger("XSES"),
		XFRT: backend.Logger("XFRT"),
		XSED: backend.Logger("XSED"),
		XOUT: backend.Logger("XOUT"),
	}
	for _, l := range []slog.Logger{
		loggers.XCTL, loggers.XWIR, loggers.XTRN, loggers.XSES,
		loggers.XFRT, loggers.XSED, loggers.XOUT,
	} {
		l.SetLevel(level)
	}

	crawlerLog = loggers.XCTL

	crawl.UseLogger(loggers.XCTL)
	wire.UseLogger(loggers.XWIR)
	transport.UseLogger(loggers.XTRN)
	session.UseLogger(loggers.XSES)
	frontier.UseLogger(loggers.XFRT)
	dnsseeds.UseLogger(loggers.XSED)
	output.UseLogger(loggers.XOUT)

	return loggers, closer, nil
}
