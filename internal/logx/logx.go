// Package logx wires up the node's logger: a rotating log file backed by
// decred/slog subsystem loggers, one per component of the node.
package logx

import (
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags every log line with the component that produced it,
// mirroring the node's Action enum (UTXO, handshake, download, wallet...).
type Subsystem string

const (
	UTXO       Subsystem = "UTXO"
	THREADPOOL Subsystem = "THREADPOOL"
	IBD        Subsystem = "INITIAL BLOCK DOWNLOAD"
	CONNECT    Subsystem = "CONEXION"
	WALLET     Subsystem = "WALLET"
	POWPOI     Subsystem = "POW&POI"
	SERVER     Subsystem = "SERVER"
	NETWORK    Subsystem = "NETWORK"
	LISTENER   Subsystem = "LISTENER"
)

var backend *slog.Backend
var loggers = map[Subsystem]slog.Logger{}

// Init opens (creating if needed) a rotating log file at logPath and builds
// one slog.Logger per subsystem on top of it. When printToStdout is true,
// log lines are echoed to stdout as well as the file - the opposite of
// the original node's "only print when NOT writing to a file" habit, kept
// here as an explicit opt-in instead.
func Init(logPath string, maxSizeBytes int64, printToStdout bool) error {
	rot, err := rotator.New(logPath, maxSizeBytes, false, 10)
	if err != nil {
		return err
	}

	var w io.Writer = rot
	if printToStdout {
		w = io.MultiWriter(rot, os.Stdout)
	}

	backend = slog.NewBackend(w)

	for _, sub := range []Subsystem{UTXO, THREADPOOL, IBD, CONNECT, WALLET, POWPOI, SERVER, NETWORK, LISTENER} {
		l := backend.Logger(string(sub))
		l.SetLevel(slog.LevelInfo)
		loggers[sub] = l
	}
	return nil
}

// For returns the logger for a subsystem, falling back to a disabled
// logger if Init was never called (keeps tests from needing a log file).
func For(sub Subsystem) slog.Logger {
	if l, ok := loggers[sub]; ok {
		return l
	}
	return slog.Disabled
}
