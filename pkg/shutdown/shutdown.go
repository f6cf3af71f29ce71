// Package shutdown handles fatal startup errors: it writes a crash dump
// with stack traces plus a machine-readable abort request, logs where they
// went, and exits. Ops tooling watches the abort dir to explain restarts.
package shutdown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"chatsync/pkg/logger"
)

type abortRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Abort writes diagnostics and exits with status 2. The optional delay
// gives log sinks time to flush; pass 0 to exit immediately.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 10
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, reqPath, derr := writeDiagnostics(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("abort_diagnostics_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", dumpPath, "request", reqPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(1 * time.Second)
	}
	os.Exit(2)
}

// writeDiagnostics writes a crash dump and an abort request file under
// <dbPath>/state, or ./crash and ./abort when no db path is known.
func writeDiagnostics(dbPath, reason string, err error) (string, string, error) {
	crashDir := "./crash"
	abortDir := "./abort"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
		abortDir = filepath.Join(dbPath, "state", "abort")
	}
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create crash dir: %w", e)
	}
	if e := os.MkdirAll(abortDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create abort dir: %w", e)
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", ts))

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	body := fmt.Sprintf("time: %s\nreason: %s\nerror: %v\n\n%s",
		time.Now().UTC().Format(time.RFC3339Nano), reason, err, buf[:n])
	if e := os.WriteFile(dumpPath, []byte(body), 0o600); e != nil {
		return "", "", fmt.Errorf("failed to write crash dump: %w", e)
	}

	req := abortRequest{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Reason:    reason,
		Cmd:       filepath.Base(os.Args[0]),
		CrashPath: dumpPath,
	}
	reqPath := filepath.Join(abortDir, fmt.Sprintf("abort-%d.json", ts))
	b, _ := json.MarshalIndent(req, "", "  ")
	if e := os.WriteFile(reqPath, b, 0o600); e != nil {
		return dumpPath, "", fmt.Errorf("failed to write abort request: %w", e)
	}
	return dumpPath, reqPath, nil
}
