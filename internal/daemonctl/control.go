package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"pipecopy/internal/daemonrun"
	"pipecopy/internal/ipc"
)

// ErrNotRunning indicates the control socket is unavailable.
var ErrNotRunning = errors.New("pipecopy is not running")

const pollInterval = 100 * time.Millisecond

// StopResult captures the stop outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// WaitForShutdown waits until the control socket disappears or reports a
// stopped pipeline.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isUnavailable(err) {
				return nil
			}
			lastErr = err
			time.Sleep(pollInterval)
			continue
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && status.State == "stopped" {
			return nil
		}
		if statusErr != nil {
			lastErr = statusErr
		} else {
			lastErr = fmt.Errorf("pipeline still %s", status.State)
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("pipecopy did not stop: %w", lastErr)
}

// ForceKillProcess sends SIGKILL to the process named in pidPath, falling
// back to fallbackPID, and removes the pid file and socket it leaves behind.
func ForceKillProcess(pidPath, socketPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	if parsed, err := daemonrun.ReadPID(pidPath); err == nil && parsed > 0 {
		pid = parsed
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine pipecopy pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return 0, fmt.Errorf("kill process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if socketPath != "" {
		_ = os.Remove(socketPath)
	}
	return pid, nil
}

// StopAndTerminate asks the pipeline to stop. With a positive gracePeriod the
// process is killed if it has not stopped in time; otherwise StopAndTerminate
// waits for the queue to drain however long that takes.
func StopAndTerminate(socketPath, pidPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isUnavailable(err) {
			return StopResult{}, ErrNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil && status != nil {
		pid = status.PID
	}

	wait := gracePeriod <= 0
	resp, err := client.Stop(wait)
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp != nil && resp.Stopped}
	if wait {
		return result, nil
	}

	if err := WaitForShutdown(socketPath, gracePeriod); err == nil {
		return result, nil
	}
	killedPID, killErr := ForceKillProcess(pidPath, socketPath, pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop pipecopy: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
