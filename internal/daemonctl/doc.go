// Package daemonctl stops a running pipecopy from another process: a
// graceful stop over the control socket, escalating to SIGKILL through the
// pid file when the pipeline does not finish within a grace period.
package daemonctl
