package bus

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const SockName = "control.sock"
const PidName = "liameet.pid"
const ProtoVer = "0.1"

// Control commands. A request is one line: the command word, optionally
// followed by a space and an argument. The daemon replies with the full
// response and closes the connection.
const (
	CmdStart      = "start"      // arg: optional meeting title
	CmdEnd        = "end"        // arg: "no-summary" to skip the summary
	CmdPause      = "pause"
	CmdResume     = "resume"
	CmdInvoke     = "invoke"     // arg: optional prompt text
	CmdStatus     = "status"
	CmdTranscript = "transcript"
	CmdSummary    = "summary"    // arg: optional kind (general|actions|minutes)
	CmdStop       = "stop"       // shut the daemon down
)

// ~/.cache/liameet/control.sock
func SockPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "liameet", SockName), nil
}

// ~/.cache/liameet/liameet.pid
func PidPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "liameet", PidName), nil
}

func Listen() (net.Listener, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(sp), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(sp) // stale socket from last run
	return net.Listen("unix", sp)
}

func Dial() (net.Conn, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	return net.Dial("unix", sp)
}

// SendCommand sends one command line and returns the daemon's full reply.
func SendCommand(cmd, arg string) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", fmt.Errorf("daemon not reachable: %w", err)
	}
	defer c.Close()

	line := cmd
	if arg != "" {
		line += " " + arg
	}
	if _, err := c.Write([]byte(line + "\n")); err != nil {
		return "", err
	}
	if uc, ok := c.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	resp, err := io.ReadAll(c)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(resp), "\n"), nil
}

// ParseCommand splits a request line into command word and argument.
func ParseCommand(line string) (cmd, arg string) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

func CheckExistingDaemon() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}

	pidData, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return nil // invalid pid file, assume stale
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil // process not alive, stale pid file
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func CreatePidFile() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pidPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func RemovePidFile() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}
	return os.Remove(pidPath)
}
