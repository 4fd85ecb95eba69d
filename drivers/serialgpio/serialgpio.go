// drivers/serialgpio/serialgpio.go

// Package serialgpio implements the NativeGPIO boundary over a serial link
// to an external pin-expander board. The wire protocol is line oriented,
// one request in flight at a time:
//
//	-> CLAIM 5            <- OK          (or ERR busy)
//	-> MODE 5 input       <- OK
//	-> READ 5             <- OK 1
//	-> WRITE 5 0          <- OK
//	-> IRQ 5 1            <- OK
//	-> RELEASE 5          <- OK
//
// The board pushes unsolicited edge notifications at any time:
//
//	<- EVT 5 rising
package serialgpio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"boardhal-go/types"
)

// ErrTimeout is returned when the board does not answer a request in time.
var ErrTimeout = errors.New("serialgpio: response timeout")

type Driver struct {
	rwc io.ReadWriteCloser

	mu   sync.Mutex // serialises request/response pairs
	resp chan string

	edgeMu sync.RWMutex
	edgeFn func(pin int, edge types.Edge)

	timeout time.Duration
	done    chan struct{}
}

// Open connects to a board on a serial device.
func Open(device string, baud int) (*Driver, error) {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("serialgpio: open %s: %w", device, err)
	}
	return NewDriver(port), nil
}

// NewDriver wraps an already-open transport; tests pass an in-memory pipe.
func NewDriver(rwc io.ReadWriteCloser) *Driver {
	d := &Driver{
		rwc:     rwc,
		resp:    make(chan string, 1),
		timeout: 500 * time.Millisecond,
		done:    make(chan struct{}),
	}
	go d.readLoop()
	return d
}

// Close stops the reader and closes the transport.
func (d *Driver) Close() error {
	select {
	case <-d.done:
		return nil
	default:
	}
	close(d.done)
	return d.rwc.Close()
}

// readLoop splits inbound lines into async EVT notifications and command
// responses. Responses go to the single waiter; a response with no waiter
// is discarded.
func (d *Driver) readLoop() {
	sc := bufio.NewScanner(d.rwc)
	for sc.Scan() {
		select {
		case <-d.done:
			return
		default:
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "EVT "); ok {
			d.handleEvent(rest)
			continue
		}
		select {
		case d.resp <- line:
		default:
		}
	}
}

func (d *Driver) handleEvent(rest string) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return
	}
	pin, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	edge := types.ParseEdge(fields[1])
	if edge == types.EdgeNone {
		return
	}

	d.edgeMu.RLock()
	fn := d.edgeFn
	d.edgeMu.RUnlock()
	if fn != nil {
		fn(pin, edge)
	}
}

// cmd writes one request line and waits for the matching response.
func (d *Driver) cmd(format string, args ...any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Drop a stale response left over from a timed-out request.
	select {
	case <-d.resp:
	default:
	}

	if _, err := fmt.Fprintf(d.rwc, format+"\n", args...); err != nil {
		return "", fmt.Errorf("serialgpio: write: %w", err)
	}
	select {
	case line := <-d.resp:
		if rest, ok := strings.CutPrefix(line, "ERR"); ok {
			return "", fmt.Errorf("serialgpio: board error:%s", rest)
		}
		return strings.TrimSpace(strings.TrimPrefix(line, "OK")), nil
	case <-time.After(d.timeout):
		return "", ErrTimeout
	case <-d.done:
		return "", io.ErrClosedPipe
	}
}

// -----------------------------------------------------------------------------
// NativeGPIO
// -----------------------------------------------------------------------------

func (d *Driver) Claim(pin int) bool {
	_, err := d.cmd("CLAIM %d", pin)
	return err == nil
}

func (d *Driver) Release(pin int) {
	_, _ = d.cmd("RELEASE %d", pin)
}

func (d *Driver) SetDriveMode(pin int, mode types.DriveMode) error {
	_, err := d.cmd("MODE %d %s", pin, mode.String())
	return err
}

func (d *Driver) Read(pin int) types.Value {
	arg, err := d.cmd("READ %d", pin)
	if err != nil || arg != "1" {
		return types.Low
	}
	return types.High
}

func (d *Driver) Write(pin int, v types.Value) {
	_, _ = d.cmd("WRITE %d %d", pin, v.Int())
}

func (d *Driver) SetInterruptEnabled(pin int, enabled bool) error {
	flag := 0
	if enabled {
		flag = 1
	}
	_, err := d.cmd("IRQ %d %d", pin, flag)
	return err
}

// DriveModeSupported answers locally: the bridge protocol exposes the four
// software-emulatable modes, matching the base driver contract.
func (d *Driver) DriveModeSupported(pin int, mode types.DriveMode) bool {
	if pin < 0 {
		return false
	}
	switch mode {
	case types.Input, types.Output, types.InputPullUp, types.InputPullDown:
		return true
	default:
		return false
	}
}

func (d *Driver) SetEdgeFunc(fn func(pin int, edge types.Edge)) {
	d.edgeMu.Lock()
	d.edgeFn = fn
	d.edgeMu.Unlock()
}
