package cell

import (
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rescoot/go-mmcli"
)

const (
	modemManagerService = "org.freedesktop.ModemManager1"
	modemManagerPath    = "/org/freedesktop/ModemManager1"
	modemInterface      = "org.freedesktop.ModemManager1.Modem"
	dbusObjectManager   = "org.freedesktop.DBus.ObjectManager"

	// The radio is power-cycled every cycle and takes several seconds to
	// enumerate on USB before ModemManager exposes it.
	enumeratePollInterval = 2 * time.Second
)

// MMTransport sends AT commands to the modem through ModemManager's
// Command D-Bus method. The modem object path is rediscovered after
// every power-up because the device re-enumerates.
type MMTransport struct {
	conn      *dbus.Conn
	modemPath dbus.ObjectPath
	debug     bool
	logf      func(string, ...interface{})
}

func DialModemManager(debug bool, logf func(string, ...interface{})) (*MMTransport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to system bus")
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &MMTransport{conn: conn, debug: debug, logf: logf}, nil
}

func (t *MMTransport) Close() error {
	return t.conn.Close()
}

// WaitReady blocks until ModemManager reports a modem or the timeout
// elapses, then resolves the modem's D-Bus object path.
func (t *MMTransport) WaitReady(timeout time.Duration) error {
	t.modemPath = ""

	deadline := time.Now().Add(timeout)
	for {
		if modems, err := mmcli.ListModems(); err == nil && len(modems) > 0 {
			break
		}
		if time.Now().After(deadline) {
			return errors.New("modem did not enumerate in time")
		}
		time.Sleep(enumeratePollInterval)
	}

	path, err := t.findModem()
	if err != nil {
		return err
	}
	t.modemPath = path
	return nil
}

func (t *MMTransport) findModem() (dbus.ObjectPath, error) {
	obj := t.conn.Object(modemManagerService, modemManagerPath)

	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call(dbusObjectManager+".GetManagedObjects", 0).Store(&managed); err != nil {
		return "", errors.Wrap(err, "failed to get managed objects")
	}

	for path, interfaces := range managed {
		if _, hasModem := interfaces[modemInterface]; hasModem {
			return path, nil
		}
	}
	return "", errors.New("no modem found")
}

// Send issues one AT command and returns the raw response.
func (t *MMTransport) Send(command string, timeout time.Duration) (string, error) {
	if t.modemPath == "" {
		return "", errors.New("modem path not resolved")
	}

	timeoutSec := uint32(timeout.Seconds())
	if timeoutSec == 0 {
		timeoutSec = 120
	}

	t.log(">> %s (timeout: %ds)", command, timeoutSec)

	obj := t.conn.Object(modemManagerService, t.modemPath)
	var response string
	err := obj.Call(modemInterface+".Command", 0, command, timeoutSec).Store(&response)
	if err != nil {
		return "", errors.Wrapf(err, "AT command failed: %s", command)
	}

	t.log("<< %s", strings.TrimSpace(response))
	return response, nil
}

func (t *MMTransport) log(format string, args ...interface{}) {
	if t.debug {
		t.logf("[AT] "+format, args...)
	}
}
