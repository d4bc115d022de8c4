// Package cell drives the cellular radio: GPIO power key, AT commands
// through ModemManager, GPRS bearer and single-shot HTTP uploads. The
// radio is fully powered between PowerUp and Shutdown and off otherwise.
package cell

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	cmdTimeout    = 5 * time.Second
	attachTimeout = 30 * time.Second
	uploadTimeout = 30 * time.Second

	// How long to wait for the modem to enumerate after the power-on
	// pulse before giving up on the cycle.
	readyTimeout = 60 * time.Second
)

// Power is the radio power key.
type Power interface {
	PowerOn() error
	PowerOff() error
}

// Transport carries AT commands to the modem.
type Transport interface {
	Send(command string, timeout time.Duration) (string, error)
	WaitReady(timeout time.Duration) error
}

// Driver exposes the radio operations the uplink reporter sequences.
type Driver struct {
	power Power
	tr    Transport
	logf  func(string, ...interface{})
}

func NewDriver(power Power, tr Transport, logf func(string, ...interface{})) *Driver {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Driver{power: power, tr: tr, logf: logf}
}

// PowerUp pulses the radio on and waits for it to enumerate. On any
// failure the radio is left powered off.
func (d *Driver) PowerUp() error {
	if err := d.power.PowerOn(); err != nil {
		return errors.Wrap(err, "power-on pulse failed")
	}

	if err := d.tr.WaitReady(readyTimeout); err != nil {
		// The pulse went out but the modem never showed up; force it
		// back off so the power state stays known.
		if offErr := d.power.PowerOff(); offErr != nil {
			d.logf("cell: power-off after failed enumeration: %v", offErr)
		}
		return errors.Wrap(err, "modem not ready")
	}
	return nil
}

// Shutdown powers the radio off. Failures are logged, not returned: the
// caller has nothing useful to do with them.
func (d *Driver) Shutdown() {
	if err := d.power.PowerOff(); err != nil {
		d.logf("cell: power-off failed: %v", err)
	}
}

// GetClock reads the modem RTC. The returned text keeps the modem's
// native "yy/MM/dd,hh:mm:ss±zz" layout.
func (d *Driver) GetClock() (string, error) {
	resp, err := d.tr.Send("AT+CCLK?", cmdTimeout)
	if err != nil {
		return "", err
	}
	value := extractPrefixedValue(resp, "+CCLK:")
	value = strings.Trim(value, `"`)
	if value == "" {
		return "", errors.New("empty CCLK response")
	}
	return value, nil
}

// SetClock writes the modem RTC.
func (d *Driver) SetClock(value string) error {
	return d.sendExpectOK(fmt.Sprintf("AT+CCLK=%q", value), cmdTimeout)
}

// OpenNetwork attaches to the packet network and brings up the GPRS
// context with the given credentials.
func (d *Driver) OpenNetwork(apn, user, pass string) error {
	if err := d.sendExpectOK("AT+CGATT=1", attachTimeout); err != nil {
		return errors.Wrap(err, "GPRS attach")
	}
	cstt := fmt.Sprintf("AT+CSTT=%q,%q,%q", apn, user, pass)
	if err := d.sendExpectOK(cstt, cmdTimeout); err != nil {
		return errors.Wrap(err, "set APN")
	}
	if err := d.sendExpectOK("AT+CIICR", attachTimeout); err != nil {
		return errors.Wrap(err, "bring up wireless connection")
	}
	// CIFSR replies with the local IP (no trailing OK). An empty reply
	// means the context is not actually up.
	resp, err := d.tr.Send("AT+CIFSR", cmdTimeout)
	if err != nil {
		return errors.Wrap(err, "query local IP")
	}
	if strings.TrimSpace(resp) == "" || strings.Contains(resp, "ERROR") {
		return errors.New("no local IP after CIICR")
	}
	return nil
}

// CloseNetwork tears the GPRS context down.
func (d *Driver) CloseNetwork() error {
	resp, err := d.tr.Send("AT+CIPSHUT", cmdTimeout)
	if err != nil {
		return errors.Wrap(err, "CIPSHUT")
	}
	if !strings.Contains(resp, "SHUT OK") && !strings.Contains(resp, "OK") {
		return errors.Errorf("unexpected CIPSHUT response: %s", strings.TrimSpace(resp))
	}
	return nil
}

// Upload performs one HTTP-PUT-shaped request over a raw TCP session.
// One attempt only; any failure is final for this cycle.
func (d *Driver) Upload(server, path string, port int, host, payload, token, contentType string) error {
	start := fmt.Sprintf("AT+CIPSTART=\"TCP\",%q,\"%d\"", server, port)
	resp, err := d.tr.Send(start, attachTimeout)
	if err != nil {
		return errors.Wrap(err, "TCP connect")
	}
	if !strings.Contains(resp, "CONNECT OK") && !strings.Contains(resp, "ALREADY CONNECT") {
		return errors.Errorf("TCP connect refused: %s", strings.TrimSpace(resp))
	}

	request := buildRequest(path, host, payload, token, contentType)

	if _, err := d.tr.Send(fmt.Sprintf("AT+CIPSEND=%d", len(request)), cmdTimeout); err != nil {
		d.closeSession()
		return errors.Wrap(err, "CIPSEND")
	}
	resp, err = d.tr.Send(request, uploadTimeout)
	if err != nil {
		d.closeSession()
		return errors.Wrap(err, "send request")
	}
	if !strings.Contains(resp, "SEND OK") {
		d.closeSession()
		return errors.Errorf("upload not acknowledged: %s", strings.TrimSpace(resp))
	}

	d.closeSession()
	return nil
}

func (d *Driver) closeSession() {
	if _, err := d.tr.Send("AT+CIPCLOSE", cmdTimeout); err != nil {
		d.logf("cell: CIPCLOSE failed: %v", err)
	}
}

// buildRequest frames the payload as a minimal HTTP PUT.
func buildRequest(path, host, payload, token, contentType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PUT %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	fmt.Fprintf(&b, "X-ApiKey: %s\r\n", token)
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(payload))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(payload)
	return b.String()
}

func (d *Driver) sendExpectOK(cmd string, timeout time.Duration) error {
	resp, err := d.tr.Send(cmd, timeout)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, "OK") {
		return errors.Errorf("unexpected response to %s: %s", cmd, strings.TrimSpace(resp))
	}
	return nil
}

func extractPrefixedValue(resp, prefix string) string {
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
