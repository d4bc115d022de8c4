package cell

import (
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const (
	// Pulse timing from the SIM7100 hardware spec.
	radioOnPulseMS  = 500  // 500ms to turn ON
	radioOffPulseMS = 3500 // 3500ms to turn OFF (above the 2.5s minimum)

	// Wait time after the power-off pulse before the rail is safe.
	radioOffWaitMS = 12000
)

// PowerController drives the radio power key via a GPIO line.
type PowerController struct {
	chip   string
	offset int
	line   *gpiocdev.Line
	logf   func(string, ...interface{})
}

func NewPowerController(chip string, offset int, logf func(string, ...interface{})) *PowerController {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &PowerController{chip: chip, offset: offset, logf: logf}
}

// Init requests the GPIO line as output, initially low.
func (pc *PowerController) Init() error {
	line, err := gpiocdev.RequestLine(pc.chip, pc.offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("tracker-radio-power"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to request GPIO line")
	}

	pc.line = line
	pc.logf("[power] initialized (chip=%s, line=%d)", pc.chip, pc.offset)
	return nil
}

// Close releases the GPIO line.
func (pc *PowerController) Close() error {
	if pc.line == nil {
		return nil
	}
	err := pc.line.Close()
	pc.line = nil
	return err
}

// PowerOn sends the power-on pulse to the radio.
func (pc *PowerController) PowerOn() error {
	return pc.pulse(radioOnPulseMS, 0)
}

// PowerOff sends the power-off pulse and waits for the radio to fully
// shut down.
func (pc *PowerController) PowerOff() error {
	return pc.pulse(radioOffPulseMS, radioOffWaitMS)
}

func (pc *PowerController) pulse(holdMS, settleMS int) error {
	if pc.line == nil {
		return errors.New("GPIO not initialized")
	}

	pc.logf("[power] pulsing power key for %dms...", holdMS)

	if err := pc.line.SetValue(1); err != nil {
		return errors.Wrap(err, "failed to set GPIO high")
	}
	time.Sleep(time.Duration(holdMS) * time.Millisecond)
	if err := pc.line.SetValue(0); err != nil {
		return errors.Wrap(err, "failed to set GPIO low")
	}

	if settleMS > 0 {
		pc.logf("[power] pulse complete, settling %dms...", settleMS)
		time.Sleep(time.Duration(settleMS) * time.Millisecond)
	}
	return nil
}
