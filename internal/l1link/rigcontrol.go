package l1link

import (
	"fmt"

	hamlib "github.com/xylo04/goHamlib"
)

// RigController drives a Hamlib-controlled bench radio as a stand-in
// for the opaque L1's RF frontend during testing.
type RigController struct {
	rig *hamlib.Rig
}

// OpenRig initializes and opens a Hamlib rig by model number over the
// given device path (e.g. "/dev/ttyUSB0").
func OpenRig(model int, device string, baud int) (*RigController, error) {
	rig := hamlib.NewRig(model)
	rig.SetConfig("rig_pathname", device)
	rig.SetConfig("serial_speed", fmt.Sprintf("%d", baud))
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("l1link: hamlib open: %w", err)
	}
	return &RigController{rig: rig}, nil
}

// SetFrequency tunes the rig's VFO to hz, used by a bench harness to
// park the test radio on the cell's ARFCN before exercising L1.
func (r *RigController) SetFrequency(vfo hamlib.VFO, hz float64) error {
	return r.rig.SetFreq(vfo, hz)
}

// SetPTT keys or unkeys the rig's push-to-talk line.
func (r *RigController) SetPTT(vfo hamlib.VFO, on bool) error {
	return r.rig.SetPTT(vfo, on)
}

// Close releases the rig connection.
func (r *RigController) Close() error {
	return r.rig.Close()
}
