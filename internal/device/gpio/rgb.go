package gpio

import "github.com/stianeikeland/go-rpio/v4"

// RGB drives the presence indicator: ON while the controller is in
// RECORDING or STREAMING, OFF in IDLE. Each channel pin is driven high
// only if its configured color component is nonzero.
type RGB struct {
	r, g, b    rpio.Pin
	cr, cg, cb int
}

func NewRGB(rPin, gPin, bPin, cr, cg, cb int) *RGB {
	ind := &RGB{
		r: rpio.Pin(rPin), g: rpio.Pin(gPin), b: rpio.Pin(bPin),
		cr: cr, cg: cg, cb: cb,
	}
	for _, p := range []rpio.Pin{ind.r, ind.g, ind.b} {
		p.Output()
		p.Low()
	}
	return ind
}

func (i *RGB) On() {
	writeChannel(i.r, i.cr)
	writeChannel(i.g, i.cg)
	writeChannel(i.b, i.cb)
}

func (i *RGB) Off() {
	i.r.Low()
	i.g.Low()
	i.b.Low()
}

func writeChannel(p rpio.Pin, component int) {
	if component > 0 {
		p.High()
	} else {
		p.Low()
	}
}
