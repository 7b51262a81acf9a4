package core

// PID is a discrete PID controller evaluated once per tick. Its output is a
// normalized actuator command in [-1, 1].
type PID struct {
	Gains PIDGains

	integral  float32
	prevError float32
}

// Update advances the controller by dt seconds and returns the clamped output.
//
// While the output is saturated in the direction of the error the integral
// is held. All-zero gains always return exactly 0 and keep no memory.
func (p *PID) Update(err, dt float32) float32 {
	g := p.Gains
	if g.Kp == 0 && g.Ki == 0 && g.Kd == 0 {
		p.integral = 0
		p.prevError = 0
		return 0
	}

	integral := p.integral
	var derivative float32
	if dt > 0 {
		integral += err * dt
		derivative = (err - p.prevError) / dt
	}
	raw := g.Kp*err + g.Ki*integral + g.Kd*derivative
	p.prevError = err

	windup := (raw > 1 && err > 0) || (raw < -1 && err < 0)
	if !windup {
		p.integral = integral
	}
	return Constrain(raw, -1, 1)
}

// Reset clears the integral and derivative memory
func (p *PID) Reset() {
	p.integral = 0
	p.prevError = 0
}

// Integral returns the accumulated error area
func (p *PID) Integral() float32 {
	return p.integral
}

// PrevError returns the error seen on the last update
func (p *PID) PrevError() float32 {
	return p.prevError
}
