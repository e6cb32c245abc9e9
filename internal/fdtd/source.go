package fdtd

import (
	"math"
	"math/cmplx"
)

// Waveform is a gaussian-modulated carrier g(t) = env(t) * Re(A*exp(-i*w*t)).
type Waveform struct {
	// Freq is the carrier frequency (1/wavelength with c = 1).
	Freq float64
	// Width is the gaussian envelope width.
	Width float64
	// Delay is the envelope peak time.
	Delay float64
}

// NewWaveform builds a pulse whose envelope spans roughly the given number
// of carrier periods, delayed so the signal ramps up smoothly from zero.
func NewWaveform(freq, periods float64) Waveform {
	period := 1 / freq
	width := periods * period / 3
	return Waveform{Freq: freq, Width: width, Delay: 4 * width}
}

// Envelope evaluates the gaussian envelope at time t.
func (w Waveform) Envelope(t float64) float64 {
	u := (t - w.Delay) / w.Width
	return math.Exp(-0.5 * u * u)
}

// Duration is the time after which the envelope is negligible.
func (w Waveform) Duration() float64 {
	return w.Delay + 4*w.Width
}

// LineSource injects a transverse profile along grid column I, rows
// [J0, J0+len(Profile)). The complex Amplitude carries phase, which the
// adjoint run uses to drive monitors with conjugated mode coefficients.
type LineSource struct {
	I, J0     int
	Profile   []float64
	Waveform  Waveform
	Amplitude complex128

	spectrum complex128
}

// NewLineSource builds a unit-amplitude source.
func NewLineSource(i, j0 int, profile []float64, w Waveform) *LineSource {
	return &LineSource{I: i, J0: j0, Profile: profile, Waveform: w, Amplitude: 1}
}

func (s *LineSource) inject(ez []float64, nx int, t, dt float64) {
	phase := complex(0, 2*math.Pi*s.Waveform.Freq*t)
	carrier := cmplx.Exp(-phase)
	env := s.Waveform.Envelope(t)

	// Running DFT of the unit-amplitude signal, sampled exactly like the
	// field monitors. Dividing measured DFTs by it deconvolves the pulse.
	u := env * real(carrier)
	s.spectrum += complex(u*dt, 0) * cmplx.Exp(phase)

	g := env * real(s.Amplitude*carrier) * dt
	if g == 0 {
		return
	}
	for k, p := range s.Profile {
		ez[(s.J0+k)*nx+s.I] += g * p
	}
}

// Spectrum is the accumulated DFT of the unit-amplitude source signal at the
// carrier frequency. Monitor and region DFTs divided by it become the
// response to a continuous unit source, which removes the pulse's complex
// spectral factor from mode coefficients and adjoint field products.
func (s *LineSource) Spectrum() complex128 {
	return s.spectrum
}
