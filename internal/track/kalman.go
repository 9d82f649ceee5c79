package track

import "gonum.org/v1/gonum/mat"

// stateDim/measDim are the ByteTrack-style constant-velocity model's
// dimensions (spec §4.D): state is [cx, cy, a, h, vcx, vcy, va, vh] — centroid
// position, an aspect scalar, a height proxy, and their velocities; the
// measurement is the first four of those.
const (
	stateDim = 8
	measDim  = 4
)

// kalmanFilter is an 8-state constant-velocity Kalman filter over
// [cx, cy, a, h, vcx, vcy, va, vh]. Unlike the teacher's velocity_coherent
// tracker, which hand-unrolls a fixed 4x4 covariance into a [16]float32
// array, this filter uses gonum/mat so the Joseph-form update generalizes
// cleanly to 8 states without hand-written matrix algebra.
type kalmanFilter struct {
	x *mat.VecDense // 8x1 state
	p *mat.Dense    // 8x8 covariance

	processNoisePos  float64
	processNoiseVel  float64
	measurementNoise float64
}

// newKalmanFilter initializes a filter from an initial measurement
// [cx, cy, a, h], zero initial velocity, and the given noise parameters.
func newKalmanFilter(z [measDim]float64, processNoisePos, processNoiseVel, measurementNoise float64) *kalmanFilter {
	x := mat.NewVecDense(stateDim, nil)
	for i := 0; i < measDim; i++ {
		x.SetVec(i, z[i])
	}

	p := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		if i < measDim {
			p.Set(i, i, measurementNoise*4)
		} else {
			p.Set(i, i, processNoiseVel*10)
		}
	}

	return &kalmanFilter{
		x: x, p: p,
		processNoisePos:  processNoisePos,
		processNoiseVel:  processNoiseVel,
		measurementNoise: measurementNoise,
	}
}

// transition builds the state-transition matrix F for time step dt: each
// position component advances by its paired velocity component.
func transition(dt float64) *mat.Dense {
	f := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		f.Set(i, i, 1)
	}
	for i := 0; i < measDim; i++ {
		f.Set(i, i+measDim, dt)
	}
	return f
}

// measurementMatrix returns H, which extracts [cx, cy, a, h] from the state.
func measurementMatrix() *mat.Dense {
	h := mat.NewDense(measDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		h.Set(i, i, 1)
	}
	return h
}

// processNoiseMatrix builds Q diagonal and scaled by the current state (spec
// §4.D "process noise is diagonal, scaled by the current state"), the
// ByteTrack/SORT convention of weighting noise by the height term (here
// k.x[3], the state's "h" component) rather than using flat constants: each
// call re-reads k.x, so Q tracks the state as it evolves instead of being
// fixed at construction.
func (k *kalmanFilter) processNoiseMatrix() *mat.Dense {
	h := k.x.AtVec(3)
	posVar := k.processNoisePos * h * h
	velVar := k.processNoiseVel * h * h

	q := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		if i < measDim {
			q.Set(i, i, posVar)
		} else {
			q.Set(i, i, velVar)
		}
	}
	return q
}

// predict advances the state and covariance by dt seconds: x = Fx, P = FPF'+Q.
func (k *kalmanFilter) predict(dt float64) {
	f := transition(dt)

	var xNew mat.VecDense
	xNew.MulVec(f, k.x)
	k.x = &xNew

	var fp, fpft mat.Dense
	fp.Mul(f, k.p)
	fpft.Mul(&fp, f.T())

	q := k.processNoiseMatrix()
	var pNew mat.Dense
	pNew.Add(&fpft, q)
	k.p = &pNew
}

// predicted returns the current [cx, cy, a, h] prediction without mutating
// state, for building the association cost matrix before any track commits
// to an update this frame.
func (k *kalmanFilter) predicted() [measDim]float64 {
	var out [measDim]float64
	for i := range out {
		out[i] = k.x.AtVec(i)
	}
	return out
}

// innovationCovariance returns S = H P H' + R, used both for the Mahalanobis
// gate and inside update.
func (k *kalmanFilter) innovationCovariance() *mat.Dense {
	h := measurementMatrix()
	var hp, hpht mat.Dense
	hp.Mul(h, k.p)
	hpht.Mul(&hp, h.T())

	r := mat.NewDense(measDim, measDim, nil)
	for i := 0; i < measDim; i++ {
		r.Set(i, i, k.measurementNoise)
	}
	var s mat.Dense
	s.Add(&hpht, r)
	return &s
}

// mahalanobisSq returns the squared Mahalanobis distance between the
// filter's current prediction and measurement z, using S = HPH'+R as the
// innovation covariance (spec §4.D "Mahalanobis-gated cost matrix").
func (k *kalmanFilter) mahalanobisSq(z [measDim]float64) float64 {
	pred := k.predicted()
	y := mat.NewVecDense(measDim, nil)
	for i := 0; i < measDim; i++ {
		y.SetVec(i, z[i]-pred[i])
	}

	s := k.innovationCovariance()
	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		return singularRejectionDistance
	}

	var sy mat.VecDense
	sy.MulVec(&sInv, y)
	return mat.Dot(y, &sy)
}

// singularRejectionDistance is returned by mahalanobisSq when S is singular,
// so the gate always rejects rather than dividing by zero.
const singularRejectionDistance = 1e18

// update applies measurement z via the Joseph-form covariance update, which
// stays numerically positive semi-definite even when K is only
// approximately optimal (spec §4.D "Joseph-form covariance update").
func (k *kalmanFilter) update(z [measDim]float64) {
	h := measurementMatrix()
	s := k.innovationCovariance()

	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		return
	}

	var pht, kGain mat.Dense
	pht.Mul(k.p, h.T())
	kGain.Mul(&pht, &sInv)

	pred := k.predicted()
	y := mat.NewVecDense(measDim, nil)
	for i := 0; i < measDim; i++ {
		y.SetVec(i, z[i]-pred[i])
	}

	var ky mat.VecDense
	ky.MulVec(&kGain, y)
	var xNew mat.VecDense
	xNew.AddVec(k.x, &ky)
	k.x = &xNew

	ident := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		ident.Set(i, i, 1)
	}
	var kh, imkh mat.Dense
	kh.Mul(&kGain, h)
	imkh.Sub(ident, &kh)

	var imkhP, imkhPimkhT mat.Dense
	imkhP.Mul(&imkh, k.p)
	imkhPimkhT.Mul(&imkhP, imkh.T())

	r := mat.NewDense(measDim, measDim, nil)
	for i := 0; i < measDim; i++ {
		r.Set(i, i, k.measurementNoise)
	}
	var kr, krkt mat.Dense
	kr.Mul(&kGain, r)
	krkt.Mul(&kr, kGain.T())

	var pNew mat.Dense
	pNew.Add(&imkhPimkhT, &krkt)
	k.p = &pNew
}
