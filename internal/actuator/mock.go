package actuator

import "sync"

// Mock is an in-memory actuator for tests and simulation. It
// accumulates applied deltas into a pointer position, records every
// call, and can be scripted to fail.
type Mock struct {
	mu sync.Mutex

	x, y    float64
	applied [][2]float64

	// failNext makes the next N calls fail with ErrRejected.
	failNext int
	// FailFunc, when set, decides per call whether to fail.
	FailFunc func(dx, dy float64) error
}

// NewMock returns a mock actuator positioned at the origin.
func NewMock() *Mock { return &Mock{} }

// ApplyRelativeMotion implements Actuator.
func (m *Mock) ApplyRelativeMotion(dx, dy float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return ErrRejected
	}
	if m.FailFunc != nil {
		if err := m.FailFunc(dx, dy); err != nil {
			return err
		}
	}

	m.x += dx
	m.y += dy
	m.applied = append(m.applied, [2]float64{dx, dy})
	return nil
}

// Position implements PositionReporter.
func (m *Mock) Position() (x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.x, m.y
}

// MoveTo teleports the mock pointer, simulating external movement.
func (m *Mock) MoveTo(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x = x
	m.y = y
}

// FailNext scripts the next n calls to fail with ErrRejected.
func (m *Mock) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Applied returns a copy of all successfully applied deltas.
func (m *Mock) Applied() [][2]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]float64, len(m.applied))
	copy(out, m.applied)
	return out
}

// CallCount returns the number of successfully applied motions.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}
