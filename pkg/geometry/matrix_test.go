package geometry

import "testing"

func TestMat4Identity(t *testing.T) {
	p := NewVector3(1.5, -2, 3)
	if got := Identity().TransformPoint(p); got != p {
		t.Errorf("Identity transform failed: expected %v, got %v", p, got)
	}
	if !Identity().IsIdentity() {
		t.Error("expected Identity to report IsIdentity")
	}
}

func TestMat4Affine(t *testing.T) {
	// Scale X by 2, translate by (10, 20, 30)
	m := Affine([12]float64{2, 0, 0, 0, 1, 0, 0, 0, 1, 10, 20, 30})

	got := m.TransformPoint(NewVector3(1, 1, 1))
	expected := NewVector3(12, 21, 31)

	if got != expected {
		t.Errorf("Affine transform failed: expected %v, got %v", expected, got)
	}
	if m.At(3, 0) != 10 {
		t.Errorf("At(3, 0) failed: expected 10, got %v", m.At(3, 0))
	}
}

func TestMat4MulOrder(t *testing.T) {
	scale := Affine([12]float64{2, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0})
	move := Translation(1, 0, 0)

	// scale first, then move
	got := scale.Mul(move).TransformPoint(NewVector3(1, 0, 0))
	if want := NewVector3(3, 0, 0); got != want {
		t.Errorf("scale then move failed: expected %v, got %v", want, got)
	}

	// move first, then scale
	got = move.Mul(scale).TransformPoint(NewVector3(1, 0, 0))
	if want := NewVector3(4, 0, 0); got != want {
		t.Errorf("move then scale failed: expected %v, got %v", want, got)
	}
}
