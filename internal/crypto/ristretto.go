package crypto

import (
	"crypto/rand"
	"fmt"

	gr "github.com/bwesterb/go-ristretto"
	r255 "github.com/gtank/ristretto255"
	"github.com/zeebo/blake3"
)

/*
Group arithmetic for the base OT over the ristretto group, with two
interchangeable backends.
*/

const (
	RistrettoTypeGR = iota
	RistrettoTypeR255

	// PointLen is the byte length of an encoded ristretto point.
	PointLen = 32
)

var (
	ErrInvalidPoint  = fmt.Errorf("invalid ristretto point encoding")
	ErrUnknownGroup  = fmt.Errorf("cannot create a ristretto group of unknown type")
	ErrBackendsMixed = fmt.Errorf("ristretto points from different backends")
)

// Scalar is an opaque group scalar.
type Scalar interface{}

// Point is a ristretto group element.
type Point interface {
	// Add returns the sum of the receiver and q.
	Add(q Point) Point
	// Sub returns the difference of the receiver and q.
	Sub(q Point) Point
	// ScalarMult returns the receiver multiplied by x.
	ScalarMult(x Scalar) Point
	// Marshal returns the canonical 32 byte encoding.
	Marshal() []byte
	// Unmarshal decodes p, rejecting invalid encodings.
	Unmarshal(p []byte) error
	// DeriveKey hashes the point encoding into a 32 byte key.
	DeriveKey() []byte
}

// Group generates scalars and points for one backend.
type Group interface {
	// NewScalar samples a uniform secret scalar.
	NewScalar() (Scalar, error)
	// ScalarBaseMult returns the generator multiplied by x.
	ScalarBaseMult(x Scalar) Point
	// NewPoint returns the zero value point ready for Unmarshal.
	NewPoint() Point
}

// NewGroup creates a ristretto group of type t.
func NewGroup(t int) (Group, error) {
	switch t {
	case RistrettoTypeGR:
		return grGroup{}, nil
	case RistrettoTypeR255:
		return r255Group{}, nil
	default:
		return nil, ErrUnknownGroup
	}
}

// "github.com/bwesterb/go-ristretto"
type grGroup struct{}

type grPoint struct {
	p gr.Point
}

func (grGroup) NewScalar() (Scalar, error) {
	var s gr.Scalar
	s.Rand()
	return &s, nil
}

func (grGroup) ScalarBaseMult(x Scalar) Point {
	var out grPoint
	out.p.ScalarMultBase(x.(*gr.Scalar))
	return &out
}

func (grGroup) NewPoint() Point {
	return &grPoint{}
}

func (a *grPoint) Add(q Point) Point {
	b, ok := q.(*grPoint)
	if !ok {
		panic(ErrBackendsMixed)
	}
	var out grPoint
	out.p.Add(&a.p, &b.p)
	return &out
}

func (a *grPoint) Sub(q Point) Point {
	b, ok := q.(*grPoint)
	if !ok {
		panic(ErrBackendsMixed)
	}
	var out grPoint
	out.p.Sub(&a.p, &b.p)
	return &out
}

func (a *grPoint) ScalarMult(x Scalar) Point {
	var out grPoint
	out.p.ScalarMult(&a.p, x.(*gr.Scalar))
	return &out
}

func (a *grPoint) Marshal() []byte {
	return a.p.Bytes()
}

func (a *grPoint) Unmarshal(p []byte) error {
	if len(p) != PointLen {
		return ErrInvalidPoint
	}
	var buf [PointLen]byte
	copy(buf[:], p)
	if !a.p.SetBytes(&buf) {
		return ErrInvalidPoint
	}
	return nil
}

func (a *grPoint) DeriveKey() []byte {
	key := blake3.Sum256(a.Marshal())
	return key[:]
}

// "github.com/gtank/ristretto255"
type r255Group struct{}

type r255Point struct {
	p *r255.Element
}

func (r255Group) NewScalar() (Scalar, error) {
	uniform := make([]byte, 64)
	if _, err := rand.Read(uniform); err != nil {
		return nil, err
	}
	return r255.NewScalar().FromUniformBytes(uniform), nil
}

func (r255Group) ScalarBaseMult(x Scalar) Point {
	return &r255Point{p: r255.NewElement().ScalarBaseMult(x.(*r255.Scalar))}
}

func (r255Group) NewPoint() Point {
	return &r255Point{p: r255.NewElement()}
}

func (a *r255Point) Add(q Point) Point {
	b, ok := q.(*r255Point)
	if !ok {
		panic(ErrBackendsMixed)
	}
	return &r255Point{p: r255.NewElement().Add(a.p, b.p)}
}

func (a *r255Point) Sub(q Point) Point {
	b, ok := q.(*r255Point)
	if !ok {
		panic(ErrBackendsMixed)
	}
	return &r255Point{p: r255.NewElement().Subtract(a.p, b.p)}
}

func (a *r255Point) ScalarMult(x Scalar) Point {
	return &r255Point{p: r255.NewElement().ScalarMult(x.(*r255.Scalar), a.p)}
}

func (a *r255Point) Marshal() []byte {
	return a.p.Encode(nil)
}

func (a *r255Point) Unmarshal(p []byte) error {
	if len(p) != PointLen {
		return ErrInvalidPoint
	}
	if err := a.p.Decode(p); err != nil {
		return ErrInvalidPoint
	}
	return nil
}

func (a *r255Point) DeriveKey() []byte {
	key := blake3.Sum256(a.Marshal())
	return key[:]
}
