package main

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/diskvideo"
)

const targaHeaderLength = 18

// targaHeader returns header of uncompressed 24-bit targa image.
func targaHeader(width, height int64) []byte {
	header := make([]byte, targaHeaderLength)
	header[2] = 2
	binary.LittleEndian.PutUint16(header[12:], uint16(width))
	binary.LittleEndian.PutUint16(header[14:], uint16(height))
	header[16] = 24
	return header
}

// pattern draws the image which depends on pixel coordinates only, so it may be verified after reading.
type pattern struct {
	session *diskvideo.Session
}

func (p pattern) color(x, y int64) byte {
	return byte((x ^ y) % int64(max(p.session.Colors(), 1)))
}

func (p pattern) draw(ctx context.Context) error {
	s := p.session
	for y := int64(0); y < s.Height(); y++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		for x := int64(0); x < s.Width(); x++ {
			var err error
			switch s.Mode() {
			case diskvideo.ModeTarga:
				err = s.TargaWritePixel(x, y, byte(x), byte(y), byte(x^y))
			case diskvideo.ModePotential:
				err = s.WritePotential(x, y, uint16(x*y))
			default:
				err = s.WritePixel(x, y, p.color(x, y))
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (p pattern) verify(ctx context.Context) (int, error) {
	s := p.session
	var mismatches int
	for y := int64(0); y < s.Height(); y++ {
		if err := ctx.Err(); err != nil {
			return 0, errors.WithStack(err)
		}
		for x := int64(0); x < s.Width(); x++ {
			var ok bool
			switch s.Mode() {
			case diskvideo.ModeTarga:
				red, green, blue, err := s.TargaReadPixel(x, y)
				if err != nil {
					return 0, err
				}
				ok = red == byte(x) && green == byte(y) && blue == byte(x^y)
			case diskvideo.ModePotential:
				v, err := s.ReadPotential(x, y)
				if err != nil {
					return 0, err
				}
				ok = v == uint16(x*y)
			default:
				v, err := s.ReadPixel(x, y)
				if err != nil {
					return 0, err
				}
				ok = v == p.color(x, y)
			}
			if !ok {
				mismatches++
			}
		}
	}
	return mismatches, nil
}
