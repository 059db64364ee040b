package tensor

import "math"

// fp16Table maps every FP16 bit-pattern to float32.
var fp16Table = func() [1 << 16]float32 {
	var tbl [1 << 16]float32
	for i := range tbl {
		tbl[i] = fp16ToF32(uint16(i))
	}
	return tbl
}()

// EncodeF16 converts f to IEEE 754 binary16 bits, rounding to nearest even.
func EncodeF16(f float32) uint16 {
	return float32ToFP16Bits(f)
}

// DecodeF16 widens binary16 bits to float32.
func DecodeF16(h uint16) float32 {
	return fp16Table[h]
}

func float32ToFP16Bits(f float32) uint16 {
	u := math.Float32bits(f)
	sign := (u >> 31) & 0x1
	exp := int((u >> 23) & 0xFF)
	frac := u & 0x7FFFFF

	if exp == 0xFF {
		// Inf/NaN
		if frac != 0 {
			return uint16((sign << 15) | 0x7C00 | (frac >> 13) | 1)
		}
		return uint16((sign << 15) | 0x7C00)
	}

	e := exp - 127
	if e > 15 {
		return uint16((sign << 15) | 0x7C00)
	}
	if e < -14 {
		if e < -25 {
			return uint16(sign << 15)
		}
		// subnormal: the 24-bit significand is worth m*2^(e-23) and the
		// result counts units of 2^-24, so one shift by -1-e does the
		// rounding. A carry into bit 10 yields the smallest normal.
		m := frac | 0x800000
		s := uint32(-1 - e)
		rnd := uint32(1)<<(s-1) - 1 + ((m >> s) & 1)
		return uint16((sign << 15) | ((m + rnd) >> s))
	}

	exp16 := uint32(e + 15)
	rnd := uint32(0xFFF + ((frac >> 13) & 1))
	frac = frac + rnd
	if (frac & 0x800000) != 0 {
		// carry into exponent
		exp16++
		frac = 0
		if exp16 >= 0x1F {
			return uint16((sign << 15) | 0x7C00)
		}
	}
	return uint16((sign << 15) | (exp16 << 10) | (frac >> 13))
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
