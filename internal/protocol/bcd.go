package protocol

import (
	"fmt"
	"time"
)

func toBCD(v int) byte {
	return byte((v/10)<<4 | v%10)
}

func fromBCD(b byte) (int, error) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("invalid BCD byte 0x%02x", b)
	}
	return int(hi)*10 + int(lo), nil
}

// putBCDTime writes YY MM DD hh mm ss into dst[0:6].
func putBCDTime(dst []byte, t time.Time) {
	dst[0] = toBCD(t.Year() % 100)
	dst[1] = toBCD(int(t.Month()))
	dst[2] = toBCD(t.Day())
	dst[3] = toBCD(t.Hour())
	dst[4] = toBCD(t.Minute())
	dst[5] = toBCD(t.Second())
}

// decodeBCDTime reads YY MM DD [hh mm ss] from src. Three bytes decode to a date only.
func decodeBCDTime(src []byte, loc *time.Location) (time.Time, error) {
	if len(src) != 3 && len(src) != 6 {
		return time.Time{}, fmt.Errorf("BCD time must be 3 or 6 bytes, got %d", len(src))
	}

	parts := make([]int, 6)
	for i, b := range src {
		v, err := fromBCD(b)
		if err != nil {
			return time.Time{}, err
		}
		parts[i] = v
	}

	if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 {
		return time.Time{}, fmt.Errorf("invalid date %02d-%02d", parts[1], parts[2])
	}
	if parts[3] > 23 || parts[4] > 59 || parts[5] > 59 {
		return time.Time{}, fmt.Errorf("invalid time %02d:%02d:%02d", parts[3], parts[4], parts[5])
	}

	return time.Date(2000+parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, loc), nil
}
