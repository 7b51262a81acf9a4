package core

// Decimal formatting for dictionary entries and debug lines. core is built
// for the MCU, so it avoids strconv and fmt.

// utoa formats n in decimal
func utoa(n uint32) string {
	var buf [10]byte
	return string(appendUint(buf[:0], n))
}

// itoa formats n in decimal with a leading '-' when negative
func itoa(n int) string {
	var buf [11]byte
	if n < 0 {
		return string(appendUint(append(buf[:0], '-'), uint32(-int64(n))))
	}
	return string(appendUint(buf[:0], uint32(n)))
}

func appendUint(dst []byte, n uint32) []byte {
	var digits [10]byte
	i := len(digits)
	for {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, digits[i:]...)
}

// constantString formats a dictionary constant. The registry holds axis
// counts, tick and clock rates, and board names.
func constantString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case uint32:
		return utoa(val)
	}
	return ""
}
