package value

import "strconv"

// trimInt formats a float that holds an exact integer value without a
// trailing ".0", matching clox-family VMs (e.g. `print 7;` -> "7", not
// "7.0").
func trimInt(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func ftoa(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}
