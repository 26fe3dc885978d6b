// Package format renders playback positions and file sizes for display.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DefaultDecimals is the precision Bytes uses unless told otherwise
const DefaultDecimals = 2

var sizeUnits = []string{"Bytes", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// Time formats a position in seconds as MM:SS.mmm.
// Minutes are not wrapped at an hour. Negative or non-finite input prints as zero.
func Time(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}

	// Rounding on the whole value keeps 59.9996 from printing ".1000".
	total := int64(math.Round(seconds * 1000))
	minutes := total / 60000
	secs := (total / 1000) % 60
	millis := total % 1000

	return fmt.Sprintf("%02d:%02d.%03d", minutes, secs, millis)
}

// Bytes formats a byte count using binary units, rounded to decimals places
// with trailing zeros dropped. Zero (and negative counts) print as "0 Bytes".
func Bytes(n int64, decimals int) string {
	if n <= 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}

	i := 0
	for i < len(sizeUnits)-1 && float64(n) >= math.Pow(1024, float64(i+1)) {
		i++
	}

	value := float64(n) / math.Pow(1024, float64(i))
	fixed := strconv.FormatFloat(value, 'f', decimals, 64)
	rounded, err := strconv.ParseFloat(fixed, 64)
	if err != nil {
		return fixed + " " + sizeUnits[i]
	}

	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}

// Timestamp renders a modification time as an ISO-8601 UTC string with
// millisecond precision
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
