package xl

import "time"

// unixEpochSerial is the 1900 date-system serial of 1970-01-01.
const unixEpochSerial = 25569

const secondsPerDay = 86400

// ExcelSerial converts t to a 1900 date-system serial, keeping the time of
// day as a fraction. The wall clock of t is used, so 12:00 in any zone is
// .5 of its day.
func ExcelSerial(t time.Time) float64 {
	_, offset := t.Zone()
	secs := float64(t.Unix()+int64(offset)) + float64(t.Nanosecond())*1e-9
	return secs/secondsPerDay + unixEpochSerial
}

// ExcelDateSerial converts the calendar date of t to a whole serial.
func ExcelDateSerial(t time.Time) float64 {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
	return float64(days) + unixEpochSerial
}
