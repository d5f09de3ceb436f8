package marketclock

import "time"

// DefaultHolidays is the NSE trading holiday list for 2025.
// It is refreshed out-of-band each year; a stale list only costs shorter TTLs.
func DefaultHolidays() []Holiday {
	return []Holiday{
		{Date: day(2025, time.January, 26), Name: "Republic Day"},
		{Date: day(2025, time.March, 14), Name: "Mahashivratri"},
		{Date: day(2025, time.March, 31), Name: "Holi"},
		{Date: day(2025, time.April, 10), Name: "Mahavir Jayanti"},
		{Date: day(2025, time.April, 14), Name: "Dr. Ambedkar Jayanti"},
		{Date: day(2025, time.April, 18), Name: "Good Friday"},
		{Date: day(2025, time.May, 1), Name: "Maharashtra Day"},
		{Date: day(2025, time.August, 15), Name: "Independence Day"},
		{Date: day(2025, time.August, 27), Name: "Ganesh Chaturthi"},
		{Date: day(2025, time.October, 2), Name: "Gandhi Jayanti"},
		{Date: day(2025, time.October, 21), Name: "Dussehra"},
		{Date: day(2025, time.November, 5), Name: "Diwali"},
		{Date: day(2025, time.November, 6), Name: "Diwali Balipratipada"},
		{Date: day(2025, time.November, 24), Name: "Guru Nanak Jayanti"},
		{Date: day(2025, time.December, 25), Name: "Christmas"},
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
