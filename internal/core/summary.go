package core

import "time"

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// MonthPoint is one month of a yearly series.
type MonthPoint struct {
	Month time.Month `json:"month"`
	Label string     `json:"label"` // "Jan".."Dec"
	Total Money      `json:"total"`
}

// DashboardStats is the summary shown on the dashboard for a date range.
type DashboardStats struct {
	Total      Money           `json:"total"`
	ThisMonth  Money           `json:"thisMonth"`
	DailyAvg   Money           `json:"dailyAverage"` // ThisMonth spread over the days of the month
	Count      int             `json:"count"`
	Year       int             `json:"year"`
	ByCategory []CategoryTotal `json:"byCategory"`
	Monthly    []MonthPoint    `json:"monthly"`
}
