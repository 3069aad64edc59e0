package types

// DashboardStats summarises business performance for the dashboard.
type DashboardStats struct {
	TotalRevenue   string `json:"total_revenue"`
	ActiveOrders   int    `json:"active_orders"`
	TotalCustomers int    `json:"total_customers"`
	GrowthRate     string `json:"growth_rate"`
	MonthlyGrowth  string `json:"monthly_growth"`
}

// Trend is the direction of a price movement.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// MarketPrice is the current quote for a commodity.
type MarketPrice struct {
	Crop      string  `json:"crop"`
	Price     int     `json:"price"`
	BasePrice int     `json:"base_price"`
	Unit      string  `json:"unit"`
	Change    float64 `json:"change"`
	Trend     Trend   `json:"trend"`
}

// Forecast is a single day of a weather forecast.
type Forecast struct {
	Day       string `json:"day"`
	High      int    `json:"high"`
	Low       int    `json:"low"`
	Condition string `json:"condition"`
}

// Weather is the current conditions plus a short forecast.
type Weather struct {
	Temperature int        `json:"temperature"`
	Condition   string     `json:"condition"`
	Humidity    int        `json:"humidity"`
	WindSpeed   int        `json:"wind_speed"`
	Forecast    []Forecast `json:"forecast"`
}

// Activity is an entry in the recent activity feed.
type Activity struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Status  string `json:"status"`
}
