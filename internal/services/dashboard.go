package services

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/agribusiness-pro/apiserver/types"
)

const (
	priceUnit      = "per quintal"
	maxFluctuation = 0.05
)

type basePrice struct {
	crop  string
	price int
}

var basePrices = []basePrice{
	{crop: "Wheat", price: 2150},
	{crop: "Rice (Basmati)", price: 4800},
	{crop: "Sugarcane", price: 320},
	{crop: "Cotton", price: 5600},
	{crop: "Corn", price: 1850},
	{crop: "Soybeans", price: 4200},
}

// DashboardService serves the read-only figures shown on the dashboard.
type DashboardService struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewDashboardService returns a service drawing price movements from rng.
// A nil rng uses a randomly seeded source.
func NewDashboardService(rng *rand.Rand) *DashboardService {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &DashboardService{rand: rng}
}

func (s *DashboardService) Stats() types.DashboardStats {
	return types.DashboardStats{
		TotalRevenue:   "₹2,45,000",
		ActiveOrders:   156,
		TotalCustomers: 2847,
		GrowthRate:     "23.1%",
		MonthlyGrowth:  "+12.5%",
	}
}

// MarketPrices quotes every tracked crop within 5% of its base price.
func (s *DashboardService) MarketPrices() []types.MarketPrice {
	s.mu.Lock()
	defer s.mu.Unlock()

	prices := make([]types.MarketPrice, 0, len(basePrices))
	for _, base := range basePrices {
		fluctuation := (s.rand.Float64()*2 - 1) * maxFluctuation
		price := int(math.Round(float64(base.price) * (1 + fluctuation)))
		change := math.Round(fluctuation*10000) / 100

		trend := types.TrendDown
		if fluctuation > 0 {
			trend = types.TrendUp
		}
		prices = append(prices, types.MarketPrice{
			Crop:      base.crop,
			Price:     price,
			BasePrice: base.price,
			Unit:      priceUnit,
			Change:    change,
			Trend:     trend,
		})
	}
	return prices
}

func (s *DashboardService) Weather() types.Weather {
	return types.Weather{
		Temperature: 28,
		Condition:   "Partly Cloudy",
		Humidity:    65,
		WindSpeed:   12,
		Forecast: []types.Forecast{
			{Day: "Tomorrow", High: 30, Low: 22, Condition: "Sunny"},
			{Day: "Day 2", High: 32, Low: 24, Condition: "Cloudy"},
			{Day: "Day 3", High: 29, Low: 20, Condition: "Rainy"},
		},
	}
}

func (s *DashboardService) Activities() []types.Activity {
	return []types.Activity{
		{ID: 1, Type: "order", Message: "New order received for Organic Wheat", Time: "2 hours ago", Status: "success"},
		{ID: 2, Type: "payment", Message: "Payment of ₹15,000 processed", Time: "4 hours ago", Status: "success"},
		{ID: 3, Type: "alert", Message: "Weather alert: Heavy rain expected", Time: "6 hours ago", Status: "warning"},
	}
}
