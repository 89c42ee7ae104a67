package models

type StatsSummary struct {
	TotalRevenue  float64 `json:"revenue"`
	RevenueGrowth float64 `json:"revenueGrowth"`
	TicketsSold   int     `json:"ticketsSold"`
	NewPassengers int     `json:"newCustomers"`
	ActiveTrips   int     `json:"activeTrips"`
}

type RevenuePoint struct {
	Date     string  `json:"date"`
	FullDate string  `json:"fullDate"`
	Revenue  float64 `json:"revenue"`
}

type RouteRevenue struct {
	RouteID     int64   `bun:"route_id" json:"id"`
	StartPoint  string  `bun:"start_point" json:"startPoint"`
	EndPoint    string  `bun:"end_point" json:"endPoint"`
	TicketsSold int     `bun:"tickets_sold" json:"ticketsSold"`
	Revenue     float64 `bun:"revenue" json:"revenue"`
}

type BrandRevenue struct {
	Name    string  `bun:"name" json:"name"`
	Revenue float64 `bun:"revenue" json:"revenue"`
}

type StatusStat struct {
	Name      string `json:"name"`
	Value     int    `json:"value"`
	Color     string `json:"color"`
	RawStatus string `json:"rawStatus"`
}

type TrendPoint struct {
	Date      string `json:"date"`
	FullDate  string `json:"fullDate"`
	Success   int    `json:"success"`
	Cancelled int    `json:"cancelled"`
}

type TreemapNode struct {
	Name  string  `bun:"name" json:"name"`
	Value float64 `bun:"value" json:"value"`
}

type ChartSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Fill  string `json:"fill"`
}

type Occupancy struct {
	Rate      float64      `json:"occupancyRate"`
	Capacity  int          `json:"totalCapacity"`
	Sold      int          `json:"totalSold"`
	ChartData []ChartSlice `json:"chartData"`
}

type HourlyStat struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}
