package demo

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Customer struct {
	ID            int64
	Name          string
	Industry      string
	Country       string
	AnnualRevenue float64
	CreatedAt     time.Time
}

type Deal struct {
	ID         int64
	CustomerID int64
	Title      string
	Stage      string
	Amount     float64
	// ClosedAt is nil while the deal is open.
	ClosedAt *time.Time
}

type Activity struct {
	ID         int64
	CustomerID int64
	Kind       string
	OccurredAt time.Time
}

// Generator produces the same rows for the same seed and start time.
type Generator struct {
	rnd   *rand.Rand
	start time.Time

	customers  int64
	deals      int64
	activities int64
}

func NewGenerator(seed int64, start time.Time) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: start.UTC(),
	}
}

var (
	namePrefixes = []string{"Acme", "Globex", "Initech", "Umbrella", "Stark", "Wayne", "Hooli", "Vandelay", "Soylent", "Tyrell", "Wonka", "Cyberdyne"}
	nameSuffixes = []string{"Corp", "Industries", "Labs", "Group", "Systems", "Holdings"}
	industries   = []string{"Software", "Manufacturing", "Retail", "Finance", "Healthcare", "Logistics"}
	countries    = []string{"US", "DE", "GB", "IN", "JP", "BR"}
	dealTitles   = []string{"Annual license", "Expansion", "Pilot", "Support renewal", "Onboarding"}
	activityKind = []string{"call", "email", "meeting", "demo"}
)

func (g *Generator) NextCustomer() Customer {
	g.customers++
	return Customer{
		ID:            g.customers,
		Name:          fmt.Sprintf("%s %s %d", pickOne(g.rnd, namePrefixes), pickOne(g.rnd, nameSuffixes), g.customers),
		Industry:      pickOne(g.rnd, industries),
		Country:       pickOne(g.rnd, countries),
		AnnualRevenue: round2(50_000 + g.rnd.Float64()*4_950_000),
		CreatedAt:     g.start.AddDate(0, 0, -g.rnd.Intn(720)),
	}
}

func (g *Generator) NextDeal(customer Customer) Deal {
	g.deals++
	stage := g.pickStage()
	deal := Deal{
		ID:         g.deals,
		CustomerID: customer.ID,
		Title:      pickOne(g.rnd, dealTitles),
		Stage:      stage,
		Amount:     g.pickAmount(stage),
	}
	if stage == "won" || stage == "lost" {
		closed := customer.CreatedAt.AddDate(0, 0, 1+g.rnd.Intn(365))
		deal.ClosedAt = &closed
	}
	return deal
}

func (g *Generator) NextActivity(customer Customer) Activity {
	g.activities++
	return Activity{
		ID:         g.activities,
		CustomerID: customer.ID,
		Kind:       pickOne(g.rnd, activityKind),
		OccurredAt: customer.CreatedAt.Add(time.Duration(g.rnd.Intn(400*24)) * time.Hour),
	}
}

func (g *Generator) pickStage() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 30:
		return "prospect"
	case p < 55:
		return "negotiation"
	case p < 85:
		return "won"
	default:
		return "lost"
	}
}

func (g *Generator) pickAmount(stage string) float64 {
	switch stage {
	case "prospect":
		return round2(1_000 + g.rnd.Float64()*9_000)
	case "won":
		return round2(5_000 + g.rnd.Float64()*95_000)
	default:
		return round2(2_000 + g.rnd.Float64()*48_000)
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
