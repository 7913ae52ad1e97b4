package economy

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"corpempire/internal/finance"
)

//go:embed market_events.yaml
var defaultCatalogYAML []byte

// RandomSource drives market event generation. Implementations must be safe
// for concurrent use.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

// NewRandomSource returns a seeded source. A zero seed uses the clock.
func NewRandomSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{rand: mathrand.New(mathrand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// EventTemplate is one catalog entry. Impact and Duration are inclusive [min, max] ranges.
type EventTemplate struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Industries  []string  `yaml:"industries"`
	Impact      []float64 `yaml:"impact"`
	Duration    []int     `yaml:"duration"`
	Severity    Severity  `yaml:"severity"`
}

type EventCatalog struct {
	Events []EventTemplate `yaml:"events"`
}

// LoadEventCatalog parses and validates a YAML catalog.
func LoadEventCatalog(data []byte) (EventCatalog, error) {
	var c EventCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return EventCatalog{}, fmt.Errorf("parse event catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return EventCatalog{}, err
	}
	return c, nil
}

// DefaultEventCatalog is the catalog shipped with the binary.
func DefaultEventCatalog() EventCatalog {
	c, err := LoadEventCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c EventCatalog) Validate() error {
	if len(c.Events) == 0 {
		return fmt.Errorf("%w: event catalog is empty", ErrConfiguration)
	}
	for i, t := range c.Events {
		switch {
		case t.Name == "":
			return fmt.Errorf("%w: event %d has no name", ErrConfiguration, i)
		case len(t.Impact) != 2 || len(t.Duration) != 2:
			return fmt.Errorf("%w: event %q ranges must have two values", ErrConfiguration, t.Name)
		case t.Impact[0] <= 0 || t.Impact[0] > t.Impact[1]:
			return fmt.Errorf("%w: event %q has invalid impact range", ErrConfiguration, t.Name)
		case t.Duration[0] < 1 || t.Duration[0] > t.Duration[1]:
			return fmt.Errorf("%w: event %q has invalid duration range", ErrConfiguration, t.Name)
		}
		switch t.Severity {
		case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		default:
			return fmt.Errorf("%w: event %q has unknown severity %q", ErrConfiguration, t.Name, t.Severity)
		}
	}
	return nil
}

// MarketEventGenerator expires finished events and may start a new one each cycle.
type MarketEventGenerator struct {
	store       Store
	catalog     EventCatalog
	rand        RandomSource
	probability float64
	log         *slog.Logger
}

func NewMarketEventGenerator(store Store, catalog EventCatalog, random RandomSource, probability float64, logger *slog.Logger) *MarketEventGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketEventGenerator{store: store, catalog: catalog, rand: random, probability: probability, log: logger}
}

func (g *MarketEventGenerator) Name() string { return "market_event" }

// Generate draws one event from the catalog starting at start.
func (g *MarketEventGenerator) Generate(start time.Time) MarketEvent {
	t := g.catalog.Events[g.rand.Intn(len(g.catalog.Events))]
	impact := t.Impact[0] + g.rand.Float64()*(t.Impact[1]-t.Impact[0])
	duration := t.Duration[0] + g.rand.Intn(t.Duration[1]-t.Duration[0]+1)
	industries := append([]string(nil), t.Industries...)
	return MarketEvent{
		ID:                 uuid.NewString(),
		Name:               t.Name,
		Description:        t.Description,
		AffectedIndustries: industries,
		ImpactMultiplier:   finance.RoundCurrency(impact),
		DurationMonths:     duration,
		Severity:           t.Severity,
		StartDate:          start,
		EndDate:            start.AddDate(0, duration, 0),
		Status:             MarketEventActive,
		Period:             PeriodFor(start),
	}
}

func (g *MarketEventGenerator) Run(ctx context.Context, asOf time.Time, box *outbox) PassResult {
	res := PassResult{Name: g.Name()}

	expired, err := g.store.ExpireMarketEvents(ctx, asOf)
	if err != nil {
		g.log.Error("expire market events failed", "err", err)
		res.fail(&EntityError{Kind: g.Name(), ID: "expire", Err: err})
	} else {
		res.Succeeded += len(expired)
		for _, e := range expired {
			g.log.Info("market event ended", "event_id", e.ID, "name", e.Name)
		}
	}

	if g.probability <= 0 {
		return res
	}
	period := PeriodFor(asOf)
	exists, err := g.store.HasMarketEventForPeriod(ctx, period)
	if err != nil {
		g.log.Error("check market event for period failed", "period", period.String(), "err", err)
		res.fail(&EntityError{Kind: g.Name(), ID: period.String(), Err: err})
		return res
	}
	if exists {
		res.Skipped++
		return res
	}
	if g.rand.Float64() >= g.probability {
		return res
	}
	event := g.Generate(asOf)
	err = safeCall(ctx, event, func(ctx context.Context, e MarketEvent) error {
		return g.store.CreateMarketEvent(ctx, e)
	})
	if err != nil {
		g.log.Error("create market event failed", "name", event.Name, "err", err)
		res.fail(&EntityError{Kind: g.Name(), ID: event.ID, Err: err})
		return res
	}
	res.Succeeded++
	g.log.Info("market event started", "event_id", event.ID, "name", event.Name, "impact", event.ImpactMultiplier, "months", event.DurationMonths)
	box.broadcast(ChannelMarket, marketEventMessage(event))
	return res
}
