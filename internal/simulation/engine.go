package simulation

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/knobs"
	"pipeline-oracle/internal/rates"
	"pipeline-oracle/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoConvergence means no iteration produced a hire; the forecast is unavailable.
	ErrNoConvergence = errors.New("no simulated iteration filled the requisition")
	// ErrNoCandidates means the pipeline snapshot is empty.
	ErrNoCandidates = errors.New("pipeline snapshot has no active candidates")
	// ErrIterationsOutOfRange flags iteration counts outside the supported bounds.
	ErrIterationsOutOfRange = errors.New("iterations out of range")
)

// Engine performs the Monte-Carlo simulation of candidates moving through the funnel.
type Engine struct {
	catalog *catalog.Catalog
	workers int
}

// Input is everything one simulation run depends on. Identical inputs give identical results.
type Input struct {
	Candidates []funnel.Candidate
	Rates      []rates.StageRateInfo
	Durations  []durations.StageDurationInfo
	Iterations int
	Seed       string
	AsOf       time.Time

	// StageDelays adds a fixed queue delay (days) each time a candidate passes a stage.
	StageDelays map[funnel.Stage]float64
}

// Debug identifies the run for audit and cache comparison.
type Debug struct {
	Iterations int    `json:"iterations"`
	Seed       string `json:"seed"`
	SeedHash   uint32 `json:"seed_hash"`
}

// Result holds the percentiles of the simulated fill-day distribution.
type Result struct {
	P10                 time.Time         `json:"p10_date"`
	P50                 time.Time         `json:"p50_date"`
	P90                 time.Time         `json:"p90_date"`
	P10Days             float64           `json:"p10_days"`
	P50Days             float64           `json:"p50_days"`
	P90Days             float64           `json:"p90_days"`
	FillProbability     float64           `json:"fill_probability"`
	ConvergedIterations int               `json:"converged_iterations"`
	Samples             []float64         `json:"samples"`
	Confidence          funnel.Confidence `json:"confidence"`
	ConfidenceReasons   []string          `json:"confidence_reasons,omitempty"`
	Debug               Debug             `json:"debug"`
}

// NewEngine creates an engine over the supplied funnel.
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{
		catalog: c,
		workers: runtime.GOMAXPROCS(0),
	}
}

// SetWorkers bounds the number of goroutines used per run. Values < 1 mean sequential.
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.workers = n
}

// SeedHash maps a seed string onto the PRNG state: 32-bit FNV-1a over the UTF-8 bytes.
// Persisted seeds rely on this exact function.
func SeedHash(seed string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return h.Sum32()
}

// iterationSeed derives the sub-seed for one iteration so that parallel and sequential
// execution draw identical streams.
func iterationSeed(hash uint32, iteration int) int64 {
	z := uint64(hash)<<32 | uint64(uint32(iteration))
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}

type prepared struct {
	candidates []funnel.Candidate
	rates      map[funnel.Stage]float64
	durations  map[funnel.Stage]durations.StageDurationInfo
	delays     map[funnel.Stage]float64
}

// Run performs the requested number of trials.
func (e *Engine) Run(in Input) (Result, error) {
	if in.Iterations < knobs.MinIterations || in.Iterations > knobs.MaxIterations {
		return Result{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrIterationsOutOfRange, in.Iterations, knobs.MinIterations, knobs.MaxIterations)
	}

	p, err := e.prepare(in)
	if err != nil {
		return Result{}, err
	}

	hash := SeedHash(in.Seed)
	fills := make([]float64, in.Iterations)
	filled := make([]bool, in.Iterations)

	workers := e.workers
	if workers > in.Iterations {
		workers = in.Iterations
	}
	chunk := (in.Iterations + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < in.Iterations; start += chunk {
		end := min(start+chunk, in.Iterations)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fills[i], filled[i] = e.simulateIteration(p, hash, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	samples := make([]float64, 0, in.Iterations)
	for i, ok := range filled {
		if ok {
			samples = append(samples, fills[i])
		}
	}

	if len(samples) == 0 {
		log.Warn().Str("seed", in.Seed).Int("iterations", in.Iterations).Msg("No iteration converged")
		return Result{}, ErrNoConvergence
	}

	sort.Float64s(samples)

	res := Result{
		P10Days:             stats.PercentileSorted(samples, 0.10),
		P50Days:             stats.PercentileSorted(samples, 0.50),
		P90Days:             stats.PercentileSorted(samples, 0.90),
		FillProbability:     float64(len(samples)) / float64(in.Iterations),
		ConvergedIterations: len(samples),
		Samples:             samples,
		Debug: Debug{
			Iterations: in.Iterations,
			Seed:       in.Seed,
			SeedHash:   hash,
		},
	}
	res.P10 = DaysToDate(in.AsOf, res.P10Days)
	res.P50 = DaysToDate(in.AsOf, res.P50Days)
	res.P90 = DaysToDate(in.AsOf, res.P90Days)
	res.Confidence, res.ConfidenceReasons = AssessConfidence(in.Rates, in.Durations, e.catalog.Controllable())

	return res, nil
}

// DaysToDate converts a fractional day offset into a calendar date, rounding up to whole days.
func DaysToDate(asOf time.Time, days float64) time.Time {
	return asOf.AddDate(0, 0, int(math.Ceil(days)))
}

func (e *Engine) prepare(in Input) (*prepared, error) {
	p := &prepared{
		rates:     rates.ByStage(in.Rates),
		durations: make(map[funnel.Stage]durations.StageDurationInfo, len(in.Durations)),
		delays:    in.StageDelays,
	}
	for _, d := range in.Durations {
		p.durations[d.Stage] = d
	}

	for _, c := range in.Candidates {
		if c.Stage.IsTerminal() && c.Stage != funnel.StageHired {
			continue
		}
		if !e.catalog.Has(c.Stage) {
			return nil, fmt.Errorf("candidate %s is in unknown stage %q", c.ID, c.Stage)
		}
		p.candidates = append(p.candidates, c)
	}
	if len(p.candidates) == 0 {
		return nil, ErrNoCandidates
	}

	// Every stage a candidate can still pass through needs a rate and a duration model.
	for _, c := range p.candidates {
		for s := c.Stage; s != funnel.StageHired; {
			if _, ok := p.rates[s]; !ok {
				return nil, fmt.Errorf("no pass rate for stage %s", s)
			}
			if _, ok := p.durations[s]; !ok {
				return nil, fmt.Errorf("no duration model for stage %s", s)
			}
			next, ok := e.catalog.Next(s)
			if !ok {
				break
			}
			s = next
		}
	}
	return p, nil
}

func (e *Engine) simulateIteration(p *prepared, hash uint32, iteration int) (float64, bool) {
	rng := rand.New(rand.NewSource(iterationSeed(hash, iteration)))

	best := math.Inf(1)
	converted := false
	for _, c := range p.candidates {
		total, ok := e.walkCandidate(rng, p, c.Stage)
		if ok && total < best {
			best = total
			converted = true
		}
	}
	return best, converted
}

// walkCandidate advances one candidate until it is hired or drops out.
func (e *Engine) walkCandidate(rng *rand.Rand, p *prepared, start funnel.Stage) (float64, bool) {
	total := 0.0
	stage := start
	for {
		if stage == funnel.StageHired {
			return total, true
		}

		if rng.Float64() >= p.rates[stage] {
			return 0, false
		}
		total += drawDuration(rng, p.durations[stage]) + p.delays[stage]

		next, ok := e.catalog.Next(stage)
		if !ok {
			return 0, false
		}
		stage = next
	}
}

func drawDuration(rng *rand.Rand, d durations.StageDurationInfo) float64 {
	switch d.Model {
	case durations.KindConstant:
		if d.ConstantDays != nil {
			return *d.ConstantDays
		}
		return d.MedianDays
	case durations.KindEmpirical:
		if len(d.Samples) == 0 {
			return d.MedianDays
		}
		return d.Samples[rng.Intn(len(d.Samples))]
	default:
		if d.Lognormal == nil {
			return d.MedianDays
		}
		return math.Exp(d.Lognormal.Mu + d.Lognormal.Sigma*boxMuller(rng))
	}
}

// boxMuller returns a standard normal deviate from two uniforms.
func boxMuller(rng *rand.Rand) float64 {
	u1 := 1 - rng.Float64() // (0, 1]
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
