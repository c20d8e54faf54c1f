package observability

import "sync"

type observe struct {
	Kind   string  `json:"kind"`
	Method string  `json:"method,omitempty"`
	Route  string  `json:"route,omitempty"`
	Status int     `json:"status,omitempty"`
	Dur    float64 `json:"dur_ms"`
	OK     bool    `json:"ok,omitempty"`
}

// Inmem keeps counter totals and a bounded window of recent observations.
type Inmem struct {
	mu       sync.Mutex
	last     []*observe
	max      int
	counters map[string]int64
	totals   struct {
		cacheHits, cacheMiss int
	}
}

type Snapshot struct {
	Counters  map[string]int64 `json:"counters"`
	CacheHits int              `json:"cache_hits"`
	CacheMiss int              `json:"cache_miss"`
	Recent    []observe        `json:"recent"`
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max:      max,
		counters: make(map[string]int64),
	}
}

func (m *Inmem) push(v *observe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max <= 0 {
		m.last = []*observe{}
		return
	}
	m.last = append(m.last, v)
	if len(m.last) > m.max {
		m.last = m.last[1:]
	}
}

func (m *Inmem) Increment(name string) {
	m.mu.Lock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[name]++
	m.mu.Unlock()
}

func (m *Inmem) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(&observe{Kind: "http", Method: method, Route: route, Status: status, Dur: durMs})
}

func (m *Inmem) ObserveKafka(processMs float64, ok bool) {
	m.push(&observe{Kind: "kafka", Dur: processMs, OK: ok})
}

func (m *Inmem) IncCacheHit() {
	m.mu.Lock()
	m.totals.cacheHits++
	m.mu.Unlock()
}

func (m *Inmem) IncCacheMiss() {
	m.mu.Lock()
	m.totals.cacheMiss++
	m.mu.Unlock()
}

func (m *Inmem) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Counters:  make(map[string]int64, len(m.counters)),
		CacheHits: m.totals.cacheHits,
		CacheMiss: m.totals.cacheMiss,
		Recent:    make([]observe, 0, len(m.last)),
	}
	for k, v := range m.counters {
		s.Counters[k] = v
	}
	for _, o := range m.last {
		s.Recent = append(s.Recent, *o)
	}
	return s
}
