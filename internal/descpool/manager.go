// Package descpool allocates descriptor sets from a growing list of
// fixed-capacity native pools.
package descpool

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/rhi/driver"
)

// Default pool size.
const (
	// DefaultMaxSets is the number of sets per pool.
	DefaultMaxSets = 512

	// DefaultPerType is the number of descriptors of each type per pool.
	DefaultPerType = 512
)

// Manager errors.
var (
	// ErrAllocationFailure is returned when a fresh pool cannot serve a
	// request. It is fatal for the request.
	ErrAllocationFailure = errors.New("descpool: allocation failure")

	// ErrForeignLease is returned when freeing a lease from another manager
	// or from a destroyed pool.
	ErrForeignLease = errors.New("descpool: lease not owned by this manager")

	// ErrDoubleFree is returned when a lease is freed twice.
	ErrDoubleFree = errors.New("descpool: lease already freed")
)

// CreateFunc creates a native descriptor pool.
type CreateFunc func(desc driver.PoolDesc) (driver.DescriptorPool, error)

// Config holds the size of every pool the manager creates.
type Config struct {
	Label   string
	MaxSets int
	PerType driver.DescriptorCounts
}

// DefaultConfig returns the default pool size (512 sets, 512 per type).
func DefaultConfig() Config {
	return Config{
		Label:   "descpool",
		MaxSets: DefaultMaxSets,
		PerType: driver.Uniform(DefaultPerType),
	}
}

// pool tracks the bookkeeping of one native pool.
type pool struct {
	native   driver.DescriptorPool
	index    int
	usedSets int
	used     driver.DescriptorCounts
}

// Lease is a group of descriptor sets allocated together from one pool.
type Lease struct {
	// Sets holds one native set per requested layout, in request order.
	Sets []driver.DescriptorSet

	pool   *pool
	counts driver.DescriptorCounts
	freed  bool
}

// Pool returns the index of the pool the lease was allocated from,
// or -1 for an empty lease.
func (l *Lease) Pool() int {
	if l.pool == nil {
		return -1
	}
	return l.pool.index
}

// Counts returns the descriptors held by the lease.
func (l *Lease) Counts() driver.DescriptorCounts { return l.counts }

// Stats is a snapshot of the manager bookkeeping.
type Stats struct {
	Pools        int
	CapacitySets int
	UsedSets     int
	Capacity     driver.DescriptorCounts
	Used         driver.DescriptorCounts

	// Skipped counts pool attempts that failed as fragmented or exhausted
	// and moved on to the next candidate.
	Skipped int
}

// String returns a human-readable string of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("DescriptorPools[%d pools, %d/%d sets, %d skipped]",
		s.Pools, s.UsedSets, s.CapacitySets, s.Skipped)
}

// Manager allocates descriptor sets across pools.
//
// Candidate pools for a request are the intersection of the pools with a
// vacant set slot and, for every descriptor type the request needs, the
// pools with vacant descriptors of that type. Candidates are tried in
// creation order. A candidate that reports a fragmented or exhausted pool
// is skipped. When no candidate serves the request a new pool is created,
// and that allocation must succeed.
//
// Manager is NOT safe for concurrent use.
type Manager struct {
	create CreateFunc
	cfg    Config
	log    *slog.Logger

	pools []*pool

	vacantSets bitset
	vacantType [driver.NumDescriptorTypes]bitset
	index      map[driver.DescriptorPool]int

	scratch bitset
	skipped int
}

// New creates a manager that creates pools with create. Zero fields of cfg
// take their DefaultConfig values.
func New(create CreateFunc, cfg Config, log *slog.Logger) *Manager {
	def := DefaultConfig()
	if cfg.MaxSets <= 0 {
		cfg.MaxSets = def.MaxSets
	}
	if cfg.PerType == (driver.DescriptorCounts{}) {
		cfg.PerType = def.PerType
	}
	if cfg.Label == "" {
		cfg.Label = def.Label
	}
	if log == nil {
		log = slog.New(discardHandler{})
	}
	return &Manager{
		create: create,
		cfg:    cfg,
		log:    log,
		index:  make(map[driver.DescriptorPool]int),
	}
}

// Allocate allocates one set per layout. need is the total number of
// descriptors of each type the layouts hold (see driver.Counts).
func (m *Manager) Allocate(layouts []driver.BindingLayout, need driver.DescriptorCounts) (*Lease, error) {
	if len(layouts) == 0 {
		return &Lease{}, nil
	}
	if len(layouts) > m.cfg.MaxSets || !m.cfg.PerType.Fits(driver.DescriptorCounts{}, need) {
		return nil, fmt.Errorf("%w: request of %d sets %v exceeds pool size %d sets %v",
			ErrAllocationFailure, len(layouts), need, m.cfg.MaxSets, m.cfg.PerType)
	}

	for _, i := range m.candidates(need) {
		p := m.pools[i]
		if p.usedSets+len(layouts) > m.cfg.MaxSets || !m.cfg.PerType.Fits(p.used, need) {
			continue
		}
		sets, err := p.native.Allocate(layouts)
		if err != nil {
			if driver.IsPoolExhausted(err) {
				m.skipped++
				m.log.Warn("descpool: pool skipped", "pool", i, "err", err)
				continue
			}
			return nil, fmt.Errorf("%w: pool %d: %w", ErrAllocationFailure, i, err)
		}
		return m.record(p, sets, need), nil
	}

	p, err := m.newPool()
	if err != nil {
		return nil, err
	}
	sets, err := p.native.Allocate(layouts)
	if err != nil {
		return nil, fmt.Errorf("%w: fresh pool %d: %w", ErrAllocationFailure, p.index, err)
	}
	return m.record(p, sets, need), nil
}

// candidates returns the indexes of pools with vacancy for every type in
// need, in ascending order.
func (m *Manager) candidates(need driver.DescriptorCounts) []int {
	m.scratch = append(m.scratch[:0], m.vacantSets...)
	for t, n := range need {
		if n > 0 {
			m.scratch = m.scratch.intersectInto(m.scratch, m.vacantType[t])
		}
	}
	out := make([]int, 0, m.scratch.count())
	m.scratch.each(func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}

func (m *Manager) newPool() (*pool, error) {
	idx := len(m.pools)
	native, err := m.create(driver.PoolDesc{
		Label:   fmt.Sprintf("%s_%d", m.cfg.Label, idx),
		MaxSets: m.cfg.MaxSets,
		PerType: m.cfg.PerType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %w", ErrAllocationFailure, err)
	}
	p := &pool{native: native, index: idx}
	m.pools = append(m.pools, p)
	m.index[native] = idx
	m.vacantSets.set(idx)
	for t := range m.vacantType {
		if m.cfg.PerType[t] > 0 {
			m.vacantType[t].set(idx)
		}
	}
	m.log.Debug("descpool: pool created", "pool", idx, "sets", m.cfg.MaxSets)
	return p, nil
}

func (m *Manager) record(p *pool, sets []driver.DescriptorSet, need driver.DescriptorCounts) *Lease {
	p.usedSets += len(sets)
	p.used = p.used.Add(need)
	m.updateVacancy(p)
	return &Lease{Sets: sets, pool: p, counts: need}
}

func (m *Manager) updateVacancy(p *pool) {
	if p.usedSets < m.cfg.MaxSets {
		m.vacantSets.set(p.index)
	} else {
		m.vacantSets.clear(p.index)
	}
	for t := range m.vacantType {
		if p.used[t] < m.cfg.PerType[t] {
			m.vacantType[t].set(p.index)
		} else {
			m.vacantType[t].clear(p.index)
		}
	}
}

// Free returns the lease's sets to the pool they came from. Freeing a nil
// or empty lease is a no-op.
func (m *Manager) Free(l *Lease) error {
	if l == nil || l.pool == nil {
		return nil
	}
	if l.freed {
		return ErrDoubleFree
	}
	idx, ok := m.index[l.pool.native]
	if !ok || m.pools[idx] != l.pool {
		return ErrForeignLease
	}
	p := l.pool
	if p.usedSets < len(l.Sets) {
		return fmt.Errorf("%w: pool %d frees %d sets with %d used", ErrForeignLease, idx, len(l.Sets), p.usedSets)
	}
	l.freed = true

	err := p.native.Free(l.Sets)
	p.usedSets -= len(l.Sets)
	p.used = p.used.Sub(l.counts)
	m.updateVacancy(p)
	l.Sets = nil
	if err != nil {
		return fmt.Errorf("free descriptor sets in pool %d: %w", idx, err)
	}
	return nil
}

// Stats returns a snapshot of the bookkeeping across all pools.
func (m *Manager) Stats() Stats {
	s := Stats{Pools: len(m.pools), Skipped: m.skipped}
	for _, p := range m.pools {
		s.CapacitySets += m.cfg.MaxSets
		s.UsedSets += p.usedSets
		s.Capacity = s.Capacity.Add(m.cfg.PerType)
		s.Used = s.Used.Add(p.used)
	}
	return s
}

// PoolUsage returns the used sets and descriptors of pool i.
func (m *Manager) PoolUsage(i int) (sets int, used driver.DescriptorCounts) {
	p := m.pools[i]
	return p.usedSets, p.used
}

// Destroy destroys every pool. Outstanding leases become invalid.
func (m *Manager) Destroy() {
	for _, p := range m.pools {
		p.native.Destroy()
	}
	m.pools = nil
	m.vacantSets = m.vacantSets[:0]
	for t := range m.vacantType {
		m.vacantType[t] = m.vacantType[t][:0]
	}
	m.index = make(map[driver.DescriptorPool]int)
}
