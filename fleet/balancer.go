package fleet

import (
	"fmt"
	"hash/crc32"
	"math/rand"
	"sort"
	"sync/atomic"
)

// Balancer selects one instance from a discovered list. The teacher's
// interface, verbatim, over Instance instead of registry.ServiceInstance.
type Balancer interface {
	// Pick selects one instance from the available list. Called on every
	// connection attempt — must be goroutine-safe.
	Pick(instances []Instance) (*Instance, error)

	// Name returns the strategy name, for logging.
	Name() string
}

var errNoInstances = fmt.Errorf("fleet: no instances available")

// RoundRobinBalancer distributes connections evenly across every registered
// instance in order, via a lock-free atomic counter.
type RoundRobinBalancer struct {
	counter int64
}

func (b *RoundRobinBalancer) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, errNoInstances
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string { return "RoundRobin" }

// WeightedRandomBalancer picks instances probabilistically proportional to
// their Weight — an instance with weight 10 gets roughly twice the traffic
// of one with weight 5. Suited to a fleet of heterogeneous worker machines.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, errNoInstances
	}

	total := 0
	for _, inst := range instances {
		total += inst.Weight
	}
	if total <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("fleet: weighted random selection found no instance")
}

func (b *WeightedRandomBalancer) Name() string { return "WeightedRandom" }

// ConsistentHashBalancer maps a caller-supplied key to the same instance
// across calls (until ring membership changes), giving a fleet host cache
// or swap-file locality: requests for the same buffer/session key keep
// landing on the same Nvim worker.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]*Instance
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per
// real instance, matching the teacher's default.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]*Instance),
	}
}

// Add places an instance onto the ring with its virtual nodes. It only adds:
// nothing is ever removed from the ring, and adding an instance whose Addr
// is already on the ring appends its virtual nodes a second time.
func (b *ConsistentHashBalancer) Add(instance *Instance) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", instance.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// PickKey finds the instance responsible for key — a session or buffer
// identifier, not an Instance. Consistent hashing is key-based, so
// PickKey does not implement Balancer's Pick signature directly.
func (b *ConsistentHashBalancer) PickKey(key string) (*Instance, error) {
	if len(b.ring) == 0 {
		return nil, errNoInstances
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string { return "ConsistentHash" }
