package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"suppliers/internal"
)

// PartitionFor maps a join key onto one of n partitions.
func PartitionFor(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// Joiner groups normalized records and auxiliary entries by company key and
// merges each group into enriched records. Adds are safe for concurrent use.
// Auxiliary entries must be added in feed order for first-wins to hold.
type Joiner struct {
	partitions []*joinPartition
}

type joinPartition struct {
	mu      sync.Mutex
	primary map[string][]internal.NormalizedRecord
	ceo     map[string]string
}

func NewJoiner(partitions int) *Joiner {
	if partitions <= 0 {
		partitions = 1
	}
	j := &Joiner{partitions: make([]*joinPartition, partitions)}
	for i := range j.partitions {
		j.partitions[i] = &joinPartition{
			primary: map[string][]internal.NormalizedRecord{},
			ceo:     map[string]string{},
		}
	}
	return j
}

func (j *Joiner) partition(key string) *joinPartition {
	return j.partitions[PartitionFor(key, len(j.partitions))]
}

func (j *Joiner) AddPrimary(rec internal.NormalizedRecord) {
	p := j.partition(rec.CompanyName)
	p.mu.Lock()
	p.primary[rec.CompanyName] = append(p.primary[rec.CompanyName], rec)
	p.mu.Unlock()
}

// AddAuxiliary records entry unless its key already has a value.
func (j *Joiner) AddAuxiliary(entry internal.AuxiliaryEntry) {
	p := j.partition(entry.Key)
	p.mu.Lock()
	if _, ok := p.ceo[entry.Key]; !ok {
		p.ceo[entry.Key] = entry.Value
	}
	p.mu.Unlock()
}

// Emit merges every partition concurrently and returns one enriched record
// per primary record. Keys with auxiliary entries only are dropped. Output is
// ordered by partition, then key, then primary line number.
func (j *Joiner) Emit(ctx context.Context) ([]internal.EnrichedRecord, error) {
	results := make([][]internal.EnrichedRecord, len(j.partitions))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range j.partitions {
		i, p := i, p
		g.Go(func() error {
			out, err := p.merge(gctx)
			results[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]internal.EnrichedRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (p *joinPartition) merge(ctx context.Context) ([]internal.EnrichedRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.primary))
	size := 0
	for k, recs := range p.primary {
		keys = append(keys, k)
		size += len(recs)
	}
	sort.Strings(keys)

	out := make([]internal.EnrichedRecord, 0, size)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ceo, ok := p.ceo[k]
		out = append(out, MergeGroup(p.primary[k], ceo, ok)...)
	}
	return out, nil
}

// MergeGroup enriches every record of one key with its resolved executive.
func MergeGroup(records []internal.NormalizedRecord, ceo string, found bool) []internal.EnrichedRecord {
	if !found {
		ceo = internal.NotAvailable
	}
	sorted := make([]internal.NormalizedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].LineNo < sorted[b].LineNo })

	out := make([]internal.EnrichedRecord, 0, len(sorted))
	for _, rec := range sorted {
		out = append(out, internal.EnrichedRecord{NormalizedRecord: rec, CEO: ceo})
	}
	return out
}

// Join is the single-process form: one pass over both inputs, first
// auxiliary value per key wins.
func Join(records []internal.NormalizedRecord, entries []internal.AuxiliaryEntry) []internal.EnrichedRecord {
	j := NewJoiner(1)
	for _, e := range entries {
		j.AddAuxiliary(e)
	}
	for _, r := range records {
		j.AddPrimary(r)
	}
	out, _ := j.Emit(context.Background())
	return out
}
