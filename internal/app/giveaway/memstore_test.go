package giveaway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// memStore implements the three repositories over maps. Every method holds
// the mutex for its whole body, which gives the same atomicity the SQL store
// provides through transactions and row locks.
type memStore struct {
	mu           sync.Mutex
	nextID       uint64
	nextRow      uint64
	lotteries    map[uint64]domain.Lottery
	participants map[uint64][]domain.Participant
	winners      map[uint64][]domain.WinnerRecord
}

func newMemStore() *memStore {
	return &memStore{
		lotteries:    map[uint64]domain.Lottery{},
		participants: map[uint64][]domain.Participant{},
		winners:      map[uint64][]domain.WinnerRecord{},
	}
}

func (m *memStore) Create(ctx context.Context, l *domain.Lottery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	m.lotteries[l.ID] = *l
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id uint64) (domain.Lottery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lotteries[id]
	if !ok {
		return domain.Lottery{}, domain.ErrNotFound
	}
	return l, nil
}

func (m *memStore) ListActive(ctx context.Context, communityID int64, limit int) ([]domain.Lottery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lottery
	for _, l := range m.lotteries {
		if l.CommunityID == communityID && l.Status == domain.StatusActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListDue(ctx context.Context, now time.Time) ([]domain.Lottery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lottery
	for _, l := range m.lotteries {
		if l.Status == domain.StatusActive && l.Deadline != nil && !l.Deadline.After(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) TransitionStatus(ctx context.Context, id uint64, from, to domain.LotteryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(id, from, to)
}

func (m *memStore) transitionLocked(id uint64, from, to domain.LotteryStatus) error {
	l, ok := m.lotteries[id]
	if !ok || l.Status != from {
		return domain.ErrStaleStatus
	}
	l.Status = to
	l.UpdatedAt = time.Now().UTC()
	m.lotteries[id] = l
	return nil
}

func (m *memStore) CommitDraw(ctx context.Context, id uint64, expected domain.LotteryStatus, winners []domain.WinnerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(id, expected, domain.StatusEnded); err != nil {
		return err
	}
	for _, w := range winners {
		m.nextRow++
		w.ID = m.nextRow
		m.winners[id] = append(m.winners[id], w)
	}
	return nil
}

func (m *memStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, l := range m.lotteries {
		if l.Status.Terminal() && l.UpdatedAt.Before(cutoff) {
			delete(m.lotteries, id)
			delete(m.participants, id)
			delete(m.winners, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) CountByCommunity(ctx context.Context, communityID int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, active int64
	for _, l := range m.lotteries {
		if l.CommunityID != communityID {
			continue
		}
		total++
		if l.Status == domain.StatusActive {
			active++
		}
	}
	return total, active, nil
}

func (m *memStore) Insert(ctx context.Context, p domain.Participant, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participants[p.LotteryID] {
		if existing.UserID == p.UserID {
			return domain.ErrAlreadyExists
		}
	}
	if capacity >= 0 && len(m.participants[p.LotteryID]) >= capacity {
		return domain.ErrCapacityFull
	}
	m.nextRow++
	p.ID = m.nextRow
	m.participants[p.LotteryID] = append(m.participants[p.LotteryID], p)
	return nil
}

func (m *memStore) IncrementWeight(ctx context.Context, lotteryID uint64, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.participants[lotteryID]
	for i := range list {
		if list[i].UserID == userID {
			list[i].Weight++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) Find(ctx context.Context, lotteryID uint64, userID int64) (domain.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants[lotteryID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return domain.Participant{}, domain.ErrNotFound
}

func (m *memStore) ListByLottery(ctx context.Context, lotteryID uint64) ([]domain.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Participant{}, m.participants[lotteryID]...), nil
}

func (m *memStore) CountByLottery(ctx context.Context, lotteryID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.participants[lotteryID])), nil
}

// participantStore shadows CountByCommunity, whose signature differs between
// the lottery and participant repository interfaces.
type participantStore struct {
	*memStore
}

func (p participantStore) CountByCommunity(ctx context.Context, communityID int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var count int64
	for lotteryID, list := range p.participants {
		if p.lotteries[lotteryID].CommunityID == communityID {
			count += int64(len(list))
		}
	}
	return count, nil
}

func (m *memStore) CountLotteriesEntered(ctx context.Context, communityID, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for lotteryID, list := range m.participants {
		if m.lotteries[lotteryID].CommunityID != communityID {
			continue
		}
		for _, p := range list {
			if p.UserID == userID {
				count++
				break
			}
		}
	}
	return count, nil
}

// winnerStore gives the memStore a second identity so ParticipantRepository
// and WinnerRepository can both be satisfied despite the CountByCommunity
// signature clash between the two interfaces.
type winnerStore struct {
	*memStore
}

func (w winnerStore) ListByLottery(ctx context.Context, lotteryID uint64) ([]domain.WinnerRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.WinnerRecord{}, w.winners[lotteryID]...), nil
}

func (w winnerStore) CountByCommunity(ctx context.Context, communityID int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var count int64
	for lotteryID, list := range w.winners {
		if w.lotteries[lotteryID].CommunityID == communityID {
			count += int64(len(list))
		}
	}
	return count, nil
}

func (w winnerStore) CountByUser(ctx context.Context, communityID, userID int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var count int64
	for lotteryID, list := range w.winners {
		if w.lotteries[lotteryID].CommunityID != communityID {
			continue
		}
		for _, rec := range list {
			if rec.UserID == userID {
				count++
			}
		}
	}
	return count, nil
}

func (w winnerStore) ListRecentByUser(ctx context.Context, communityID, userID int64, limit int) ([]domain.WinnerRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []domain.WinnerRecord
	for lotteryID, list := range w.winners {
		if w.lotteries[lotteryID].CommunityID != communityID {
			continue
		}
		for _, rec := range list {
			if rec.UserID == userID {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WonAt.After(out[j].WonAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memRollup struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemRollup() *memRollup {
	return &memRollup{counts: map[string]int64{}}
}

func (m *memRollup) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] += delta
	return m.counts[key], nil
}

func (m *memRollup) GetAll(ctx context.Context, keys []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[k] = m.counts[k]
	}
	return out, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ domain.LotteryRepository = (*memStore)(nil)
var _ domain.ParticipantRepository = participantStore{}
var _ domain.WinnerRepository = winnerStore{}
var _ domain.RollupCounter = (*memRollup)(nil)
var _ domain.Clock = (*fixedClock)(nil)
