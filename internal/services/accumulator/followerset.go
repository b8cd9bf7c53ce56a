package accumulator

import "github.com/vadiminshakov/vaultboard/internal/domain"

// followerSet merged followers keyed by user, in first-seen order.
type followerSet struct {
	index map[string]int
	list  []domain.Follower
}

func newFollowerSet(seed []domain.Follower) *followerSet {
	s := &followerSet{index: make(map[string]int, len(seed))}
	s.merge(seed)
	return s
}

// merge stores every follower under its user key, replacing earlier records for the same
// user (last write wins), and returns how many users were not present before.
func (s *followerSet) merge(batch []domain.Follower) int {
	added := 0
	for _, f := range batch {
		if f.User == "" {
			continue
		}
		if i, ok := s.index[f.User]; ok {
			s.list[i] = f
			continue
		}
		s.index[f.User] = len(s.list)
		s.list = append(s.list, f)
		added++
	}
	return added
}

func (s *followerSet) len() int {
	return len(s.list)
}

// followers returns a copy safe to hand out.
func (s *followerSet) followers() []domain.Follower {
	out := make([]domain.Follower, len(s.list))
	copy(out, s.list)
	return out
}
