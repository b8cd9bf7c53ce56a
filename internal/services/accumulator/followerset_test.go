package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

func TestFollowerSet_MergeIdempotent(t *testing.T) {
	batch := followersRange(0, 40)

	once := newFollowerSet(nil)
	assert.Equal(t, 40, once.merge(batch))

	twice := newFollowerSet(nil)
	twice.merge(batch)
	assert.Equal(t, 0, twice.merge(batch))

	assert.Equal(t, once.followers(), twice.followers())
}

func TestFollowerSet_MonotonicGrowth(t *testing.T) {
	batches := [][]domain.Follower{
		followersRange(0, 10),
		followersRange(5, 15),
		followersRange(0, 3),
		nil,
		followersRange(14, 30),
	}

	set := newFollowerSet(nil)
	prev := set.len()
	for _, b := range batches {
		set.merge(b)
		assert.GreaterOrEqual(t, set.len(), prev)
		prev = set.len()
	}
	assert.Equal(t, 30, set.len())
}

func TestFollowerSet_SkipsEmptyUser(t *testing.T) {
	set := newFollowerSet([]domain.Follower{{User: ""}, {User: "0x1"}})
	assert.Equal(t, 1, set.len())
}

func TestFollowerSet_FollowersIsCopy(t *testing.T) {
	set := newFollowerSet(followersRange(0, 2))
	out := set.followers()
	out[0].User = "mutated"
	assert.Equal(t, "0x0000", set.followers()[0].User)
}
