package domain

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rank is one step of a program's progression ladder.
type Rank struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Order int    `bson:"order" json:"order"`
}

// Program is a curriculum (e.g. BJJ, Muay Thai) with its own rank ladder.
type Program struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Ranks []Rank `bson:"ranks,omitempty" json:"ranks,omitempty"`
}

// Gym is a tenant of the platform.
type Gym struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Timezone  string             `bson:"timezone,omitempty" json:"timezone,omitempty"`
	Programs  []Program          `bson:"programs,omitempty" json:"programs,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RankLadder returns the ranks of programID sorted by order, or nil when the
// program is unknown or has no ranks.
func (g *Gym) RankLadder(programID string) []Rank {
	for _, p := range g.Programs {
		if p.ID != programID {
			continue
		}
		ranks := make([]Rank, len(p.Ranks))
		copy(ranks, p.Ranks)
		sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].Order < ranks[j].Order })
		return ranks
	}
	return nil
}
