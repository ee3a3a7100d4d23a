package pollRegistry

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

type Poll struct {
	Id       uint64         `json:"id"`
	Question string         `json:"question"`
	Options  []string       `json:"options"`
	Votes    []uint64       `json:"votes"`
	EndTime  int64          `json:"end_time"`
	Creator  common.Address `json:"creator"`
	// CreatedAt is the unix time the poll was accepted.
	CreatedAt int64 `json:"created_at"`
}

func (p *Poll) clone() Poll {
	c := *p
	c.Options = slices.Clone(p.Options)
	c.Votes = slices.Clone(p.Votes)
	return c
}

// Ended reports whether a vote at unix time now would be rejected.
func (p Poll) Ended(now int64) bool {
	return now > p.EndTime
}

func (p Poll) TotalVotes() uint64 {
	var total uint64
	for _, v := range p.Votes {
		total += v
	}
	return total
}

// VoteRecord is the permanent proof that Voter voted on PollId.
type VoteRecord struct {
	PollId   uint64         `json:"poll_id"`
	Voter    common.Address `json:"voter"`
	OptionId uint64         `json:"option_id"`
	// Relayer is the zero address for direct votes.
	Relayer   common.Address `json:"relayer"`
	Seq       uint64         `json:"seq"`
	TxId      string         `json:"tx_id"`
	Timestamp int64          `json:"timestamp"`
}

type voteKey struct {
	pollId uint64
	voter  common.Address
}

type AccountStats struct {
	Account      common.Address `json:"account"`
	PollsCreated uint64         `json:"polls_created"`
	VotesCast    uint64         `json:"votes_cast"`
	VotesRelayed uint64         `json:"votes_relayed"`
	IsCreator    bool           `json:"is_creator"`
}

// Receipt identifies the journal entry an accepted operation was recorded as.
type Receipt struct {
	PollId uint64 `json:"poll_id"`
	Seq    uint64 `json:"seq"`
	TxId   string `json:"tx_id"`
}

// ===== events =====

type Event interface {
	Meta() EventMeta
}

type EventMeta struct {
	Seq       uint64
	TxId      string
	Timestamp int64
}

func (m EventMeta) Meta() EventMeta {
	return m
}

type PollCreated struct {
	EventMeta
	PollId   uint64
	Question string
	Creator  common.Address
	Options  []string
	EndTime  int64
}

type Voted struct {
	EventMeta
	PollId   uint64
	OptionId uint64
	Voter    common.Address
	// Relayer is the zero address for direct votes.
	Relayer common.Address
}

type CreatorAdded struct {
	EventMeta
	Account common.Address
}
