package journal

import (
	"context"
	"errors"
	"fmt"

	"poll-node/modules/common"
)

const (
	TypeCreatePoll        = "create_poll"
	TypeVote              = "vote"
	TypeVoteWithSignature = "vote_with_signature"
	TypeAddCreator        = "add_creator"
	TypeTokenTransfer     = "token_transfer"
	TypeTokenApprove      = "token_approve"
	TypeTokenMint         = "token_mint"
)

var (
	ErrSeqGap      = errors.New("journal sequence gap")
	ErrCorrupt     = errors.New("journal entry corrupt")
	ErrUnknownType = errors.New("unknown journal entry type")
)

// Entry is one accepted mutating operation. Amounts are decimal strings of
// token base units, signatures are 0x prefixed hex.
type Entry struct {
	Seq       uint64 `json:"seq" bson:"seq"`
	Id        string `json:"id" bson:"id"`
	Type      string `json:"type" bson:"type"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
	Caller    string `json:"caller" bson:"caller"`

	PollId   uint64   `json:"poll_id" bson:"poll_id"`
	Question string   `json:"question,omitempty" bson:"question,omitempty"`
	Options  []string `json:"options,omitempty" bson:"options,omitempty"`
	Duration uint64   `json:"duration,omitempty" bson:"duration,omitempty"`
	Fee      string   `json:"fee,omitempty" bson:"fee,omitempty"`

	OptionId  uint64 `json:"option_id" bson:"option_id"`
	Voter     string `json:"voter,omitempty" bson:"voter,omitempty"`
	Signature string `json:"signature,omitempty" bson:"signature,omitempty"`
	Scheme    string `json:"scheme,omitempty" bson:"scheme,omitempty"`

	Account string `json:"account,omitempty" bson:"account,omitempty"`
	To      string `json:"to,omitempty" bson:"to,omitempty"`
	Amount  string `json:"amount,omitempty" bson:"amount,omitempty"`
}

type Journal interface {
	// Append assigns the next Seq and the content Id, then persists the entry.
	Append(ctx context.Context, entry *Entry) error
	// Replay calls fn for every entry with Seq >= fromSeq in order.
	Replay(ctx context.Context, fromSeq uint64, fn func(Entry) error) error
	// Head is the Seq of the last entry, 0 when empty.
	Head(ctx context.Context) (uint64, error)
}

// Seal stamps entry with seq and its content id.
func Seal(entry *Entry, seq uint64) error {
	entry.Seq = seq
	entry.Id = ""
	id, err := common.ComputeId(entry)
	if err != nil {
		return fmt.Errorf("failed to compute entry id: %w", err)
	}
	entry.Id = id.String()
	return nil
}

// Verify recomputes the content id of a stored entry.
func Verify(entry Entry) error {
	stored := entry.Id
	if err := Seal(&entry, entry.Seq); err != nil {
		return err
	}
	if entry.Id != stored {
		return fmt.Errorf("%w: seq %d id %s does not match content %s", ErrCorrupt, entry.Seq, stored, entry.Id)
	}
	return nil
}
