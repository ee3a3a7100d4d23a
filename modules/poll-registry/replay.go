package pollRegistry

import (
	"context"
	"fmt"

	"poll-node/modules/journal"

	"github.com/ethereum/go-ethereum/common"
)

// Replay applies an entry read back from the journal. Token entries are
// ignored here; they belong to the fee ledger. No events are published.
func (r *Registry) Replay(ctx context.Context, entry journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch entry.Type {
	case journal.TypeCreatePoll:
		_, err = r.createPoll(ctx, &entry, false)
	case journal.TypeVote:
		_, err = r.vote(ctx, &entry, common.HexToAddress(entry.Caller), common.Address{}, false)
	case journal.TypeVoteWithSignature:
		// the signer was recovered when the entry was accepted
		_, err = r.vote(ctx, &entry, common.HexToAddress(entry.Voter), common.HexToAddress(entry.Caller), false)
	case journal.TypeAddCreator:
		_, err = r.addCreator(ctx, &entry, false)
	case journal.TypeTokenMint, journal.TypeTokenApprove, journal.TypeTokenTransfer:
		return nil
	default:
		return fmt.Errorf("%w: %s", journal.ErrUnknownType, entry.Type)
	}
	if err != nil {
		return fmt.Errorf("replay seq %d (%s): %w", entry.Seq, entry.Type, err)
	}
	return nil
}
