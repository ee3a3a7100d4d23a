package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"poll-node/lib/utils"
	a "poll-node/modules/aggregate"

	"github.com/chebyrash/promise"
	"github.com/ipfs/go-datastore"
	flatfs "github.com/ipfs/go-ds-flatfs"
)

var headKey = datastore.NewKey("HEAD")

func seqKey(seq uint64) datastore.Key {
	return datastore.NewKey(fmt.Sprintf("%020d", seq))
}

// DatastoreJournal stores one JSON entry per key, keyed by zero padded seq,
// plus a HEAD key holding the last seq.
type DatastoreJournal struct {
	mu   sync.Mutex
	ds   datastore.Datastore
	path string

	head   uint64
	loaded bool
}

var _ Journal = &DatastoreJournal{}
var _ a.Plugin = &DatastoreJournal{}

func NewDatastoreJournal(ds datastore.Datastore) *DatastoreJournal {
	return &DatastoreJournal{ds: ds}
}

// NewFlatfsJournal opens a flatfs store at path during Init.
func NewFlatfsJournal(path string) *DatastoreJournal {
	return &DatastoreJournal{path: path}
}

func (j *DatastoreJournal) Init() error {
	if j.ds == nil {
		if err := os.MkdirAll(j.path, 0755); err != nil {
			return err
		}
		fs, err := flatfs.CreateOrOpen(j.path, flatfs.NextToLast(2), true)
		if err != nil {
			return fmt.Errorf("failed to open journal at %s: %w", j.path, err)
		}
		j.ds = fs
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.loadHead(context.Background())
}

func (j *DatastoreJournal) Start() *promise.Promise[any] {
	return utils.PromiseResolve[any](nil)
}

func (j *DatastoreJournal) Stop() error {
	if j.path == "" || j.ds == nil {
		return nil
	}
	if c, ok := j.ds.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (j *DatastoreJournal) loadHead(ctx context.Context) error {
	if j.loaded {
		return nil
	}
	b, err := j.ds.Get(ctx, headKey)
	if errors.Is(err, datastore.ErrNotFound) {
		j.head = 0
		j.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	head, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad head %q", ErrCorrupt, b)
	}
	j.head = head
	j.loaded = true
	return nil
}

func (j *DatastoreJournal) Append(ctx context.Context, entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.loadHead(ctx); err != nil {
		return err
	}

	next := j.head + 1
	if err := Seal(entry, next); err != nil {
		return err
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := j.ds.Put(ctx, seqKey(next), b); err != nil {
		return fmt.Errorf("failed to write entry %d: %w", next, err)
	}
	if err := j.ds.Put(ctx, headKey, []byte(strconv.FormatUint(next, 10))); err != nil {
		return fmt.Errorf("failed to advance head to %d: %w", next, err)
	}
	j.head = next
	return nil
}

func (j *DatastoreJournal) Head(ctx context.Context) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.loadHead(ctx); err != nil {
		return 0, err
	}
	return j.head, nil
}

func (j *DatastoreJournal) Replay(ctx context.Context, fromSeq uint64, fn func(Entry) error) error {
	head, err := j.Head(ctx)
	if err != nil {
		return err
	}
	if fromSeq == 0 {
		fromSeq = 1
	}

	for seq := fromSeq; seq <= head; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := j.ds.Get(ctx, seqKey(seq))
		if errors.Is(err, datastore.ErrNotFound) {
			return fmt.Errorf("%w: missing seq %d", ErrSeqGap, seq)
		}
		if err != nil {
			return err
		}
		var entry Entry
		if err := json.Unmarshal(b, &entry); err != nil {
			return fmt.Errorf("%w: seq %d: %w", ErrCorrupt, seq, err)
		}
		if entry.Seq != seq {
			return fmt.Errorf("%w: key %d holds seq %d", ErrSeqGap, seq, entry.Seq)
		}
		if err := Verify(entry); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}
