// Package journal captures the outbound market-data stream in pebble
// so consumers that detected a gap in the event topic can re-read the
// missed range. It records emitted events only; the engine never reads
// it back and no book state lives here.
package journal

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const keyPrefix = "event/"

type Journal struct {
	db *pebble.DB
}

func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}

// Append stores one framed event under its sequence number. Writes are
// unsynced: the journal is a capture aid, losing the tail on a crash
// is acceptable where stalling the publisher is not.
func (j *Journal) Append(seq uint64, payload []byte) error {
	return j.db.Set(keyFor(seq), payload, pebble.NoSync)
}

// Scan visits captured events with sequence >= from, in order.
func (j *Journal) Scan(from uint64, fn func(seq uint64, payload []byte) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(from),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(seq, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
