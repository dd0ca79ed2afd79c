package realtime

import (
	"fmt"

	"github.com/ValentinKolb/nora/lib/database"
	"github.com/ValentinKolb/nora/lib/db"
)

func (r *reference) RunTransaction(block database.TransactionBlock, completion database.TransactionCompletion, localEvents bool) {
	if completion == nil {
		completion = func(error, bool, database.Snapshot) {}
	}
	run := func() {
		committed, snap, err := r.transaction(block, localEvents)
		completion(err, committed, snap)
	}
	if !r.db.async(run) {
		go completion(ErrClosed, false, nil)
	}
}

// transaction runs block against the current value and commits its result with a
// compare-and-set on the hash of that value. A lost race reruns block with the value that won.
func (r *reference) transaction(block database.TransactionBlock, localEvents bool) (bool, database.Snapshot, error) {
	if r.err != nil {
		return false, nil, r.err
	}
	path := r.path.String()

	raw, err := r.db.store.Get(path)
	if err != nil {
		return false, nil, err
	}

	for attempt := 1; attempt <= r.db.maxRetries; attempt++ {
		current, err := db.Decode(raw)
		if err != nil {
			return false, nil, err
		}

		res := block(&mutableData{key: r.Key(), value: db.Clone(current)})
		if res.IsAborted() {
			return false, &snapshot{ref: r, value: current}, nil
		}

		var next any
		if res.Data() != nil {
			next = res.Data().Value()
		}
		b, err := encode(next)
		if err != nil {
			return false, nil, err
		}
		if localEvents {
			r.db.publishLocal(r.path, next)
		}

		ok, actual, err := r.db.store.CompareAndSet(path, db.HashBytes(raw), b)
		if err != nil {
			if localEvents {
				r.db.publishLocal(r.path, current)
			}
			return false, nil, err
		}
		if ok {
			committed, err := db.Decode(actual)
			if err != nil {
				return false, nil, err
			}
			return true, &snapshot{ref: r, value: committed}, nil
		}

		log.Debugf("transaction on %s lost attempt %d/%d", path, attempt, r.db.maxRetries)
		raw = actual
		if localEvents {
			if v, err := db.Decode(actual); err == nil {
				r.db.publishLocal(r.path, v)
			}
		}
	}
	return false, nil, fmt.Errorf("%w (%d attempts at %s)", ErrMaxRetries, r.db.maxRetries, path)
}
