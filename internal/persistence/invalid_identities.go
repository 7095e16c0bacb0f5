package persistence

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/pkg/utils"
)

// InvalidIdentitySet is the shared on-disk set of identities known to be
// invalid (revoked, malformed, or failed recovery). Batch tools run in
// parallel over the same set, so every write holds an exclusive lock file
// next to the data file; readers need no lock because the data file is
// replaced atomically via rename.
type InvalidIdentitySet struct {
	path string
}

// lockRetryDelay paces lock-acquisition attempts while another writer
// holds the lock file.
const lockRetryDelay = 100 * time.Millisecond

// NewInvalidIdentitySet binds a set to the JSON data file at path. The
// file need not exist yet; the first Add creates it.
func NewInvalidIdentitySet(path string) *InvalidIdentitySet {
	return &InvalidIdentitySet{path: path}
}

func (s *InvalidIdentitySet) lockPath() string { return s.path + ".lock" }

// acquireLock takes the exclusive lock file, waiting until the holder
// releases it or ctx is cancelled.
func (s *InvalidIdentitySet) acquireLock(ctx context.Context) error {
	for {
		f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return utils.Wrap(err, "acquire invalid-identity lock")
		}
		select {
		case <-time.After(lockRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *InvalidIdentitySet) releaseLock() {
	_ = os.Remove(s.lockPath())
}

// load reads the current set, treating a missing file as empty.
func (s *InvalidIdentitySet) load() (map[protocol.Identity]bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[protocol.Identity]bool{}, nil
		}
		return nil, utils.Wrap(err, "read invalid-identity set")
	}
	var ids []protocol.Identity
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, utils.Wrap(err, "decode invalid-identity set")
	}
	set := make(map[protocol.Identity]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Add merges ids into the set under the lock, re-reading the file after
// acquisition so concurrent writers' additions are never lost.
func (s *InvalidIdentitySet) Add(ctx context.Context, ids ...protocol.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer s.releaseLock()

	set, err := s.load()
	if err != nil {
		return err
	}
	for _, id := range ids {
		set[id] = true
	}

	sorted := make([]protocol.Identity, 0, len(set))
	for id := range set {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	raw, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return utils.Wrap(err, "encode invalid-identity set")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return utils.Wrap(err, "write invalid-identity set")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return utils.Wrap(err, "replace invalid-identity set")
	}
	return nil
}

// Contains reports whether id is in the set.
func (s *InvalidIdentitySet) Contains(id protocol.Identity) (bool, error) {
	set, err := s.load()
	if err != nil {
		return false, err
	}
	return set[id], nil
}

// All returns every identity currently in the set, sorted.
func (s *InvalidIdentitySet) All() ([]protocol.Identity, error) {
	set, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Identity, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
