// Package store persists compliance verdicts to a local bbolt database so
// past checks survive restarts and can be listed by the CLI.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/platformsec/tagsentry/types"
)

// Bucket names in bbolt
var (
	bucketVerdicts = []byte("verdicts")
	bucketMeta     = []byte("meta")
)

var keyRevision = []byte("revision")

// Verdict is one recorded compliance check.
type Verdict struct {
	Revision     int64                  `json:"revision"`
	RecordedAt   time.Time              `json:"recorded_at"`
	ResourceType string                 `json:"resource_type"`
	ResourceIDs  []string               `json:"resource_ids"`
	Region       string                 `json:"region"`
	AccountID    string                 `json:"account_id"`
	EventName    string                 `json:"event_name"`
	Creator      string                 `json:"creator"`
	Result       types.ComplianceResult `json:"result"`
}

// VerdictStore appends verdicts under a monotonic revision number.
type VerdictStore struct {
	mu sync.Mutex

	db         *bbolt.DB
	currentRev int64
}

// Open opens or creates the verdict database under dir.
func Open(dir string) (*VerdictStore, error) {
	dbPath := filepath.Join(dir, "tagsentry.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketVerdicts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &VerdictStore{db: db}
	if err := s.loadRevision(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *VerdictStore) Close() error {
	return s.db.Close()
}

func (s *VerdictStore) loadRevision() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketMeta).Get(keyRevision)
		if value != nil {
			s.currentRev = int64(binary.BigEndian.Uint64(value))
		}
		return nil
	})
}

// Record stores a verdict for a checked resource and returns its revision.
func (s *VerdictStore) Record(desc types.ResourceDescriptor, result types.ComplianceResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	verdict := Verdict{
		Revision:     rev,
		RecordedAt:   time.Now().UTC(),
		ResourceType: desc.ResourceType,
		ResourceIDs:  desc.ResourceIDs,
		Region:       desc.Region,
		AccountID:    desc.AccountID,
		EventName:    desc.EventName,
		Creator:      desc.Creator,
		Result:       result,
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(verdict)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketVerdicts).Put(revisionKey(rev), value); err != nil {
			return err
		}

		revBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(revBytes, uint64(rev))
		return tx.Bucket(bucketMeta).Put(keyRevision, revBytes)
	})
	if err != nil {
		s.currentRev--
		return 0, fmt.Errorf("failed to record verdict: %w", err)
	}

	return rev, nil
}

// List returns the most recent verdicts, newest first. A limit of 0 means
// no limit.
func (s *VerdictStore) List(limit int) ([]Verdict, error) {
	var verdicts []Verdict

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketVerdicts).Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if limit > 0 && len(verdicts) >= limit {
				break
			}
			var verdict Verdict
			if err := json.Unmarshal(v, &verdict); err != nil {
				return fmt.Errorf("corrupt verdict at %x: %w", k, err)
			}
			verdicts = append(verdicts, verdict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return verdicts, nil
}

// revisionKey encodes the revision big-endian so bbolt's byte ordering
// matches numeric ordering.
func revisionKey(rev int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(rev))
	return key
}
