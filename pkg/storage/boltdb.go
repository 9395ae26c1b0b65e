package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/model"
)

var (
	bucketJobExecutions = []byte("job_executions")
	bucketNodes          = []byte("nodes")
)

// BoltStore implements JobExecutionStore and NodeStore using BoltDB. It
// adds an in-process per-id mutex set to stand in for the row-level lock
// GetLocked promises, since bbolt itself only serializes whole-database
// writer transactions.
type BoltStore struct {
	db       *bolt.DB
	catalog  errcat.Catalog
	rowLocks sync.Map // int64 -> *sync.Mutex
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir.
func NewBoltStore(dataDir string, catalog errcat.Catalog) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "scheduler.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketJobExecutions, bucketNodes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, catalog: catalog}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func idKey(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func (s *BoltStore) rowLock(id int64) *sync.Mutex {
	v, _ := s.rowLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *BoltStore) getRow(tx *bolt.Tx, id int64) (*model.JobExecution, error) {
	b := tx.Bucket(bucketJobExecutions)
	data := b.Get(idKey(id))
	if data == nil {
		return nil, fmt.Errorf("job execution not found: %d", id)
	}
	var row model.JobExecution
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *BoltStore) putRow(tx *bolt.Tx, row *model.JobExecution) error {
	b := tx.Bucket(bucketJobExecutions)
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return b.Put(idKey(row.ID), data)
}

// PutJobExecution upserts a row. Used by the deployable wrapper to seed
// rows the core did not create itself.
func (s *BoltStore) PutJobExecution(row *model.JobExecution) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.putRow(tx, row)
	})
}

// GetLocked returns the row for id along with a release function that must
// be called once the caller is done mutating. The lock is process-local,
// standing in for a real row-level database lock.
func (s *BoltStore) GetLocked(ctx context.Context, id int64) (*model.JobExecution, func(), error) {
	lock := s.rowLock(id)
	lock.Lock()

	var row *model.JobExecution
	err := s.db.View(func(tx *bolt.Tx) error {
		r, err := s.getRow(tx, id)
		if err != nil {
			return err
		}
		row = r
		return nil
	})
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return row, lock.Unlock, nil
}

func applyTaskMetadata(row *model.JobExecution, tasks []model.TaskMetadata, when time.Time) {
	row.Ended = &when
	row.Tasks = tasks
	if row.Started == nil {
		for _, t := range tasks {
			if t.Started != nil {
				row.Started = t.Started
				break
			}
		}
	}
}

// HandleJobCompletion atomically marks the row COMPLETED and stamps the end
// time.
func (s *BoltStore) HandleJobCompletion(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		row, err := s.getRow(tx, id)
		if err != nil {
			return err
		}
		row.Status = model.StatusCompleted
		applyTaskMetadata(row, tasks, when)
		return s.putRow(tx, row)
	})
}

// HandleJobFailure atomically marks the row FAILED, stamps the end time,
// and records the classified error's code.
func (s *BoltStore) HandleJobFailure(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata, classified *model.Error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		row, err := s.getRow(tx, id)
		if err != nil {
			return err
		}
		row.Status = model.StatusFailed
		applyTaskMetadata(row, tasks, when)
		if classified != nil {
			code := classified.Code
			row.ErrorID = &code
		}
		return s.putRow(tx, row)
	})
}

// CheckpointTasks persists tasks and the end timestamp without touching
// Status, for checkpointing a row whose terminal status is already decided
// (a cancellation observed by the sync loop, for instance).
func (s *BoltStore) CheckpointTasks(ctx context.Context, id int64, when time.Time, tasks []model.TaskMetadata) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		row, err := s.getRow(tx, id)
		if err != nil {
			return err
		}
		applyTaskMetadata(row, tasks, when)
		return s.putRow(tx, row)
	})
}

// GetWithJobAndJobType performs the eager read; BoltStore stores everything
// in one row so this is equivalent to a plain get.
func (s *BoltStore) GetWithJobAndJobType(ctx context.Context, id int64) (*model.JobExecution, error) {
	var row *model.JobExecution
	err := s.db.View(func(tx *bolt.Tx) error {
		r, err := s.getRow(tx, id)
		if err != nil {
			return err
		}
		row = r
		return nil
	})
	return row, err
}

// CountRecentSystemFailures counts the distinct jobs with a SYSTEM-category
// failure on nodeID since the given time.
func (s *BoltStore) CountRecentSystemFailures(ctx context.Context, nodeID string, since time.Time) (int, error) {
	seenJobs := make(map[int64]bool)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobExecutions)
		return b.ForEach(func(_, v []byte) error {
			var row model.JobExecution
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.NodeID != nodeID || row.Status != model.StatusFailed || row.ErrorID == nil {
				return nil
			}
			if row.Ended == nil || row.Ended.Before(since) {
				return nil
			}
			classified := s.catalog.ByCode(*row.ErrorID)
			if classified.Category != model.CategorySystem {
				return nil
			}
			seenJobs[row.JobID] = true
			return nil
		})
	})
	return len(seenJobs), err
}

// IsTimedOut reports whether row has been running longer than its
// configured Timeout. A zero Timeout or a row that has not started never
// times out.
func (s *BoltStore) IsTimedOut(row *model.JobExecution, when time.Time) bool {
	if row.Timeout <= 0 || row.Started == nil {
		return false
	}
	return when.Sub(*row.Started) >= row.Timeout
}

// ListByIDs returns the durable rows among ids that still exist, skipping
// any that have been removed.
func (s *BoltStore) ListByIDs(ctx context.Context, ids []int64) ([]*model.JobExecution, error) {
	rows := make([]*model.JobExecution, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, id := range ids {
			row, err := s.getRow(tx, id)
			if err != nil {
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

// GetNode returns the node roster row for nodeID.
func (s *BoltStore) GetNode(ctx context.Context, nodeID string) (*model.Node, error) {
	var node *model.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(nodeID))
		if data == nil {
			return fmt.Errorf("node not found: %s", nodeID)
		}
		var n model.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		node = &n
		return nil
	})
	return node, err
}

// PutNode upserts a node roster row.
func (s *BoltStore) PutNode(node *model.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return b.Put([]byte(node.ID), data)
	})
}

// PauseNode marks a node paused for the given reason.
func (s *BoltStore) PauseNode(ctx context.Context, nodeID, reason string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(nodeID))
		if data == nil {
			return fmt.Errorf("node not found: %s", nodeID)
		}
		var node model.Node
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		node.IsPaused = true
		node.IsPausedErrors = true
		node.PauseReason = reason
		out, err := json.Marshal(&node)
		if err != nil {
			return err
		}
		return b.Put([]byte(nodeID), out)
	})
}

var (
	_ JobExecutionStore = (*BoltStore)(nil)
	_ NodeStore         = (*BoltStore)(nil)
)
