package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// queueMessage is the internal structure stored in Badger
type queueMessage struct {
	ID           string            `json:"id"`
	Body         models.JobMessage `json:"body"`
	EnqueuedAt   time.Time         `json:"enqueued_at"`
	VisibleAt    time.Time         `json:"visible_at"`
	ReceiveCount int               `json:"receive_count"`
}

// BadgerManager implements a persistent queue using BadgerDB.
// Messages are stored at queue:{name}:msg:{id}; a visibility index at
// queue:{name}:index:{20-digit-ns}:{id} keeps ready messages scannable in
// delivery order.
type BadgerManager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// NewBadgerManager creates a new Badger-backed queue manager
func NewBadgerManager(db *badger.DB, logger arbor.ILogger, queueName string, visibilityTimeout time.Duration, maxReceive int) (*BadgerManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &BadgerManager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// Enqueue adds a message to the queue, immediately visible
func (m *BadgerManager) Enqueue(ctx context.Context, msg models.JobMessage) error {
	id := uuid.New().String()
	now := time.Now()

	qMsg := queueMessage{
		ID:         id,
		Body:       msg,
		EnqueuedAt: now,
		VisibleAt:  now,
	}

	data, err := json.Marshal(qMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(id), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(qMsg.VisibleAt, id), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	m.logger.Trace().
		Str("queue", m.queueName).
		Str("message_id", id).
		Str("type", msg.Type).
		Msg("Message enqueued")
	return nil
}

// Receive pulls the next visible message. The claimed message becomes
// invisible for the visibility timeout; callers must Delete or Release it.
// An empty scan must not surface as a transaction error: orphan-index and
// poison-message deletes performed during the scan have to commit even when
// nothing was claimable.
func (m *BadgerManager) Receive(ctx context.Context) (*interfaces.QueueDelivery, error) {
	var qMsg queueMessage
	claimed := false

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Index keys sort by timestamp, so the first future entry
			// means nothing else is ready either.
			if ts.After(now) {
				break
			}

			item, err := txn.Get(m.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &qMsg)
			}); err != nil {
				return err
			}

			if qMsg.ReceiveCount >= m.maxReceive {
				// Poison message: drop it rather than loop forever
				m.logger.Warn().
					Str("queue", m.queueName).
					Str("message_id", id).
					Int("receive_count", qMsg.ReceiveCount).
					Msg("Dropping message that exceeded max receive count")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			// Claim: bump receive count and push visibility forward
			qMsg.ReceiveCount++
			qMsg.VisibleAt = now.Add(m.visibilityTimeout)

			newData, err := json.Marshal(qMsg)
			if err != nil {
				return err
			}
			if err := txn.Set(m.msgKey(id), newData); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			claimed = true
			return txn.Set(m.indexKey(qMsg.VisibleAt, id), []byte{})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, models.ErrNoMessage
	}

	return &interfaces.QueueDelivery{
		ID:         qMsg.ID,
		Message:    qMsg.Body,
		Attempt:    qMsg.ReceiveCount,
		EnqueuedAt: qMsg.EnqueuedAt,
	}, nil
}

// Delete acknowledges a delivery, removing the message permanently
func (m *BadgerManager) Delete(ctx context.Context, deliveryID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(deliveryID)
		item, err := txn.Get(msgKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // Already deleted
			}
			return err
		}

		var qMsg queueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(qMsg.VisibleAt, deliveryID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(msgKey)
	})
}

// Release makes a delivery visible again after the given delay
func (m *BadgerManager) Release(ctx context.Context, deliveryID string, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(deliveryID)
		item, err := txn.Get(msgKey)
		if err != nil {
			return fmt.Errorf("failed to get message for release: %w", err)
		}

		var qMsg queueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		oldVisibleAt := qMsg.VisibleAt
		qMsg.VisibleAt = time.Now().Add(delay)

		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey, newData); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(oldVisibleAt, deliveryID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(m.indexKey(qMsg.VisibleAt, deliveryID), []byte{})
	})
}

// Count returns the number of messages currently in the queue, visible or not
func (m *BadgerManager) Count(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue messages: %w", err)
	}
	return count, nil
}

// Close is a no-op; the Badger instance is owned by the storage manager
func (m *BadgerManager) Close() error {
	return nil
}

func (m *BadgerManager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *BadgerManager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexical key order matches timestamp order
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *BadgerManager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", m.queueName)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 22 { // 20-digit timestamp + colon + id
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}
