package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-survival/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// maxTxRetries optimistic-lock retries for WATCH/MULTI updates
const maxTxRetries = 5

// RedisDocumentStore family documents as JSON strings plus pub/sub change notices.
//
//	{keyPrefix}{familyID}                 JSON document
//	{keyPrefix}{familyID}{changedSuffix}  pub/sub channel, one message per write
type RedisDocumentStore struct {
	client        *redis.Client
	keyPrefix     string
	changedSuffix string
	logger        *zap.Logger
	now           func() time.Time
}

// NewRedisDocumentStore creates a store over client
func NewRedisDocumentStore(client *redis.Client, keyPrefix, changedSuffix string, logger *zap.Logger) *RedisDocumentStore {
	return &RedisDocumentStore{
		client:        client,
		keyPrefix:     keyPrefix,
		changedSuffix: changedSuffix,
		logger:        logger,
		now:           time.Now,
	}
}

// DocumentKey key holding the family document
func (s *RedisDocumentStore) DocumentKey(familyID string) string {
	return s.keyPrefix + familyID
}

// ChangedChannel pub/sub channel announcing document writes
func (s *RedisDocumentStore) ChangedChannel(familyID string) string {
	return s.keyPrefix + familyID + s.changedSuffix
}

// GetDocument reads the current document; a missing key yields ErrDocumentNotFound
func (s *RedisDocumentStore) GetDocument(ctx context.Context, familyID string) (map[string]interface{}, error) {
	if familyID == "" {
		return nil, ErrFamilyIDRequired
	}
	val, err := s.client.Get(ctx, s.DocumentKey(familyID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return decodeDocument(val)
}

// PutDocument replaces the document and announces the change
func (s *RedisDocumentStore) PutDocument(ctx context.Context, familyID string, doc map[string]interface{}) error {
	if familyID == "" {
		return ErrFamilyIDRequired
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.DocumentKey(familyID), data, 0)
		pipe.Publish(ctx, s.ChangedChannel(familyID), "put")
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Subscribe emits the current document (empty when none exists yet), then a
// fresh read after every change notice.
func (s *RedisDocumentStore) Subscribe(ctx context.Context, familyID string) (Subscription, error) {
	if familyID == "" {
		return nil, ErrFamilyIDRequired
	}

	pubsub := s.client.Subscribe(ctx, s.ChangedChannel(familyID))
	// wait for the subscribe confirmation so no write is missed between
	// the initial read and the first notice
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe: %v", ErrStreamFailed, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		updates: make(chan DocumentUpdate, 1),
		pubsub:  pubsub,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.pump(subCtx, familyID, sub)

	s.logger.Debug("Subscribed to family document",
		zap.String("family_id", familyID),
		zap.String("channel", s.ChangedChannel(familyID)),
	)
	return sub, nil
}

func (s *RedisDocumentStore) pump(ctx context.Context, familyID string, sub *redisSubscription) {
	defer close(sub.done)
	defer close(sub.updates)

	if !s.emitCurrent(ctx, familyID, sub) {
		return
	}
	for {
		if _, err := sub.pubsub.ReceiveMessage(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.send(ctx, DocumentUpdate{Err: fmt.Errorf("%w: %v", ErrStreamFailed, err)})
			return
		}
		if !s.emitCurrent(ctx, familyID, sub) {
			return
		}
	}
}

// emitCurrent reads and sends the document; false means the pump must stop
func (s *RedisDocumentStore) emitCurrent(ctx context.Context, familyID string, sub *redisSubscription) bool {
	doc, err := s.GetDocument(ctx, familyID)
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		doc = map[string]interface{}{}
	case errors.Is(err, ErrMalformedDocument):
		// bad content degrades to defaults; only transport errors break the stream
		s.logger.Warn("Malformed family document, using defaults",
			zap.String("family_id", familyID),
			zap.Error(err),
		)
		doc = map[string]interface{}{}
	case err != nil:
		if ctx.Err() != nil {
			return false
		}
		sub.send(ctx, DocumentUpdate{Err: fmt.Errorf("%w: %v", ErrStreamFailed, err)})
		return false
	}
	return sub.send(ctx, DocumentUpdate{Document: doc})
}

// ClearAlert resets the manual alert flag and stamps alertClearedAt
func (s *RedisDocumentStore) ClearAlert(ctx context.Context, familyID string) error {
	return s.update(ctx, familyID, false, func(doc map[string]interface{}) {
		doc[models.KeyManualAlertActive] = false
		delete(doc, models.KeyManualAlertMessage)
		doc[models.KeyAlertClearedAt] = s.now().UTC().Format(time.RFC3339Nano)
	})
}

// RecordActivity advances lastPhoneActivity (never backwards) and battery level
func (s *RedisDocumentStore) RecordActivity(ctx context.Context, familyID string, hb models.Heartbeat) error {
	at := hb.At
	if at.IsZero() {
		at = s.now()
	}
	return s.update(ctx, familyID, true, func(doc map[string]interface{}) {
		current := models.ParseSnapshot(familyID, doc).LastPhoneActivity
		if current == nil || at.After(*current) {
			doc[models.KeyLastPhoneActivity] = at.UTC().Format(time.RFC3339Nano)
		}
		if hb.BatteryLevel != nil {
			doc[models.KeyBatteryLevel] = *hb.BatteryLevel
		}
	})
}

// update read-modify-write under WATCH; the change notice is published in the same MULTI
func (s *RedisDocumentStore) update(ctx context.Context, familyID string, createMissing bool, mutate func(map[string]interface{})) error {
	if familyID == "" {
		return ErrFamilyIDRequired
	}
	key := s.DocumentKey(familyID)

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		var doc map[string]interface{}
		switch {
		case err == redis.Nil:
			if !createMissing {
				return ErrDocumentNotFound
			}
			doc = map[string]interface{}{}
		case err != nil:
			return err
		default:
			if doc, err = decodeDocument(val); err != nil {
				if !createMissing || !errors.Is(err, ErrMalformedDocument) {
					return err
				}
				// heartbeats rebuild a corrupt document rather than stall
				doc = map[string]interface{}{}
			}
		}

		mutate(doc)
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, s.ChangedChannel(familyID), "update")
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, ErrDocumentNotFound) {
			return err
		}
		return fmt.Errorf("failed to update document: %w", err)
	}
	return fmt.Errorf("failed to update document: %w", redis.TxFailedErr)
}

func decodeDocument(val string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

type redisSubscription struct {
	updates   chan DocumentUpdate
	pubsub    *redis.PubSub
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (r *redisSubscription) Updates() <-chan DocumentUpdate { return r.updates }

// Close stops the pump and releases the pub/sub connection
func (r *redisSubscription) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.closeErr = r.pubsub.Close()
		<-r.done
	})
	return r.closeErr
}

func (r *redisSubscription) send(ctx context.Context, upd DocumentUpdate) bool {
	select {
	case r.updates <- upd:
		return true
	case <-ctx.Done():
		return false
	}
}
