// In file: internal/integrations/store.go

// Package integrations persists the per-user association with an authorized
// external workspace: the Integration Record. Records live in Redis, keyed by
// id, with a per-(user, service) pointer to the single active record.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ServiceNotion is the service type tag for Notion workspaces.
const ServiceNotion = "notion"

// ErrNotFound is returned when a record id does not exist or does not belong
// to the requesting user.
var ErrNotFound = errors.New("integration not found")

// Record is one stored association between a user and an authorized external
// workspace. AccessToken is sensitive: it is used solely to authenticate
// outbound calls and must never be echoed to the model or the client.
type Record struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ServiceType   string    `json:"service_type"`
	WorkspaceID   string    `json:"workspace_id,omitempty"`
	WorkspaceName string    `json:"workspace_name,omitempty"`
	WorkspaceIcon string    `json:"workspace_icon,omitempty"`
	AccessToken   string    `json:"-"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the Redis-backed record store. All methods are safe for concurrent
// use; the dispatch path only ever reads.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func recordKey(id string) string {
	return fmt.Sprintf("integration:%s", id)
}

func activeKey(userID, serviceType string) string {
	return fmt.Sprintf("integration:active:%s:%s", userID, serviceType)
}

func userSetKey(userID string) string {
	return fmt.Sprintf("integrations:user:%s", userID)
}

// Create stores a new active record for (user, service). Any previously
// active record for the same pair is deactivated in the same transaction,
// preserving the invariant that at most one record per pair is active.
//
// The active pointer is watched so two concurrent connects for the same pair
// cannot both finish active: the loser's transaction fails and retries
// against the winner's pointer.
func (s *Store) Create(ctx context.Context, rec Record) (*Record, error) {
	if rec.UserID == "" || rec.ServiceType == "" || rec.AccessToken == "" {
		return nil, fmt.Errorf("integration record requires user id, service type and access token")
	}

	now := time.Now().UTC()
	rec.ID = uuid.NewString()
	rec.Active = true
	rec.CreatedAt = now
	rec.UpdatedAt = now

	key := activeKey(rec.UserID, rec.ServiceType)
	create := func(tx *redis.Tx) error {
		previousID, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previousID != "" {
				pipe.HSet(ctx, recordKey(previousID), map[string]any{
					"active":     "false",
					"updated_at": now.Format(time.RFC3339Nano),
				})
			}
			pipe.HSet(ctx, recordKey(rec.ID), recordFields(&rec))
			pipe.Set(ctx, key, rec.ID, 0)
			pipe.SAdd(ctx, userSetKey(rec.UserID), rec.ID)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.rdb.Watch(ctx, create, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetActive returns the active record for (user, service), or nil when the
// user has never connected or has disconnected the service.
func (s *Store) GetActive(ctx context.Context, userID, serviceType string) (*Record, error) {
	id, err := s.rdb.Get(ctx, activeKey(userID, serviceType)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Active {
		// Stale pointer; treat as disconnected.
		return nil, nil
	}
	return rec, nil
}

// Deactivate flips a record's active flag without deleting it, clearing the
// active pointer if it still references the record.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("integration %s: %w", id, ErrNotFound)
	}
	rec.Active = false
	rec.UpdatedAt = time.Now().UTC()
	if err := s.writeRecord(ctx, rec); err != nil {
		return err
	}

	key := activeKey(rec.UserID, rec.ServiceType)
	if current, err := s.rdb.Get(ctx, key).Result(); err == nil && current == id {
		return s.rdb.Del(ctx, key).Err()
	}
	return nil
}

// Delete removes a record entirely. The record must belong to userID.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil || rec.UserID != userID {
		return fmt.Errorf("integration %s: %w", id, ErrNotFound)
	}
	if rec.Active {
		if err := s.rdb.Del(ctx, activeKey(rec.UserID, rec.ServiceType)).Err(); err != nil {
			return err
		}
	}
	if err := s.rdb.SRem(ctx, userSetKey(userID), id).Err(); err != nil {
		return err
	}
	return s.rdb.Del(ctx, recordKey(id)).Err()
}

// List returns every record (active or not) owned by userID.
func (s *Store) List(ctx context.Context, userID string) ([]*Record, error) {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// recordFields flattens a record into the hash fields stored under its key.
func recordFields(rec *Record) map[string]any {
	return map[string]any{
		"id":             rec.ID,
		"user_id":        rec.UserID,
		"service_type":   rec.ServiceType,
		"workspace_id":   rec.WorkspaceID,
		"workspace_name": rec.WorkspaceName,
		"workspace_icon": rec.WorkspaceIcon,
		"access_token":   rec.AccessToken,
		"active":         strconv.FormatBool(rec.Active),
		"created_at":     rec.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":     rec.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// recordFromHash is the inverse of recordFields.
func recordFromHash(data map[string]string) *Record {
	rec := &Record{
		ID:            data["id"],
		UserID:        data["user_id"],
		ServiceType:   data["service_type"],
		WorkspaceID:   data["workspace_id"],
		WorkspaceName: data["workspace_name"],
		WorkspaceIcon: data["workspace_icon"],
		AccessToken:   data["access_token"],
	}
	rec.Active, _ = strconv.ParseBool(data["active"])
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, data["created_at"])
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, data["updated_at"])
	return rec
}

func (s *Store) writeRecord(ctx context.Context, rec *Record) error {
	return s.rdb.HSet(ctx, recordKey(rec.ID), recordFields(rec)).Err()
}

func (s *Store) get(ctx context.Context, id string) (*Record, error) {
	data, err := s.rdb.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return recordFromHash(data), nil
}
