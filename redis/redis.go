package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"goscrow/logger"
	"goscrow/repository"
	"goscrow/types"

	"github.com/gomodule/redigo/redis"
)

const (
	keyOperations = "scrow:operations"
	keyTokens     = "scrow:tokens"
	keyAudit      = "scrow:audit"
)

// per-operation records, and one set of record keys per status
func operationKey(id string) string {
	return fmt.Sprintf("scrow:op:%s", id)
}

func statusSetKey(status types.OperationStatus) string {
	return fmt.Sprintf("scrow:status:%s", status)
}

var statuses = []types.OperationStatus{types.StatusOpen, types.StatusCompleted, types.StatusCancelled}

// Mirror copies snapshots and audit entries to redis for external readers.
// Nothing is read back: the service keeps no state across restarts.
type Mirror struct {
	pool     *redis.Pool
	auditCap int
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func New(host string, port int, auditCap int) *Mirror {
	redisAddr := fmt.Sprintf("%s:%d", host, port)
	return NewWithPool(&redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 240 * time.Second,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", redisAddr, timeoutDialOptions()...) },
	}, auditCap)
}

func NewWithPool(pool *redis.Pool, auditCap int) *Mirror {
	return &Mirror{pool: pool, auditCap: auditCap}
}

func (m *Mirror) Close() error {
	return m.pool.Close()
}

func (m *Mirror) Ping() error {
	conn := m.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PING")
	return err
}

// StoreOperations replaces the snapshot, the per-operation records and the
// status sets in one transaction.
func (m *Mirror) StoreOperations(snap repository.OperationsSnapshot) error {
	conn := m.pool.Get()
	defer conn.Close()

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cannot marshal operations snapshot to JSON: %s", err.Error())
	}

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	if err := queueOperations(conn, snapJSON, snap); err != nil {
		if _, derr := conn.Do("DISCARD"); derr != nil {
			logger.Logger.Errorf("error Redis DISCARD: %s", derr.Error())
		}
		return err
	}
	if _, err := conn.Do("EXEC"); err != nil {
		logger.Logger.Errorf("error Redis EXEC: %s", err.Error())
		return err
	}
	return nil
}

// queueOperations sends the commands of one StoreOperations transaction and
// stops at the first failure.
func queueOperations(conn redis.Conn, snapJSON []byte, snap repository.OperationsSnapshot) error {
	if err := conn.Send("SET", keyOperations, snapJSON); err != nil {
		return err
	}
	for _, status := range statuses {
		if err := conn.Send("DEL", statusSetKey(status)); err != nil {
			return err
		}
	}
	for _, op := range snap.Operations {
		opJSON, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("cannot marshal operation %s to JSON: %s", op.ID, err.Error())
		}
		recordKey := operationKey(op.ID.String())
		if err := conn.Send("SET", recordKey, opJSON); err != nil {
			return err
		}
		if err := conn.Send("SADD", statusSetKey(op.Status), recordKey); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) StoreTokens(snap repository.TokensSnapshot) error {
	conn := m.pool.Get()
	defer conn.Close()

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cannot marshal tokens snapshot to JSON: %s", err.Error())
	}
	if _, err := conn.Do("SET", keyTokens, snapJSON); err != nil {
		logger.Logger.Errorf("error Redis SET: %s", err.Error())
		return err
	}
	return nil
}

// PushAudit prepends entry to the audit list and trims it to the cap.
func (m *Mirror) PushAudit(entry types.AuditEntry) error {
	conn := m.pool.Get()
	defer conn.Close()

	if entry.ID == "" {
		return errors.New("audit entry without id")
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cannot marshal audit entry to JSON: %s", err.Error())
	}
	if _, err := conn.Do("LPUSH", keyAudit, entryJSON); err != nil {
		logger.Logger.Errorf("error Redis LPUSH: %s", err.Error())
		return err
	}
	if _, err := conn.Do("LTRIM", keyAudit, 0, m.auditCap-1); err != nil {
		logger.Logger.Errorf("error Redis LTRIM: %s", err.Error())
		return err
	}
	return nil
}
