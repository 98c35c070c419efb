package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"earniverse-backend/internal/config"
	"earniverse-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the engine's Store contracts on Redis. Wallet
// mutations run as Lua scripts so the check-and-subtract is atomic against
// concurrent bets and settlements.
type RedisStore struct {
	client          *redis.Client
	startingBalance float64
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{
		client:          client,
		startingBalance: cfg.StartingBalance,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		wallet, err := models.NewWallet(userID, s.startingBalance)
		if err != nil {
			return nil, err
		}
		if err := s.SaveWallet(ctx, wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %v", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %v", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &wallet, nil
}

func (s *RedisStore) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.UserID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %v", err)
	}

	return s.client.Set(ctx, key, data, 0).Err()
}

var debitScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	if wallet.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	wallet.balance = wallet.balance - amount
	wallet.total_wagered = wallet.total_wagered + amount

	local updated = cjson.encode(wallet)
	redis.call("SET", key, updated)

	return updated
`)

// Debit atomically subtracts amount from the wallet, creating it first if
// the user has never played.
func (s *RedisStore) Debit(ctx context.Context, userID int64, amount float64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	res, err := debitScript.Run(ctx, s.client, []string{key}, amount).Text()
	if err != nil {
		if strings.Contains(err.Error(), "insufficient balance") {
			return nil, models.ErrInsufficientFunds
		}
		if strings.Contains(err.Error(), "wallet not found") {
			if _, err := s.GetWallet(ctx, userID); err != nil {
				return nil, err
			}
			res, err = debitScript.Run(ctx, s.client, []string{key}, amount).Text()
			if err != nil {
				if strings.Contains(err.Error(), "insufficient balance") {
					return nil, models.ErrInsufficientFunds
				}
				return nil, fmt.Errorf("failed to debit wallet: %v", err)
			}
			return unmarshalWallet(res)
		}
		return nil, fmt.Errorf("failed to debit wallet: %v", err)
	}

	return unmarshalWallet(res)
}

var creditScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local win = ARGV[2] == "1"

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	wallet.balance = wallet.balance + amount
	if win then
		wallet.total_won = wallet.total_won + amount
	end

	local updated = cjson.encode(wallet)
	redis.call("SET", key, updated)

	return updated
`)

func (s *RedisStore) Credit(ctx context.Context, userID int64, amount float64, win bool) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	res, err := creditScript.Run(ctx, s.client, []string{key}, amount, win).Text()
	if err != nil {
		if strings.Contains(err.Error(), "wallet not found") {
			if _, err := s.GetWallet(ctx, userID); err != nil {
				return nil, err
			}
			res, err = creditScript.Run(ctx, s.client, []string{key}, amount, win).Text()
			if err != nil {
				return nil, fmt.Errorf("failed to credit wallet: %v", err)
			}
			return unmarshalWallet(res)
		}
		return nil, fmt.Errorf("failed to credit wallet: %v", err)
	}

	return unmarshalWallet(res)
}

func unmarshalWallet(data string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}
	return &wallet, nil
}

func (s *RedisStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	txKey := fmt.Sprintf(KeyTransaction, tx.ID)

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %v", err)
	}

	if err := s.client.Set(ctx, txKey, data, TTLTransaction).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.UserID)
	if err := s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  float64(tx.CreatedAt.Unix()),
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to user transactions: %v", err)
	}

	// Keep only last 100 transactions
	s.client.ZRemRangeByRank(ctx, userTxKey, 0, -101)

	return nil
}

func (s *RedisStore) GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, userID)

	txIDs, err := s.client.ZRevRange(ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %v", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, txID)).Result()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

func (s *RedisStore) SaveGameRecord(ctx context.Context, rec *models.GameRecord) error {
	recKey := fmt.Sprintf(KeyGameRecord, rec.ID)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %v", err)
	}

	if err := s.client.Set(ctx, recKey, data, TTLGameRecord).Err(); err != nil {
		return fmt.Errorf("failed to save game record: %v", err)
	}

	userRecKey := fmt.Sprintf(KeyUserRecords, rec.UserID)
	if err := s.client.ZAdd(ctx, userRecKey, redis.Z{
		Score:  float64(rec.CreatedAt.Unix()),
		Member: rec.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to user records: %v", err)
	}

	s.client.ZRemRangeByRank(ctx, userRecKey, 0, -101)

	return nil
}

func (s *RedisStore) GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userRecKey := fmt.Sprintf(KeyUserRecords, userID)

	recIDs, err := s.client.ZRevRange(ctx, userRecKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get record IDs: %v", err)
	}

	var records []*models.GameRecord
	for _, recID := range recIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyGameRecord, recID)).Result()
		if err != nil {
			continue
		}

		var rec models.GameRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}

		records = append(records, &rec)
	}

	return records, nil
}

func (s *RedisStore) SaveCrashPoint(ctx context.Context, roundID string, crashPoint float64) error {
	entry := models.CrashHistoryEntry{
		RoundID:    roundID,
		CrashPoint: crashPoint,
		CreatedAt:  time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal crash entry: %v", err)
	}

	if err := s.client.LPush(ctx, KeyCrashHistory, data).Err(); err != nil {
		return fmt.Errorf("failed to push crash entry: %v", err)
	}

	return s.client.LTrim(ctx, KeyCrashHistory, 0, CrashHistoryLength-1).Err()
}

func (s *RedisStore) GetCrashHistory(ctx context.Context, limit int64) ([]*models.CrashHistoryEntry, error) {
	if limit <= 0 || limit > CrashHistoryLength {
		limit = CrashHistoryLength
	}

	items, err := s.client.LRange(ctx, KeyCrashHistory, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get crash history: %v", err)
	}

	var entries []*models.CrashHistoryEntry
	for _, item := range items {
		var entry models.CrashHistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

func (s *RedisStore) NextRoundNonce(ctx context.Context) (int64, error) {
	nonce, err := s.client.Incr(ctx, KeyRoundNonce).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance round nonce: %v", err)
	}
	return nonce, nil
}

func (s *RedisStore) StoreUserSession(ctx context.Context, session *models.UserSession) error {
	key := fmt.Sprintf(KeyUserSession, session.UserID, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, TTLUserSession).Err()
}

func (s *RedisStore) GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}

	session.LastAccessed = time.Now()
	updatedData, _ := json.Marshal(session)
	s.client.Set(ctx, key, updatedData, TTLUserSession)

	return &session, nil
}

func (s *RedisStore) DeleteUserSession(ctx context.Context, userID int64, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) StoreUser(ctx context.Context, user *models.User) error {
	key := fmt.Sprintf(KeyUserInfo, user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, TTLUserInfo).Err()
}

func (s *RedisStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	key := fmt.Sprintf(KeyUserInfo, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var user models.User
	err = json.Unmarshal([]byte(data), &user)
	return &user, err
}

func (s *RedisStore) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisStore) DeleteWallet(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyWallet, userID)).Err()
}
