package walletcore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	_ UserRegistry   = (*GormUserRegistry)(nil)
	_ ChallengeStore = (*GormChallengeStore)(nil)
)

// WalletUser is a registered identity: an address plus the optional email
// it was linked to at registration time.
type WalletUser struct {
	ID        uint      `gorm:"primaryKey"`
	Address   string    `gorm:"column:address;uniqueIndex;not null"`
	Email     string    `gorm:"column:email"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (WalletUser) TableName() string {
	return "wallet_users"
}

// GormUserRegistry persists registered users in the relational store.
type GormUserRegistry struct {
	db *gorm.DB
}

func NewGormUserRegistry(db *gorm.DB) *GormUserRegistry {
	return &GormUserRegistry{db: db}
}

// IsRegistered reports whether the address belongs to a known user.
// Addresses are stored checksum-formatted, so lookups normalize first.
func (r *GormUserRegistry) IsRegistered(ctx context.Context, address common.Address) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&WalletUser{}).
		Where("address = ?", address.Hex()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count wallet users")
	}
	return count > 0, nil
}

// Register stores a new user. Registering an existing address refreshes its
// email instead of failing.
func (r *GormUserRegistry) Register(ctx context.Context, address common.Address, email string) error {
	user := WalletUser{Address: address.Hex(), Email: email}
	err := r.db.WithContext(ctx).
		Where("address = ?", user.Address).
		Assign(WalletUser{Email: email}).
		FirstOrCreate(&user).Error
	return errors.Wrap(err, "register wallet user")
}

// WalletChallenge is the challenge last issued for a session, serialized so
// a restarted verifier can still consume it.
type WalletChallenge struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"column:session_id;uniqueIndex;not null"`
	Payload   string    `gorm:"column:payload;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (WalletChallenge) TableName() string {
	return "wallet_challenges"
}

// GormChallengeStore persists issued challenges in the relational store.
// A second Put for the same session replaces the stored challenge.
type GormChallengeStore struct {
	db *gorm.DB
}

func NewGormChallengeStore(db *gorm.DB) *GormChallengeStore {
	return &GormChallengeStore{db: db}
}

func (s *GormChallengeStore) Put(sessionID string, challenge Challenge) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return errors.Wrap(err, "encode challenge")
	}
	row := WalletChallenge{SessionID: sessionID, Payload: string(payload)}
	err = s.db.
		Where("session_id = ?", sessionID).
		Assign(WalletChallenge{Payload: row.Payload}).
		FirstOrCreate(&row).Error
	return errors.Wrap(err, "store challenge")
}

func (s *GormChallengeStore) Get(sessionID string) (Challenge, bool, error) {
	var row WalletChallenge
	err := s.db.Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, errors.Wrap(err, "load challenge")
	}

	var challenge Challenge
	if err := json.Unmarshal([]byte(row.Payload), &challenge); err != nil {
		return Challenge{}, false, errors.Wrap(err, "decode challenge")
	}
	return challenge, true, nil
}

func (s *GormChallengeStore) Delete(sessionID string) error {
	err := s.db.Where("session_id = ?", sessionID).Delete(&WalletChallenge{}).Error
	return errors.Wrap(err, "delete challenge")
}
