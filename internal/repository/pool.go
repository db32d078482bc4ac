package repository

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// FindPool returns the pool or nil when it has not been indexed.
func (t *Tx) FindPool(poolId uint64) (*model.PoolModel, error) {
	var p model.PoolModel
	ok, err := t.first(&p, "pool_id = ?", poolId)
	if !ok || err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePool upserts by pool_id.
func (t *Tx) SavePool(p *model.PoolModel) error {
	return t.save(p, p.Id, "pool_id")
}

// ListPools returns every pool ordered by id.
func (t *Tx) ListPools() ([]model.PoolModel, error) {
	var pools []model.PoolModel
	err := t.db.Order("pool_id ASC").Find(&pools).Error
	return pools, err
}

// ListPoolsForAddress returns pools where address is the admin or has a member row.
func (t *Tx) ListPoolsForAddress(address string) ([]model.PoolModel, error) {
	var pools []model.PoolModel
	sub := t.db.Model(&model.MemberModel{}).Select("pool_id").Where("address = ?", address)
	err := t.db.Where("admin = ? OR pool_id IN (?)", address, sub).
		Order("pool_id ASC").
		Find(&pools).Error
	return pools, err
}

// UpsertRotationEntry writes one position of the rotation order.
func (t *Tx) UpsertRotationEntry(poolId uint64, position int, member string) error {
	return t.upsert(&model.RotationOrderEntryModel{
		PoolId:        poolId,
		Position:      position,
		MemberAddress: member,
	}, "pool_id", "position")
}

// ListRotation returns the first size positions of the pool's rotation order.
func (t *Tx) ListRotation(poolId uint64, size int) ([]model.RotationOrderEntryModel, error) {
	var entries []model.RotationOrderEntryModel
	err := t.db.Where("pool_id = ? AND position < ?", poolId, size).
		Order("position ASC").
		Find(&entries).Error
	return entries, err
}

// FindWinner returns the winner row for (pool, round) or nil.
func (t *Tx) FindWinner(poolId, round uint64) (*model.WinnerHistoryModel, error) {
	var w model.WinnerHistoryModel
	ok, err := t.first(&w, "pool_id = ? AND round = ?", poolId, round)
	if !ok || err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWinner upserts by (pool_id, round).
func (t *Tx) SaveWinner(w *model.WinnerHistoryModel) error {
	return t.save(w, w.Id, "pool_id", "round")
}

// ListWinners returns the pool's round history ordered by round.
func (t *Tx) ListWinners(poolId uint64) ([]model.WinnerHistoryModel, error) {
	var winners []model.WinnerHistoryModel
	err := t.db.Where("pool_id = ?", poolId).Order("round ASC").Find(&winners).Error
	return winners, err
}

// LatestUnclaimedWin returns the highest-round unclaimed row won by winner, or nil.
func (t *Tx) LatestUnclaimedWin(poolId uint64, winner string) (*model.WinnerHistoryModel, error) {
	var w model.WinnerHistoryModel
	err := t.db.Where("pool_id = ? AND winner_address = ? AND claimed_at IS NULL", poolId, winner).
		Order("round DESC").
		Limit(1).
		Find(&w).Error
	if err != nil || w.Id == 0 {
		return nil, err
	}
	return &w, nil
}

// ListPayoutsTo returns claimed winner rows paid to address.
func (t *Tx) ListPayoutsTo(address string) ([]model.WinnerHistoryModel, error) {
	var winners []model.WinnerHistoryModel
	err := t.db.Where("winner_address = ? AND claimed_at IS NOT NULL", address).Find(&winners).Error
	return winners, err
}
