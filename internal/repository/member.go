package repository

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// FindMember returns the member row or nil.
func (t *Tx) FindMember(poolId uint64, address string) (*model.MemberModel, error) {
	var m model.MemberModel
	ok, err := t.first(&m, "pool_id = ? AND address = ?", poolId, address)
	if !ok || err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMember upserts by (pool_id, address).
func (t *Tx) SaveMember(m *model.MemberModel) error {
	return t.save(m, m.Id, "pool_id", "address")
}

// ListMembers returns every member row of the pool in join order.
func (t *Tx) ListMembers(poolId uint64) ([]model.MemberModel, error) {
	var members []model.MemberModel
	err := t.db.Where("pool_id = ?", poolId).Order("id ASC").Find(&members).Error
	return members, err
}

// InsertContribution is idempotent on (tx_hash, pool_id, address, round).
func (t *Tx) InsertContribution(c *model.ContributionModel) (bool, error) {
	return t.insertOnce(c, "tx_hash", "pool_id", "address", "round")
}

// HasContribution reports whether address contributed to the round.
func (t *Tx) HasContribution(poolId, round uint64, address string) (bool, error) {
	var count int64
	err := t.db.Model(&model.ContributionModel{}).
		Where("pool_id = ? AND round = ? AND address = ?", poolId, round, address).
		Count(&count).Error
	return count > 0, err
}

// ContributorsOf returns the addresses that contributed to the round.
func (t *Tx) ContributorsOf(poolId, round uint64) ([]string, error) {
	var addrs []string
	err := t.db.Model(&model.ContributionModel{}).
		Where("pool_id = ? AND round = ?", poolId, round).
		Distinct().
		Pluck("address", &addrs).Error
	return addrs, err
}

// ListContributionsBy returns every contribution made by address.
func (t *Tx) ListContributionsBy(address string) ([]model.ContributionModel, error) {
	var rows []model.ContributionModel
	err := t.db.Where("address = ?", address).Find(&rows).Error
	return rows, err
}

// InsertVouch appends a vouch; replays of the same log are ignored.
func (t *Tx) InsertVouch(v *model.VouchModel) (bool, error) {
	return t.insertOnce(v, "pool_id", "voucher", "vouchee", "vouched_at", "block_num", "log_index")
}

// OutstandingVouches returns unreturned vouches for the pair, oldest first.
func (t *Tx) OutstandingVouches(poolId uint64, voucher, vouchee string) ([]model.VouchModel, error) {
	var vouches []model.VouchModel
	err := t.db.Where("pool_id = ? AND voucher = ? AND vouchee = ? AND returned = ?", poolId, voucher, vouchee, false).
		Order("block_num ASC").
		Order("log_index ASC").
		Find(&vouches).Error
	return vouches, err
}

// SaveVouch writes a loaded vouch back.
func (t *Tx) SaveVouch(v *model.VouchModel) error {
	return t.save(v, v.Id, "pool_id", "voucher", "vouchee", "vouched_at", "block_num", "log_index")
}

// ListVouches returns the pool's vouches in ledger order.
func (t *Tx) ListVouches(poolId uint64) ([]model.VouchModel, error) {
	var vouches []model.VouchModel
	err := t.db.Where("pool_id = ?", poolId).
		Order("block_num ASC").
		Order("log_index ASC").
		Find(&vouches).Error
	return vouches, err
}

// InsertDefaultRecord upserts by (pool_id, address, resolved_at).
func (t *Tx) InsertDefaultRecord(r *model.DefaultRecordModel) error {
	return t.upsert(r, "pool_id", "address", "resolved_at")
}

// LatestUnlinkedDefault returns the newest default record without a debt token.
func (t *Tx) LatestUnlinkedDefault(poolId uint64, address string) (*model.DefaultRecordModel, error) {
	var r model.DefaultRecordModel
	err := t.db.Where("pool_id = ? AND address = ? AND debt_nft_id IS NULL", poolId, address).
		Order("block_num DESC").
		Order("log_index DESC").
		Limit(1).
		Find(&r).Error
	if err != nil || r.Id == 0 {
		return nil, err
	}
	return &r, nil
}

// SaveDefaultRecord writes a loaded default record back.
func (t *Tx) SaveDefaultRecord(r *model.DefaultRecordModel) error {
	return t.save(r, r.Id, "pool_id", "address", "resolved_at")
}

// InsertWithdrawal is idempotent on (tx_hash, log_index).
func (t *Tx) InsertWithdrawal(w *model.WithdrawalModel) (bool, error) {
	return t.insertOnce(w, "tx_hash", "log_index")
}

// ListWithdrawalsBy returns every withdrawal made by address.
func (t *Tx) ListWithdrawalsBy(address string) ([]model.WithdrawalModel, error) {
	var rows []model.WithdrawalModel
	err := t.db.Where("address = ?", address).Find(&rows).Error
	return rows, err
}
