package repository

import (
	"github.com/Howters/ArisanOnChain-sub000/internal/model"
)

// FindDebtToken returns the token or nil.
func (t *Tx) FindDebtToken(tokenId string) (*model.DebtTokenModel, error) {
	var d model.DebtTokenModel
	ok, err := t.first(&d, "token_id = ?", tokenId)
	if !ok || err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDebtToken upserts by token_id.
func (t *Tx) SaveDebtToken(d *model.DebtTokenModel) error {
	return t.save(d, d.Id, "token_id")
}

// ListDebtTokensOwnedBy returns the tokens currently owned by owner.
func (t *Tx) ListDebtTokensOwnedBy(owner string) ([]model.DebtTokenModel, error) {
	var tokens []model.DebtTokenModel
	err := t.db.Where("owner = ?", owner).Order("id ASC").Find(&tokens).Error
	return tokens, err
}

// FindReputation returns the reputation row or nil.
func (t *Tx) FindReputation(address string) (*model.ReputationModel, error) {
	var r model.ReputationModel
	ok, err := t.first(&r, "address = ?", address)
	if !ok || err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveReputation upserts by address.
func (t *Tx) SaveReputation(r *model.ReputationModel) error {
	return t.save(r, r.Id, "address")
}

// InsertTopUp is idempotent on (tx_hash, log_index).
func (t *Tx) InsertTopUp(r *model.TopUpModel) (bool, error) {
	return t.insertOnce(r, "tx_hash", "log_index")
}

// InsertFaucetClaim is idempotent on (tx_hash, log_index).
func (t *Tx) InsertFaucetClaim(r *model.FaucetClaimModel) (bool, error) {
	return t.insertOnce(r, "tx_hash", "log_index")
}

// ListTopUpsBy returns every top-up of user.
func (t *Tx) ListTopUpsBy(user string) ([]model.TopUpModel, error) {
	var rows []model.TopUpModel
	err := t.db.Where("user_address = ?", user).Find(&rows).Error
	return rows, err
}

// ListFaucetClaimsBy returns every faucet claim of user.
func (t *Tx) ListFaucetClaimsBy(user string) ([]model.FaucetClaimModel, error) {
	var rows []model.FaucetClaimModel
	err := t.db.Where("user_address = ?", user).Find(&rows).Error
	return rows, err
}
