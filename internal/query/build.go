package query

import (
	"math/big"
	"sort"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/model"
	"github.com/shopspring/decimal"
)

// PoolRecords is everything known about one pool in plain row form. Both read
// paths fill it and hand it to BuildSummary / BuildDetail.
type PoolRecords struct {
	Pool        model.PoolModel
	Members     []model.MemberModel // join order
	Winners     []model.WinnerHistoryModel
	Vouches     []model.VouchModel // ledger order
	Rotation    []string
	Contributed map[string]bool // addresses that contributed to the current round
}

// BuildSummary computes the derived list fields of one pool for user.
func BuildSummary(r *PoolRecords, user string) PoolSummary {
	p := r.Pool
	s := PoolSummary{
		PoolId:             p.PoolId,
		PoolAddress:        p.PoolAddress,
		Name:               p.Name,
		Category:           p.Category,
		Admin:              p.Admin,
		ContributionAmount: p.ContributionAmount.String(),
		SecurityDeposit:    p.SecurityDeposit.String(),
		MaxMembers:         p.MaxMembers,
		PaymentDay:         p.PaymentDay,
		VouchRequired:      p.VouchRequired,
		RotationPeriod:     p.RotationPeriod,
		Status:             string(p.Status),
		CurrentRound:       p.CurrentRound,
		TotalRounds:        p.TotalRounds,
		CreatedAt:          p.CreatedAt.UTC(),
		IsAdmin:            user != "" && user == p.Admin,
	}

	for _, m := range r.Members {
		if m.Status.Counted() {
			s.MemberCount++
		}
		if user != "" && m.Address == user && m.Status != model.MemberStatusNone {
			s.IsMember = true
			s.MemberStatus = string(m.Status)
		}
	}
	s.HasContributed = user != "" && r.Contributed[user]
	return s
}

// BuildDetail computes the full pool view for user.
func BuildDetail(r *PoolRecords, user string) *PoolDetail {
	d := &PoolDetail{
		PoolSummary:     BuildSummary(r, user),
		Members:         []MemberView{},
		PendingMembers:  []MemberView{},
		RoundHistory:    []RoundView{},
		RotationOrder:   []string{},
		VouchesReceived: []VouchesReceived{},
	}

	for _, m := range r.Members {
		if m.Status == model.MemberStatusNone {
			continue
		}
		view := memberView(m, r.Contributed[m.Address])
		d.Members = append(d.Members, view)
		if m.Status == model.MemberStatusPending {
			d.PendingMembers = append(d.PendingMembers, view)
		}
		if user != "" && m.Address == user {
			own := view
			d.Membership = &own
		}
	}

	for _, w := range r.Winners {
		d.RoundHistory = append(d.RoundHistory, RoundView{
			Round:        w.Round,
			Winner:       w.WinnerAddress,
			PayoutAmount: w.PayoutAmount.String(),
			ClaimedAt:    utc(w.ClaimedAt),
		})
	}
	sort.SliceStable(d.RoundHistory, func(i, j int) bool { return d.RoundHistory[i].Round < d.RoundHistory[j].Round })

	d.RotationOrder = append(d.RotationOrder, r.Rotation...)
	d.VouchesReceived = groupVouches(r.Vouches)
	return d
}

func memberView(m model.MemberModel, contributed bool) MemberView {
	return MemberView{
		Address:          m.Address,
		Status:           string(m.Status),
		LockedStake:      m.LockedStake.String(),
		LiquidBalance:    m.LiquidBalance.String(),
		JoinedAt:         utc(m.JoinedAt),
		HasClaimedPayout: m.HasClaimedPayout,
		HasContributed:   contributed,
	}
}

// groupVouches groups vouches by vouchee in order of first appearance.
func groupVouches(vouches []model.VouchModel) []VouchesReceived {
	groups := []VouchesReceived{}
	index := make(map[string]int)
	outstanding := make(map[string]decimal.Decimal)

	for _, v := range vouches {
		i, ok := index[v.Vouchee]
		if !ok {
			i = len(groups)
			index[v.Vouchee] = i
			groups = append(groups, VouchesReceived{Vouchee: v.Vouchee, Vouches: []VouchView{}})
		}
		groups[i].Vouches = append(groups[i].Vouches, VouchView{
			Voucher:  v.Voucher,
			Amount:   v.Amount.String(),
			Returned: v.Returned,
		})
		if !v.Returned {
			outstanding[v.Vouchee] = outstanding[v.Vouchee].Add(v.Amount)
		}
	}
	for i := range groups {
		groups[i].Outstanding = outstanding[groups[i].Vouchee].String()
	}
	return groups
}

// BuildDebts converts debt tokens ordered by numeric token id.
func BuildDebts(tokens []model.DebtTokenModel) []DebtView {
	views := make([]DebtView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, DebtView{
			TokenId:         t.TokenId,
			Owner:           t.Owner,
			Member:          t.Member,
			PoolId:          t.PoolId,
			DefaultedAmount: t.DefaultedAmount.String(),
			MintedAt:        utc(t.MintedAt),
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, _ := new(big.Int).SetString(views[i].TokenId, 10)
		b, _ := new(big.Int).SetString(views[j].TokenId, 10)
		if a == nil || b == nil {
			return views[i].TokenId < views[j].TokenId
		}
		return a.Cmp(b) < 0
	})
	return views
}

func ContributionTx(c model.ContributionModel) TxRecord {
	return TxRecord{
		Kind:      TxContribution,
		PoolId:    c.PoolId,
		Round:     c.Round,
		Amount:    c.Amount.String(),
		TxHash:    c.TxHash,
		BlockNum:  c.BlockNum,
		LogIndex:  c.LogIndex,
		Timestamp: c.Timestamp.UTC(),
	}
}

func PayoutTx(w model.WinnerHistoryModel) TxRecord {
	r := TxRecord{
		Kind:     TxPayout,
		PoolId:   w.PoolId,
		Amount:   w.PayoutAmount.String(),
		TxHash:   w.ClaimTxHash,
		BlockNum: w.ClaimBlockNum,
		LogIndex: w.ClaimLogIndex,
	}
	if w.ClaimedAt != nil {
		r.Timestamp = w.ClaimedAt.UTC()
	}
	return r
}

func WithdrawalTx(w model.WithdrawalModel) TxRecord {
	detail := "liquid"
	if w.WithdrawType == model.WithdrawTypeStake {
		detail = "stake"
	}
	return TxRecord{
		Kind:      TxWithdrawal,
		PoolId:    w.PoolId,
		Amount:    w.Amount.String(),
		Detail:    detail,
		TxHash:    w.TxHash,
		BlockNum:  w.BlockNum,
		LogIndex:  w.LogIndex,
		Timestamp: w.Timestamp.UTC(),
	}
}

func TopUpTx(t model.TopUpModel) TxRecord {
	return TxRecord{
		Kind:      TxTopUp,
		Amount:    t.Amount.String(),
		TxHash:    t.TxHash,
		BlockNum:  t.BlockNum,
		LogIndex:  t.LogIndex,
		Timestamp: t.Timestamp.UTC(),
	}
}

func FaucetTx(f model.FaucetClaimModel) TxRecord {
	return TxRecord{
		Kind:      TxFaucet,
		Amount:    f.Amount.String(),
		TxHash:    f.TxHash,
		BlockNum:  f.BlockNum,
		LogIndex:  f.LogIndex,
		Timestamp: f.Timestamp.UTC(),
	}
}

// SortTransactions orders records newest first by chain position.
func SortTransactions(records []TxRecord) []TxRecord {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].BlockNum != records[j].BlockNum {
			return records[i].BlockNum > records[j].BlockNum
		}
		return records[i].LogIndex > records[j].LogIndex
	})
	return records
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
