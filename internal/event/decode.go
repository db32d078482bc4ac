package event

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownEvent is returned for logs whose (contract, event) has no decoder.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformed is returned when the arguments do not match the expected shape.
	ErrMalformed = errors.New("malformed event")
)

type decodeFunc func(r *argReader) Event

var decoders = map[string]map[string]decodeFunc{
	chain.Factory: {
		"PoolCreated": func(r *argReader) Event {
			return PoolCreated{
				PoolId:             r.u64("poolId"),
				PoolAddress:        r.address("poolAddress"),
				Admin:              r.address("admin"),
				ContributionAmount: r.uint256("contributionAmount"),
				SecurityDeposit:    r.uint256("securityDeposit"),
				MaxMembers:         r.u64("maxMembers"),
				PaymentDay:         r.u64("paymentDay"),
				VouchRequired:      r.u64("vouchRequired"),
				RotationPeriod:     r.u64("rotationPeriod"),
				PoolName:           r.str("poolName"),
				Category:           r.str("category"),
			}
		},
	},
	chain.Pool: {
		"MemberRequested": func(r *argReader) Event {
			return MemberRequested{PoolRef: r.pool(), Member: r.address("member")}
		},
		"MemberApproved": func(r *argReader) Event {
			return MemberApproved{PoolRef: r.pool(), Member: r.address("member")}
		},
		"MemberRemoved": func(r *argReader) Event {
			return MemberRemoved{PoolRef: r.pool(), Member: r.address("member")}
		},
		"SecurityDepositLocked": func(r *argReader) Event {
			return SecurityDepositLocked{PoolRef: r.pool(), Member: r.address("member"), Amount: r.uint256("amount")}
		},
		"ContributionMade": func(r *argReader) Event {
			return ContributionMade{PoolRef: r.pool(), Member: r.address("member"), Amount: r.uint256("amount"), Round: r.u64("round")}
		},
		"MemberVouched": func(r *argReader) Event {
			return MemberVouched{PoolRef: r.pool(), Voucher: r.address("voucher"), Vouchee: r.address("vouchee"), Amount: r.uint256("amount")}
		},
		"VouchReturned": func(r *argReader) Event {
			return VouchReturned{PoolRef: r.pool(), Voucher: r.address("voucher"), Vouchee: r.address("vouchee"), Amount: r.uint256("amount")}
		},
		"MemberReportedDefault": func(r *argReader) Event {
			return MemberReportedDefault{PoolRef: r.pool(), Member: r.address("member"), ReportedBy: r.address("reportedBy")}
		},
		"DefaultResolved": func(r *argReader) Event {
			return DefaultResolved{PoolRef: r.pool(), Member: r.address("member"), RecoveredAmount: r.uint256("recoveredAmount")}
		},
		"WinnerDetermined": func(r *argReader) Event {
			return WinnerDetermined{PoolRef: r.pool(), Round: r.u64("round"), Winner: r.address("winner")}
		},
		"PayoutClaimed": func(r *argReader) Event {
			return PayoutClaimed{PoolRef: r.pool(), Winner: r.address("winner"), Amount: r.uint256("amount"), PlatformFee: r.uint256("platformFee")}
		},
		"PoolActivated": func(r *argReader) Event {
			return PoolActivated{PoolRef: r.pool(), TotalRounds: r.u64("totalRounds")}
		},
		"PoolCompleted": func(r *argReader) Event {
			return PoolCompleted{PoolRef: r.pool()}
		},
		"PoolCancelled": func(r *argReader) Event {
			return PoolCancelled{PoolRef: r.pool()}
		},
		"RotationOrderSet": func(r *argReader) Event {
			return RotationOrderSet{PoolRef: r.pool(), Order: r.addresses("order")}
		},
		"RoundStarted": func(r *argReader) Event {
			return RoundStarted{PoolRef: r.pool(), Round: r.u64("round"), Deadline: r.u64("deadline")}
		},
		"FundsWithdrawn": func(r *argReader) Event {
			return FundsWithdrawn{PoolRef: r.pool(), Member: r.address("member"), Amount: r.uint256("amount"), WithdrawType: r.u8("withdrawType")}
		},
	},
	chain.DebtNFT: {
		"DebtNFTMinted": func(r *argReader) Event {
			return DebtNFTMinted{Member: r.address("member"), TokenId: r.uint256("tokenId"), PoolId: r.u64("poolId"), DefaultedAmount: r.uint256("defaultedAmount")}
		},
		"Transfer": func(r *argReader) Event {
			return Transfer{From: r.address("from"), To: r.address("to"), TokenId: r.uint256("tokenId")}
		},
	},
	chain.ReputationRegistry: {
		"PoolCompletionRecorded": func(r *argReader) Event {
			return PoolCompletionRecorded{User: r.address("user"), TotalCompleted: r.u64("totalCompleted")}
		},
		"DefaultRecorded": func(r *argReader) Event {
			return DefaultRecorded{User: r.address("user"), TotalDefaults: r.u64("totalDefaults")}
		},
	},
	chain.Token: {
		"TopUpCompleted": func(r *argReader) Event {
			return TopUpCompleted{User: r.address("user"), Amount: r.uint256("amount")}
		},
		"FaucetClaimed": func(r *argReader) Event {
			return FaucetClaimed{User: r.address("user"), Amount: r.uint256("amount")}
		},
	},
}

// Decode turns an envelope into its typed event. Errors wrap ErrUnknownEvent or ErrMalformed.
func Decode(env *Envelope) (Event, error) {
	decode, ok := decoders[env.Contract][env.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownEvent, env.Contract, env.Name)
	}
	if env.Err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env, env.Err)
	}

	r := &argReader{args: env.Args}
	ev := decode(r)
	if r.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env, r.err)
	}
	return ev, nil
}

// Supported reports whether a decoder exists for (contract, name).
func Supported(contract, name string) bool {
	_, ok := decoders[contract][name]
	return ok
}

// argReader reads typed arguments and keeps the first failure.
type argReader struct {
	args map[string]interface{}
	err  error
}

func (r *argReader) get(name string) (interface{}, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.args[name]
	if !ok {
		r.err = fmt.Errorf("missing argument %q", name)
		return nil, false
	}
	return v, true
}

func (r *argReader) fail(name string, v interface{}, want string) {
	r.err = fmt.Errorf("argument %q is %T, want %s", name, v, want)
}

func (r *argReader) uint256(name string) *big.Int {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		r.fail(name, v, "uint256")
		return nil
	}
	if b.Sign() < 0 {
		r.err = fmt.Errorf("argument %q is negative", name)
		return nil
	}
	return b
}

func (r *argReader) u64(name string) uint64 {
	b := r.uint256(name)
	if b == nil {
		return 0
	}
	if !b.IsUint64() {
		r.err = fmt.Errorf("argument %q overflows uint64: %s", name, b)
		return 0
	}
	return b.Uint64()
}

func (r *argReader) u8(name string) uint8 {
	v, ok := r.get(name)
	if !ok {
		return 0
	}
	u, ok := v.(uint8)
	if !ok {
		r.fail(name, v, "uint8")
	}
	return u
}

func (r *argReader) address(name string) common.Address {
	v, ok := r.get(name)
	if !ok {
		return common.Address{}
	}
	a, ok := v.(common.Address)
	if !ok {
		r.fail(name, v, "address")
	}
	return a
}

func (r *argReader) addresses(name string) []common.Address {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	a, ok := v.([]common.Address)
	if !ok {
		r.fail(name, v, "address[]")
	}
	return a
}

func (r *argReader) str(name string) string {
	v, ok := r.get(name)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(name, v, "string")
	}
	return s
}

func (r *argReader) pool() PoolRef {
	return PoolRef{PoolId: r.u64("poolId")}
}
