package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/adapters/metrics"
	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/domain/settlement"
	"github.com/meterpay/meterpay/ports"
)

// SettlementService drains owed debt from buyer credits into seller
// proceeds, net of the network fee, under each buyer's approval cap.
type SettlementService struct {
	ledger   ports.Ledger
	listings ports.ListingStore
	token    ports.RewardToken
	transfer ports.ValueTransfer
	audit    ports.AuditLog
	params   *ParamsHolder
	locks    *ListingLocks
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// SettlementDeps contains dependencies for SettlementService.
type SettlementDeps struct {
	Ledger   ports.Ledger
	Listings ports.ListingStore
	Token    ports.RewardToken
	Transfer ports.ValueTransfer
	Audit    ports.AuditLog
	Params   *ParamsHolder
	Locks    *ListingLocks
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewSettlementService creates a new settlement service.
func NewSettlementService(deps SettlementDeps) *SettlementService {
	return &SettlementService{
		ledger:   deps.Ledger,
		listings: deps.Listings,
		token:    deps.Token,
		transfer: deps.Transfer,
		audit:    deps.Audit,
		params:   deps.Params,
		locks:    deps.Locks,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// BuyerSpend is the per-buyer outcome of one settlement call.
type BuyerSpend struct {
	Buyer            ledger.Address
	Spent            money.Amount
	Overdrafted      bool
	ExceededApproval bool
}

// Result is the aggregate outcome of one settlement call. A zero-total
// settlement is a successful Result with no transfers.
type Result struct {
	ListingID    string
	Seller       ledger.Address
	TotalSettled money.Amount
	Fee          money.Amount
	Payout       money.Amount
	Reward       money.Amount
	BuyersPaid   int
	Spends       []BuyerSpend
}

// settleOne settles a single buyer inside tx:
// compute the spendable amount, classify the binding constraint, move
// balances and refresh the approval window. Classification is written
// even when nothing is spendable.
func (s *SettlementService) settleOne(ctx context.Context, tx ports.LedgerTx, p Params, listingID string, buyer ledger.Address) (BuyerSpend, error) {
	now := s.clock.Now()

	owed, err := tx.Owed(ctx, listingID, buyer)
	if err != nil {
		return BuyerSpend{}, err
	}
	credits, err := tx.CreditBalance(ctx, buyer)
	if err != nil {
		return BuyerSpend{}, err
	}
	appr, err := tx.Approval(ctx, listingID, buyer)
	if err != nil {
		return BuyerSpend{}, err
	}
	capLimit := approval.EffectiveCap(appr, p.DefaultWindow, now)

	out := settlement.Classify(owed, credits, capLimit)

	stat, err := tx.BuyerStat(ctx, listingID, buyer)
	if err != nil {
		return BuyerSpend{}, err
	}
	if out.Overdrafted {
		stat.Overdrafted = true
		stat.OverdraftCount++
	} else {
		stat.Overdrafted = false
		if out.ExceededApproval {
			stat.LifetimeExceededApproval++
		}
	}

	if out.Spendable > 0 {
		if err := tx.SubCredits(ctx, buyer, out.Spendable); err != nil {
			return BuyerSpend{}, err
		}
		used, err := money.Add(stat.LifetimeCreditsUsed, out.Spendable)
		if err != nil {
			return BuyerSpend{}, err
		}
		stat.LifetimeCreditsUsed = used

		// Removes the buyer from the working set when fully paid.
		if err := tx.SubOwed(ctx, listingID, buyer, out.Spendable); err != nil {
			return BuyerSpend{}, err
		}

		// Close the spending window just used, whether the previous
		// anchor was explicit or the unset default.
		anchor := now
		appr.Anchor = &anchor
		if err := tx.SetApproval(ctx, listingID, buyer, appr); err != nil {
			return BuyerSpend{}, err
		}
	}

	if err := tx.SetBuyerStat(ctx, listingID, buyer, stat); err != nil {
		return BuyerSpend{}, err
	}

	return BuyerSpend{
		Buyer:            buyer,
		Spent:            out.Spendable,
		Overdrafted:      out.Overdrafted,
		ExceededApproval: out.ExceededApproval,
	}, nil
}

// SettleBuyer settles a single buyer's debt to the listing and pays the
// seller. Callable by anyone.
func (s *SettlementService) SettleBuyer(ctx context.Context, listingID string, buyer ledger.Address) (Result, error) {
	return s.settle(ctx, listingID, &buyer)
}

// SettleListing settles every buyer in the listing's working set,
// aggregating all spends into a single fee computation, one seller payout
// and one reward batch. Callable by anyone.
func (s *SettlementService) SettleListing(ctx context.Context, listingID string) (Result, error) {
	return s.settle(ctx, listingID, nil)
}

func (s *SettlementService) settle(ctx context.Context, listingID string, only *ledger.Address) (Result, error) {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return Result{}, ledger.ErrListingNotFound
	}
	p := s.params.Get()

	unlock := s.locks.Lock(listingID)
	defer unlock()

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	var buyers []ledger.Address
	if only != nil {
		buyers = []ledger.Address{*only}
	} else {
		// Snapshot: settleOne prunes fully paid buyers from the
		// working set mid-loop, so the live set must not be ranged.
		buyers, err = tx.WorkingSet(ctx, listingID)
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{ListingID: listingID, Seller: listing.Seller}
	for _, buyer := range buyers {
		spend, err := s.settleOne(ctx, tx, p, listingID, buyer)
		if err != nil {
			return Result{}, err
		}
		res.Spends = append(res.Spends, spend)
		if spend.Spent == 0 {
			continue
		}
		total, err := money.Add(res.TotalSettled, spend.Spent)
		if err != nil {
			return Result{}, err
		}
		res.TotalSettled = total
		res.BuyersPaid++
	}

	if res.TotalSettled > 0 {
		res.Payout, res.Fee = p.FeeRate.Split(res.TotalSettled)
		if err := tx.AddFeePool(ctx, res.Fee); err != nil {
			return Result{}, err
		}
		if err := tx.SubNative(ctx, res.Payout); err != nil {
			return Result{}, err
		}

		var reward money.Amount
		if p.RewardEnabled && p.RewardAmount > 0 {
			reward, err = money.Mul(p.RewardAmount, uint64(res.BuyersPaid))
			if err != nil {
				return Result{}, err
			}
		}

		// The irrevocable leg goes last: if the payout transfer fails
		// the deferred rollback discards every ledger mutation above.
		if res.Payout > 0 {
			if err := s.transfer.Send(ctx, listing.Seller, res.Payout); err != nil {
				return Result{}, fmt.Errorf("seller payout: %w", err)
			}
		}

		// The payout cannot be recalled, so a mint failure past this
		// point is logged rather than aborting the settlement.
		if reward > 0 {
			if err := s.token.Mint(ctx, listing.Seller, reward); err != nil {
				s.logger.Error().Err(err).Str("listing_id", listingID).Msg("reward mint failed")
			} else {
				res.Reward = reward
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit settlement: %w", err)
	}

	s.record(ctx, res)
	return res, nil
}

// record emits audit events and metrics for a committed settlement.
func (s *SettlementService) record(ctx context.Context, res Result) {
	now := s.clock.Now()
	for _, spend := range res.Spends {
		if spend.Spent == 0 {
			continue
		}
		rec := event.CreditsSpent(s.idGen.New(), now, res.ListingID, spend.Buyer, spend.Spent, spend.Overdrafted, spend.ExceededApproval)
		if err := s.audit.Append(ctx, rec); err != nil {
			s.logger.Error().Err(err).Msg("audit append failed")
		}
	}
	if res.TotalSettled > 0 {
		rec := event.SellerPaid(s.idGen.New(), now, res.ListingID, res.Seller, res.Payout, res.Fee, res.Reward)
		if err := s.audit.Append(ctx, rec); err != nil {
			s.logger.Error().Err(err).Msg("audit append failed")
		}
	}

	if s.metrics != nil {
		result := "settled"
		if res.TotalSettled == 0 {
			result = "noop"
		}
		s.metrics.Settlements.WithLabelValues(result).Inc()
		s.metrics.SettledAmount.Add(float64(res.TotalSettled))
		s.metrics.FeesCollected.Add(float64(res.Fee))
		s.metrics.RewardsMinted.Add(float64(res.Reward))
		s.metrics.BatchSize.Observe(float64(len(res.Spends)))
		for _, spend := range res.Spends {
			if spend.Overdrafted {
				s.metrics.Overdrafts.Inc()
			}
			if spend.ExceededApproval {
				s.metrics.ExceededApprovals.Inc()
			}
		}
	}

	s.logger.Info().
		Str("listing", res.ListingID).
		Str("seller", string(res.Seller)).
		Uint64("total", res.TotalSettled).
		Uint64("fee", res.Fee).
		Uint64("payout", res.Payout).
		Int("buyers_paid", res.BuyersPaid).
		Msg("settlement complete")
}

// WithdrawFees moves accumulated network fees to the caller. Restricted
// to the owner or the configured withdraw address, and bounded by both
// the fee pool and the native value actually held.
func (s *SettlementService) WithdrawFees(ctx context.Context, caller ledger.Address, amount money.Amount) error {
	p := s.params.Get()
	if caller != p.Owner && caller != p.WithdrawAddress {
		return ledger.ErrUnauthorized
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fee withdrawal: %w", err)
	}
	defer tx.Rollback()

	if err := tx.SubFeePool(ctx, amount); err != nil {
		return err
	}
	if err := tx.SubNative(ctx, amount); err != nil {
		return err
	}
	if err := s.transfer.Send(ctx, caller, amount); err != nil {
		return fmt.Errorf("fee withdrawal transfer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fee withdrawal: %w", err)
	}

	rec := event.Record{
		ID:        s.idGen.New(),
		Type:      event.TypeFeesWithdrawn,
		Timestamp: s.clock.Now(),
		Caller:    caller,
		Amount:    amount,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Error().Err(err).Msg("audit append failed")
	}
	s.logger.Info().Str("caller", string(caller)).Uint64("amount", amount).Msg("fees withdrawn")
	return nil
}

// FeePool returns the accumulated, unwithdrawn network fees.
func (s *SettlementService) FeePool(ctx context.Context) (money.Amount, error) {
	return s.ledger.FeePool(ctx)
}

// BuyerStat returns the settlement statistics for (listing, buyer).
func (s *SettlementService) BuyerStat(ctx context.Context, listingID string, buyer ledger.Address) (ledger.BuyerStat, error) {
	return s.ledger.BuyerStat(ctx, listingID, buyer)
}
