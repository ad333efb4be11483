package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/domain/settlement"
	"github.com/meterpay/meterpay/ports"
)

// Settings keys for persisted runtime parameters.
const (
	settingReporter       = "reporter_address"
	settingWithdrawAddr   = "withdraw_address"
	settingFeeNumerator   = "fee_rate_numerator"
	settingFeeDenominator = "fee_rate_denominator"
	settingRewardAmount   = "reward_amount"
	settingRewardEnabled  = "reward_enabled"
	settingDefaultWindow  = "default_window_secs"
)

// AdminService applies owner-only parameter changes and persists them.
type AdminService struct {
	params   *ParamsHolder
	settings ports.SettingsStore
	audit    ports.AuditLog
	clock    ports.Clock
	idGen    ports.IDGenerator
	logger   zerolog.Logger
}

// AdminDeps contains dependencies for AdminService.
type AdminDeps struct {
	Params   *ParamsHolder
	Settings ports.SettingsStore
	Audit    ports.AuditLog
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   zerolog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(deps AdminDeps) *AdminService {
	return &AdminService{
		params:   deps.Params,
		settings: deps.Settings,
		audit:    deps.Audit,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		logger:   deps.Logger,
	}
}

func (s *AdminService) authorize(caller ledger.Address) error {
	if caller != s.params.Get().Owner {
		return ledger.ErrUnauthorized
	}
	return nil
}

// SetReporter changes the designated usage-reporting address.
func (s *AdminService) SetReporter(ctx context.Context, caller, reporter ledger.Address) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if reporter.Zero() {
		return ledger.ErrInvalidAddress
	}

	p := s.params.Get()
	p.Reporter = reporter
	s.params.Set(p)
	s.persist(ctx, settingReporter, string(reporter))
	s.auditChange(ctx, caller, "reporter address changed")
	return nil
}

// SetWithdrawAddress changes the address allowed to withdraw fees.
func (s *AdminService) SetWithdrawAddress(ctx context.Context, caller, addr ledger.Address) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if addr.Zero() {
		return ledger.ErrInvalidAddress
	}

	p := s.params.Get()
	p.WithdrawAddress = addr
	s.params.Set(p)
	s.persist(ctx, settingWithdrawAddr, string(addr))
	s.auditChange(ctx, caller, "withdraw address changed")
	return nil
}

// SetFeeRate changes the network fee rate.
func (s *AdminService) SetFeeRate(ctx context.Context, caller ledger.Address, rate settlement.FeeRate) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if !rate.Valid() {
		return ledger.ErrInvalidInput
	}

	p := s.params.Get()
	p.FeeRate = rate
	s.params.Set(p)
	s.persist(ctx, settingFeeNumerator, strconv.FormatUint(rate.Numerator, 10))
	s.persist(ctx, settingFeeDenominator, strconv.FormatUint(rate.Denominator, 10))
	s.auditChange(ctx, caller, "fee rate changed")
	return nil
}

// SetRewardAmount changes the per-buyer seller reward.
func (s *AdminService) SetRewardAmount(ctx context.Context, caller ledger.Address, amount money.Amount) error {
	if err := s.authorize(caller); err != nil {
		return err
	}

	p := s.params.Get()
	p.RewardAmount = amount
	s.params.Set(p)
	s.persist(ctx, settingRewardAmount, strconv.FormatUint(amount, 10))
	s.auditChange(ctx, caller, "reward amount changed")
	return nil
}

// SetRewardEnabled toggles reward minting.
func (s *AdminService) SetRewardEnabled(ctx context.Context, caller ledger.Address, enabled bool) error {
	if err := s.authorize(caller); err != nil {
		return err
	}

	p := s.params.Get()
	p.RewardEnabled = enabled
	s.params.Set(p)
	s.persist(ctx, settingRewardEnabled, strconv.FormatBool(enabled))
	s.auditChange(ctx, caller, "reward switch changed")
	return nil
}

// SetDefaultWindow changes the cap window used for unanchored approvals.
func (s *AdminService) SetDefaultWindow(ctx context.Context, caller ledger.Address, window time.Duration) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if window <= 0 {
		return ledger.ErrInvalidInput
	}

	p := s.params.Get()
	p.DefaultWindow = window
	s.params.Set(p)
	s.persist(ctx, settingDefaultWindow, strconv.FormatInt(int64(window/time.Second), 10))
	s.auditChange(ctx, caller, "default window changed")
	return nil
}

// Params returns the current parameter snapshot.
func (s *AdminService) Params() Params {
	return s.params.Get()
}

// LoadPersisted overlays previously persisted settings onto the current
// parameters. Called once at startup, after config defaults are applied.
func (s *AdminService) LoadPersisted(ctx context.Context) error {
	values, err := s.settings.All(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	p := s.params.Get()
	if v, ok := values[settingReporter]; ok && v != "" {
		p.Reporter = ledger.Address(v)
	}
	if v, ok := values[settingWithdrawAddr]; ok && v != "" {
		p.WithdrawAddress = ledger.Address(v)
	}
	if v, ok := values[settingFeeNumerator]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			p.FeeRate.Numerator = n
		}
	}
	if v, ok := values[settingFeeDenominator]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n != 0 {
			p.FeeRate.Denominator = n
		}
	}
	if v, ok := values[settingRewardAmount]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			p.RewardAmount = n
		}
	}
	if v, ok := values[settingRewardEnabled]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.RewardEnabled = b
		}
	}
	if v, ok := values[settingDefaultWindow]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			p.DefaultWindow = time.Duration(n) * time.Second
		}
	}
	s.params.Set(p)
	return nil
}

func (s *AdminService) persist(ctx context.Context, key, value string) {
	if err := s.settings.Set(ctx, key, value); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("persist setting failed")
	}
}

func (s *AdminService) auditChange(ctx context.Context, caller ledger.Address, note string) {
	rec := event.Record{
		ID:        s.idGen.New(),
		Type:      event.TypeParamsChanged,
		Timestamp: s.clock.Now(),
		Caller:    caller,
		Note:      note,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Error().Err(err).Msg("audit append failed")
	}
}
