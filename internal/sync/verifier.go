package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/retry"
)

// VerificationOutcome classifies one spot-checked row.
type VerificationOutcome string

const (
	// VerifyOK means the source still reports the order with matching fields.
	VerifyOK VerificationOutcome = "verified"
	// VerifyMismatch means the order exists at the source but one or more
	// fields differ from the local row.
	VerifyMismatch VerificationOutcome = "data_mismatch"
	// VerifyMissing means the source no longer reports any active order for
	// the token, yet the local row is still active.
	VerifyMissing VerificationOutcome = "missing_from_source"
	// VerifyError means the source could not be queried for this row.
	VerifyError VerificationOutcome = "verification_error"
)

// FieldDiff names one field whose local and remote values disagree.
type FieldDiff struct {
	Field  string
	Local  string
	Remote string
}

// VerificationResult is the outcome of spot-checking one sampled row.
type VerificationResult struct {
	TokenID         int64
	ExternalOrderID string
	Outcome         VerificationOutcome
	Diffs           []FieldDiff
	Err             error
}

// VerifierConfig bounds the sample size. Requested sizes are clamped to
// [MinSample, MaxSample].
type VerifierConfig struct {
	MinSample int
	MaxSample int
	Retry     retry.Config
}

func (c VerifierConfig) withDefaults() VerifierConfig {
	if c.MinSample <= 0 {
		c.MinSample = 3
	}
	if c.MaxSample <= 0 {
		c.MaxSample = 10
	}
	return c
}

// Verifier spot-checks a random sample of active rows against the source
// after a sync run. It reads both sides and writes nothing; its findings are
// surfaced in the run summary only.
type Verifier struct {
	source   domain.MarketSource
	listings domain.ListingStore
	policy   retry.Policy
	cfg      VerifierConfig
	logger   *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(source domain.MarketSource, listings domain.ListingStore, cfg VerifierConfig, logger *slog.Logger) *Verifier {
	return &Verifier{
		source:   source,
		listings: listings,
		policy:   retry.DefaultPolicy{},
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "verifier")),
	}
}

// Sample spot-checks up to n random active rows for the ticker and records
// the results on m. A sampling failure aborts verification; a failure on an
// individual row is recorded as a VerifyError result and checking continues.
func (v *Verifier) Sample(ctx context.Context, ticker string, n int, m *RunMetrics) ([]VerificationResult, error) {
	if n < v.cfg.MinSample {
		n = v.cfg.MinSample
	}
	if n > v.cfg.MaxSample {
		n = v.cfg.MaxSample
	}
	log := v.logger.With(slog.String("ticker", ticker), slog.String("run_id", m.RunID))

	m.StartPhase(PhaseVerify)
	defer m.EndPhase(PhaseVerify)

	rows, err := retry.Do(ctx, v.cfg.Retry, v.policy, "store.sample_active",
		func(ctx context.Context) ([]domain.Listing, error) {
			return v.listings.SampleActive(ctx, ticker, n)
		})
	if err != nil {
		return nil, fmt.Errorf("sync: sample active listings: %w", err)
	}

	results := make([]VerificationResult, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := v.checkRow(ctx, ticker, row, m)
		results = append(results, res)
		if res.Outcome != VerifyOK {
			attrs := []any{
				slog.Int64("token_id", res.TokenID),
				slog.String("order_id", res.ExternalOrderID),
				slog.String("outcome", string(res.Outcome)),
			}
			for _, d := range res.Diffs {
				attrs = append(attrs, slog.Group(d.Field,
					slog.String("local", d.Local),
					slog.String("remote", d.Remote)))
			}
			if res.Err != nil {
				attrs = append(attrs, slog.String("error", res.Err.Error()))
			}
			log.Warn("verification finding", attrs...)
		}
	}

	m.Verification = append(m.Verification, results...)
	log.Info("verification complete", slog.Int("sampled", len(results)))
	return results, nil
}

// checkRow re-fetches one token's order from the source and compares it
// against the local row.
func (v *Verifier) checkRow(ctx context.Context, ticker string, row domain.Listing, m *RunMetrics) VerificationResult {
	res := VerificationResult{
		TokenID:         row.TokenID,
		ExternalOrderID: row.ExternalOrderID,
	}

	tokenID := row.TokenID
	page, err := v.source.ListOrders(ctx, ticker, domain.PageQuery{
		Limit:   1,
		TokenID: &tokenID,
	})
	m.RecordCall("tradeport.list_orders", err)
	if err != nil {
		res.Outcome = VerifyError
		res.Err = err
		return res
	}
	if len(page.Orders) == 0 {
		res.Outcome = VerifyMissing
		return res
	}

	remote := page.Orders[0]
	res.Diffs = diffFields(row, remote)
	if len(res.Diffs) > 0 {
		res.Outcome = VerifyMismatch
	} else {
		res.Outcome = VerifyOK
	}
	return res
}

// diffFields lists the compared fields whose values disagree.
func diffFields(local, remote domain.Listing) []FieldDiff {
	var diffs []FieldDiff
	add := func(field, l, r string) {
		if l != r {
			diffs = append(diffs, FieldDiff{Field: field, Local: l, Remote: r})
		}
	}
	add("external_order_id", local.ExternalOrderID, remote.ExternalOrderID)
	add("total_price",
		fmt.Sprintf("%g", local.TotalPrice), fmt.Sprintf("%g", remote.TotalPrice))
	add("seller_address", local.SellerAddress, remote.SellerAddress)
	add("rarity_rank",
		fmt.Sprintf("%d", local.RarityRank), fmt.Sprintf("%d", remote.RarityRank))
	add("required_payment",
		fmt.Sprintf("%g", local.RequiredPayment), fmt.Sprintf("%g", remote.RequiredPayment))
	add("ownership_confirmed",
		fmt.Sprintf("%t", local.OwnershipConfirmed), fmt.Sprintf("%t", remote.OwnershipConfirmed))
	return diffs
}
