package reconcile

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	chaindomain "github.com/smallbiznis/claimsync/internal/chain/domain"
	"github.com/smallbiznis/claimsync/internal/clock"
	"github.com/smallbiznis/claimsync/internal/contentstore"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/insurance/repository"
	"github.com/smallbiznis/claimsync/internal/journal"
	"github.com/smallbiznis/claimsync/internal/seed"
	"github.com/smallbiznis/claimsync/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	walletP       = "0x00000000000000000000000000000000000000Aa"
	walletUnknown = "0x00000000000000000000000000000000000000Ee"
)

var (
	t1 = time.Unix(1700000000, 0).UTC()
	t2 = time.Unix(1700003600, 0).UTC()
)

type fakeDetails struct {
	mu      sync.Mutex
	details map[string]chaindomain.TxDetail
	err     error
	calls   int
}

func (f *fakeDetails) Fetch(_ context.Context, txHash string) (chaindomain.TxDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return chaindomain.TxDetail{}, f.err
	}
	detail, ok := f.details[txHash]
	if !ok {
		return chaindomain.TxDetail{}, chaindomain.ErrDetailUnavailable
	}
	return detail, nil
}

type fakeStore struct {
	mu        sync.Mutex
	cid       string
	err       error
	delay     time.Duration
	summaries []contentstore.Summary
}

func (f *fakeStore) Store(ctx context.Context, summary contentstore.Summary) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return f.cid, f.err
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, journal.Failure) error {
	return errors.New("database is read-only")
}

type harness struct {
	db      *gorm.DB
	node    *snowflake.Node
	repo    insurancedomain.Repository
	details *fakeDetails
	store   *fakeStore
	cfg     Config
	engine  *Engine
	payer   *insurancedomain.Payer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := repository.New()

	payer, _, err := seed.EnsurePayer(context.Background(), db, repo, node, seed.PayerInput{
		WalletAddress: walletP,
		NationalID:    "3201010101010001",
		FullName:      "Payer P",
		Email:         "payer@example.com",
	})
	if err != nil {
		t.Fatalf("seed payer: %v", err)
	}

	h := &harness{
		db:      db,
		node:    node,
		repo:    repo,
		details: &fakeDetails{details: map[string]chaindomain.TxDetail{}},
		store:   &fakeStore{cid: "bafy-summary"},
		payer:   payer,
	}
	h.engine = h.newEngine(repo, journal.NewJournal(db, node, nil))
	return h
}

func (h *harness) newEngine(repo insurancedomain.Repository, failures FailureRecorder) *Engine {
	return NewEngine(Params{
		DB:       h.db,
		Log:      zap.NewNop(),
		GenID:    h.node,
		Repo:     repo,
		Details:  h.details,
		Store:    h.store,
		Failures: failures,
		Clock:    clock.Fixed(time.Unix(1800000000, 0)),
		Config:   h.cfg,
	})
}

func (h *harness) loadPayer(t *testing.T) *insurancedomain.Payer {
	t.Helper()
	payer, err := h.repo.FindPayerByWallet(context.Background(), h.db, h.payer.WalletAddress)
	if err != nil || payer == nil {
		t.Fatalf("load payer: %v", err)
	}
	return payer
}

func (h *harness) countRows(t *testing.T, table string) int64 {
	t.Helper()
	var count int64
	if err := h.db.Table(table).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func wei(t *testing.T, eth string) *big.Int {
	t.Helper()
	return decimal.RequireFromString(eth).Shift(18).BigInt()
}

func payment(t *testing.T, txHash string, eth string, ts time.Time, block uint64) chaindomain.RawEvent {
	return chaindomain.RawEvent{
		Kind:        chaindomain.KindPremiumPaid,
		TxHash:      txHash,
		BlockNumber: block,
		Payer:       walletP,
		AmountWei:   wei(t, eth),
		Timestamp:   ts,
	}
}

func assertTotals(t *testing.T, payer *insurancedomain.Payer, total string, count int64, last time.Time) {
	t.Helper()
	if !payer.TotalPaid.Equal(decimal.RequireFromString(total)) {
		t.Fatalf("expected total %s, got %s", total, payer.TotalPaid)
	}
	if payer.PaymentCount != count {
		t.Fatalf("expected count %d, got %d", count, payer.PaymentCount)
	}
	if payer.LastPaymentAt == nil || !payer.LastPaymentAt.Equal(last) {
		t.Fatalf("expected last payment %v, got %v", last, payer.LastPaymentAt)
	}
}

func TestPaymentAggregatesAndDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)}); err != nil {
		t.Fatalf("apply 0xAA: %v", err)
	}
	assertTotals(t, h.loadPayer(t), "2.5", 1, t1)

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xBB", "1.0", t2, 11)}); err != nil {
		t.Fatalf("apply 0xBB: %v", err)
	}
	assertTotals(t, h.loadPayer(t), "3.5", 2, t2)

	summary, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)})
	if err != nil {
		t.Fatalf("re-apply 0xAA: %v", err)
	}
	if summary.Duplicates != 1 || summary.Applied != 0 {
		t.Fatalf("expected duplicate outcome, got %+v", summary)
	}
	assertTotals(t, h.loadPayer(t), "3.5", 2, t2)

	if got := h.countRows(t, "payment_records"); got != 2 {
		t.Fatalf("expected 2 payment records, got %d", got)
	}
	if got := h.countRows(t, "coverages"); got != 1 {
		t.Fatalf("expected one lazily created coverage, got %d", got)
	}
}

func TestApplyTwiceLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	batch := []chaindomain.RawEvent{
		payment(t, "0x01", "1", t1, 5),
		{Kind: chaindomain.KindClaimSubmitted, TxHash: "0x02", BlockNumber: 6, Payer: walletP, ClaimID: "CLM-7", AmountWei: wei(t, "4")},
		{Kind: chaindomain.KindClaimVerified, TxHash: "0x03", BlockNumber: 7, ClaimID: "CLM-7", Verified: true},
	}

	first, err := h.engine.Apply(ctx, batch)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Applied != 3 {
		t.Fatalf("expected 3 applied events, got %+v", first)
	}
	claimBefore, _ := h.repo.FindClaim(ctx, h.db, "CLM-7")

	if _, err := h.engine.Apply(ctx, batch); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	assertTotals(t, h.loadPayer(t), "1", 1, t1)

	claimAfter, _ := h.repo.FindClaim(ctx, h.db, "CLM-7")
	if claimAfter.Status != insurancedomain.ClaimStatusVerified {
		t.Fatalf("expected claim to stay verified, got %s", claimAfter.Status)
	}
	if !claimAfter.VerifiedAt.Equal(*claimBefore.VerifiedAt) {
		t.Fatalf("verified_at changed from %v to %v", claimBefore.VerifiedAt, claimAfter.VerifiedAt)
	}
	if got := h.countRows(t, "payment_records"); got != 1 {
		t.Fatalf("expected 1 payment record, got %d", got)
	}
}

func TestApplySortsByBlockAndLogIndex(t *testing.T) {
	h := newHarness(t)

	late := payment(t, "0x20", "1", t2, 20)
	early := payment(t, "0x10", "1", t1, 10)

	if _, err := h.engine.Apply(context.Background(), []chaindomain.RawEvent{late, early}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	assertTotals(t, h.loadPayer(t), "2", 2, t2)
}

func TestDanglingClaimVerificationIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	summary, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimVerified, TxHash: "0x01", BlockNumber: 1, ClaimID: "CLM-404", Verified: true},
		payment(t, "0x02", "1", t1, 2),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Skipped != 1 || summary.Applied != 1 {
		t.Fatalf("expected 1 skipped and 1 applied, got %+v", summary)
	}
	if claim, _ := h.repo.FindClaim(ctx, h.db, "CLM-404"); claim != nil {
		t.Fatalf("expected no claim to be created, got %+v", claim)
	}
	if got := h.countRows(t, "reconcile_failures"); got != 0 {
		t.Fatalf("dangling references must not be journaled, got %d", got)
	}
}

func TestPaymentForUnknownPayerIsSkipped(t *testing.T) {
	h := newHarness(t)

	ev := payment(t, "0x99", "1", t1, 3)
	ev.Payer = walletUnknown
	summary, err := h.engine.Apply(context.Background(), []chaindomain.RawEvent{ev})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", summary)
	}
	if got := h.countRows(t, "payment_records"); got != 0 {
		t.Fatalf("expected no payment record, got %d", got)
	}
	if got := h.countRows(t, "coverages"); got != 0 {
		t.Fatalf("expected no coverage, got %d", got)
	}
}

func TestContentStoreFailureKeepsPayment(t *testing.T) {
	h := newHarness(t)
	h.store.cid = ""
	h.store.err = errors.New("gateway timeout")
	ctx := context.Background()

	summary, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Applied != 1 {
		t.Fatalf("expected payment to be applied, got %+v", summary)
	}
	assertTotals(t, h.loadPayer(t), "2.5", 1, t1)

	record, err := h.repo.FindPaymentByTxHash(ctx, h.db, "0xAA")
	if err != nil || record == nil {
		t.Fatalf("find payment: %v", err)
	}
	if record.ContentStatus != insurancedomain.ContentStatusFailed {
		t.Fatalf("expected content status failed, got %s", record.ContentStatus)
	}
	if record.ContentError == nil || *record.ContentError == "" {
		t.Fatalf("expected content error to be recorded")
	}
	if record.ContentID != nil {
		t.Fatalf("expected no content id, got %s", *record.ContentID)
	}
}

func TestContentStoreSuccessRecordsRedactedSummary(t *testing.T) {
	h := newHarness(t)
	h.details.details["0xAA"] = chaindomain.TxDetail{GasUsed: 21000, GasPrice: big.NewInt(30), BlockNumber: 10, ConfirmedAt: t1}
	ctx := context.Background()

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	record, _ := h.repo.FindPaymentByTxHash(ctx, h.db, "0xAA")
	if record.ContentStatus != insurancedomain.ContentStatusStored || record.ContentID == nil || *record.ContentID != "bafy-summary" {
		t.Fatalf("unexpected content result %+v", record)
	}
	if record.GasUsed == nil || *record.GasUsed != 21000 || record.GasPrice == nil || *record.GasPrice != "30" {
		t.Fatalf("expected gas metadata, got %+v", record)
	}

	if len(h.store.summaries) != 1 {
		t.Fatalf("expected one upload, got %d", len(h.store.summaries))
	}
	uploaded := h.store.summaries[0]
	if uploaded.Buyer.Email == "payer@example.com" || uploaded.Buyer.NationalID == "3201010101010001" {
		t.Fatalf("expected PII to be masked, got %+v", uploaded.Buyer)
	}
	if uploaded.Premium.PolicyNumber != insurancedomain.PolicyNumber(h.payer.ID) {
		t.Fatalf("unexpected policy number %s", uploaded.Premium.PolicyNumber)
	}
}

func TestDetailUnavailableStillRecordsPayment(t *testing.T) {
	h := newHarness(t)
	h.details.err = chaindomain.ErrDetailUnavailable
	ctx := context.Background()

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	record, _ := h.repo.FindPaymentByTxHash(ctx, h.db, "0xAA")
	if record == nil {
		t.Fatalf("expected payment record")
	}
	if record.GasUsed != nil || record.GasPrice != nil {
		t.Fatalf("expected no gas metadata, got %+v", record)
	}
	assertTotals(t, h.loadPayer(t), "2.5", 1, t1)
}

func TestClaimLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	firstVerify := time.Unix(1700000500, 0).UTC()
	h.details.details["0xV1"] = chaindomain.TxDetail{ConfirmedAt: firstVerify}
	h.details.details["0xV2"] = chaindomain.TxDetail{ConfirmedAt: firstVerify.Add(time.Hour)}

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimSubmitted, TxHash: "0xS1", BlockNumber: 1, Payer: walletP, ClaimID: "CLM-1", AmountWei: wei(t, "100")},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	claim, _ := h.repo.FindClaim(ctx, h.db, "CLM-1")
	if claim == nil || claim.Status != insurancedomain.ClaimStatusSubmitted {
		t.Fatalf("expected submitted claim, got %+v", claim)
	}
	if !claim.Amount.Equal(decimal.NewFromInt(100)) || claim.PayerID != h.payer.ID {
		t.Fatalf("unexpected claim fields %+v", claim)
	}

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimVerified, TxHash: "0xV1", BlockNumber: 2, ClaimID: "CLM-1", Verified: true},
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	claim, _ = h.repo.FindClaim(ctx, h.db, "CLM-1")
	if claim.Status != insurancedomain.ClaimStatusVerified || claim.VerifiedAt == nil || !claim.VerifiedAt.Equal(firstVerify) {
		t.Fatalf("expected verified claim at %v, got %+v", firstVerify, claim)
	}

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimVerified, TxHash: "0xV2", BlockNumber: 3, ClaimID: "CLM-1", Verified: true},
	}); err != nil {
		t.Fatalf("verify again: %v", err)
	}
	claim, _ = h.repo.FindClaim(ctx, h.db, "CLM-1")
	if !claim.VerifiedAt.Equal(firstVerify) {
		t.Fatalf("expected verified_at to stay %v, got %v", firstVerify, claim.VerifiedAt)
	}
}

func TestClaimVerifiedFalseRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimSubmitted, TxHash: "0xS1", BlockNumber: 1, Payer: walletP, ClaimID: "CLM-2", AmountWei: wei(t, "5")},
		{Kind: chaindomain.KindClaimVerified, TxHash: "0xV1", BlockNumber: 2, ClaimID: "CLM-2", Verified: false},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	claim, _ := h.repo.FindClaim(ctx, h.db, "CLM-2")
	if claim.Status != insurancedomain.ClaimStatusRejected || claim.VerifiedAt != nil {
		t.Fatalf("expected rejected claim without verified_at, got %+v", claim)
	}
}

func TestVerificationDoesNotOverrideAdminDecision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimSubmitted, TxHash: "0xS1", BlockNumber: 1, Payer: walletP, ClaimID: "CLM-3", AmountWei: wei(t, "5")},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := h.repo.DecideClaim(ctx, h.db, insurancedomain.ClaimDecision{ClaimID: "CLM-3", Status: insurancedomain.ClaimStatusAccepted, At: t1}); err != nil {
		t.Fatalf("decide: %v", err)
	}

	summary, err := h.engine.Apply(ctx, []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimVerified, TxHash: "0xV1", BlockNumber: 2, ClaimID: "CLM-3", Verified: false},
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", summary)
	}
	claim, _ := h.repo.FindClaim(ctx, h.db, "CLM-3")
	if claim.Status != insurancedomain.ClaimStatusAccepted {
		t.Fatalf("expected accepted claim, got %s", claim.Status)
	}
}

func TestFailuresAreJournaledAndBatchContinues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	broken := payment(t, "0xBAD", "1", t1, 1)
	broken.AmountWei = nil
	batch := []chaindomain.RawEvent{broken, payment(t, "0xGOOD", "1", t1, 2)}

	summary, err := h.engine.Apply(ctx, batch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Failed != 1 || summary.Applied != 1 {
		t.Fatalf("expected 1 failed and 1 applied, got %+v", summary)
	}

	if _, err := h.engine.Apply(ctx, batch); err != nil {
		t.Fatalf("re-apply: %v", err)
	}

	var records []journal.Record
	if err := h.db.Find(&records).Error; err != nil {
		t.Fatalf("load failures: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one journaled failure, got %d", len(records))
	}
	if records[0].Attempts != 2 || records[0].TxHash != "0xBAD" {
		t.Fatalf("unexpected failure record %+v", records[0])
	}
}

func TestJournalFailureAbortsApply(t *testing.T) {
	h := newHarness(t)
	engine := h.newEngine(h.repo, failingRecorder{})

	broken := payment(t, "0xBAD", "1", t1, 1)
	broken.AmountWei = nil
	_, err := engine.Apply(context.Background(), []chaindomain.RawEvent{broken, payment(t, "0xGOOD", "1", t1, 2)})
	if err == nil {
		t.Fatalf("expected apply to fail when the journal is unavailable")
	}
	if got := h.countRows(t, "payment_records"); got != 0 {
		t.Fatalf("expected the batch to stop, got %d payment records", got)
	}
}

// blindRepo hides existing payments so the engine reaches the insert.
type blindRepo struct {
	insurancedomain.Repository
}

func (blindRepo) FindPaymentByTxHash(context.Context, *gorm.DB, string) (*insurancedomain.PaymentRecord, error) {
	return nil, nil
}

func TestLostInsertRaceDoesNotIncrementAggregates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	racing := h.newEngine(blindRepo{Repository: h.repo}, journal.NewJournal(h.db, h.node, nil))
	summary, err := racing.Apply(ctx, []chaindomain.RawEvent{payment(t, "0xAA", "2.5", t1, 10)})
	if err != nil {
		t.Fatalf("racing apply: %v", err)
	}
	if summary.Duplicates != 1 {
		t.Fatalf("expected the losing insert to report a duplicate, got %+v", summary)
	}
	assertTotals(t, h.loadPayer(t), "2.5", 1, t1)
}

func TestPolicyNumberCollisionGetsOwnCoverage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	other, _, err := seed.EnsurePayer(ctx, h.db, h.repo, h.node, seed.PayerInput{
		WalletAddress: "0x00000000000000000000000000000000000000Bb",
		NationalID:    "3201010101010002",
		FullName:      "Payer Q",
	})
	if err != nil {
		t.Fatalf("seed other payer: %v", err)
	}
	taken, err := h.repo.EnsureCoverage(ctx, h.db, &insurancedomain.Coverage{
		ID:           h.node.Generate(),
		PayerID:      other.ID,
		PolicyNumber: insurancedomain.PolicyNumber(h.payer.ID),
		Premium:      decimal.NewFromInt(1),
		Status:       insurancedomain.CoverageStatusActive,
		CreatedAt:    t1,
		UpdatedAt:    t1,
	})
	if err != nil {
		t.Fatalf("seed colliding coverage: %v", err)
	}

	for i, tx := range []string{"0xC1", "0xC2"} {
		summary, err := h.engine.Apply(ctx, []chaindomain.RawEvent{payment(t, tx, "1", t1, uint64(10+i))})
		if err != nil || summary.Applied != 1 {
			t.Fatalf("apply %s: %+v %v", tx, summary, err)
		}
		record, err := h.repo.FindPaymentByTxHash(ctx, h.db, tx)
		if err != nil || record == nil {
			t.Fatalf("find payment %s: %v", tx, err)
		}
		if record.CoverageID == taken.ID {
			t.Fatalf("payment %s was linked to another payer's coverage", tx)
		}
	}

	coverage, err := h.repo.FindCoverageByPayer(ctx, h.db, h.payer.ID)
	if err != nil || coverage == nil {
		t.Fatalf("find coverage: %v", err)
	}
	if coverage.PolicyNumber != insurancedomain.PolicyNumberAttempt(h.payer.ID, 1) {
		t.Fatalf("expected widened policy number, got %s", coverage.PolicyNumber)
	}
	if got := h.countRows(t, "coverages"); got != 2 {
		t.Fatalf("expected one coverage per payer, got %d", got)
	}
}

func TestSlowContentStoreOutlivesEventTimeout(t *testing.T) {
	h := newHarness(t)
	h.cfg = Config{EventTimeout: 20 * time.Millisecond}
	h.store.delay = 100 * time.Millisecond
	engine := h.newEngine(h.repo, journal.NewJournal(h.db, h.node, nil))
	ctx := context.Background()

	summary, err := engine.Apply(ctx, []chaindomain.RawEvent{
		payment(t, "0xAA", "1", t1, 10),
		payment(t, "0xBB", "1", t2, 11),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Applied != 2 || summary.Failed != 0 {
		t.Fatalf("expected both payments to apply, got %+v", summary)
	}
	for _, tx := range []string{"0xAA", "0xBB"} {
		record, err := h.repo.FindPaymentByTxHash(ctx, h.db, tx)
		if err != nil || record == nil {
			t.Fatalf("find payment %s: %v", tx, err)
		}
		if record.ContentStatus != insurancedomain.ContentStatusStored {
			t.Fatalf("expected %s content status stored, got %s", tx, record.ContentStatus)
		}
	}
}

// stallingRepo blocks claim lookups until the caller's deadline passes.
type stallingRepo struct {
	insurancedomain.Repository
}

func (stallingRepo) FindClaim(ctx context.Context, _ *gorm.DB, _ string) (*insurancedomain.Claim, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExpiredEventIsStillJournaled(t *testing.T) {
	h := newHarness(t)
	h.cfg = Config{EventTimeout: 20 * time.Millisecond}
	engine := h.newEngine(stallingRepo{Repository: h.repo}, journal.NewJournal(h.db, h.node, nil))

	summary, err := engine.Apply(context.Background(), []chaindomain.RawEvent{
		{Kind: chaindomain.KindClaimVerified, TxHash: "0xV1", BlockNumber: 1, ClaimID: "CLM-9", Verified: true},
		payment(t, "0xAA", "1", t1, 2),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Failed != 1 || summary.Applied != 1 {
		t.Fatalf("expected 1 failed and 1 applied, got %+v", summary)
	}

	var records []journal.Record
	if err := h.db.Find(&records).Error; err != nil {
		t.Fatalf("load failures: %v", err)
	}
	if len(records) != 1 || records[0].TxHash != "0xV1" {
		t.Fatalf("expected the stalled event to be journaled, got %+v", records)
	}
}

func TestPaymentWithoutDetailFetcher(t *testing.T) {
	h := newHarness(t)
	engine := NewEngine(Params{
		DB:       h.db,
		Log:      zap.NewNop(),
		GenID:    h.node,
		Repo:     h.repo,
		Store:    h.store,
		Failures: journal.NewJournal(h.db, h.node, nil),
		Clock:    clock.Fixed(time.Unix(1800000000, 0)),
	})
	ctx := context.Background()

	summary, err := engine.Apply(ctx, []chaindomain.RawEvent{
		payment(t, "0xAA", "2.5", t1, 10),
		{Kind: chaindomain.KindClaimSubmitted, TxHash: "0xS1", BlockNumber: 11, Payer: walletP, ClaimID: "CLM-5", AmountWei: wei(t, "1")},
		{Kind: chaindomain.KindClaimVerified, TxHash: "0xV1", BlockNumber: 12, ClaimID: "CLM-5", Verified: true},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Applied != 3 {
		t.Fatalf("expected 3 applied events, got %+v", summary)
	}
	record, _ := h.repo.FindPaymentByTxHash(ctx, h.db, "0xAA")
	if record == nil || record.GasUsed != nil {
		t.Fatalf("expected payment without gas metadata, got %+v", record)
	}
	claim, _ := h.repo.FindClaim(ctx, h.db, "CLM-5")
	if claim == nil || claim.VerifiedAt == nil || !claim.VerifiedAt.Equal(time.Unix(1800000000, 0)) {
		t.Fatalf("expected verification stamped by the clock, got %+v", claim)
	}
}
