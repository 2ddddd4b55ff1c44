package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/payment"
	"github.com/pockethour/image-sentinel/internal/processor"
	"github.com/pockethour/image-sentinel/internal/server/models"
	"github.com/pockethour/image-sentinel/internal/server/repositories/repomanager"
	"github.com/pockethour/image-sentinel/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc       *FileService
	gateway   *payment.SandboxGateway
	storeRoot string
	clock     *clock
}

func newFixture(t *testing.T, proc processor.Processor) *fixture {
	t.Helper()
	return newFixtureWithStore(t, proc, nil)
}

// newFixtureWithStore lets a test wrap the filesystem store.
func newFixtureWithStore(t *testing.T, proc processor.Processor, wrap func(storage.Store) storage.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := repomanager.Open(ctx, repomanager.DriverSQLite, filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := repomanager.NewSQLiteRepositoryManager()
	require.NoError(t, repos.RunMigrations(ctx, db))

	root := t.TempDir()
	fs, err := storage.NewFSStore(root)
	require.NoError(t, err)
	var store storage.Store = fs
	if wrap != nil {
		store = wrap(fs)
	}

	if proc == nil {
		proc = processor.NewLocal(logging.Nop{})
	}
	gw := payment.NewSandboxGateway("test-secret", "https://pay.example/checkout")
	clk := &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}

	svc := NewFileService(db, repos, store, proc, gw, Config{
		MaxUploadBytes: 1 << 20,
		WorkDir:        t.TempDir(),
		Price:          499,
		Currency:       "USD",
	}, logging.Nop{}, WithClock(clk.Now))

	return &fixture{svc: svc, gateway: gw, storeRoot: root, clock: clk}
}

func noisePNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, free bool) *models.FileRecord {
	t.Helper()
	rec, err := f.svc.Upload(context.Background(), UploadInput{
		Name:     "photo.png",
		Body:     bytes.NewReader(noisePNG(t, 64, 48, time.Now().UnixNano())),
		FreeTier: free,
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) removeArtifact(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(f.storeRoot, filepath.FromSlash(key))))
}

// storedFiles lists every object left in the store, relative to its root.
func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(f.storeRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(f.storeRoot, p)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) pay(t *testing.T, id string) {
	t.Helper()
	_, order, err := f.svc.InitiatePayment(context.Background(), id)
	require.NoError(t, err)
	applied, err := f.svc.ConfirmPayment(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, applied)
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	body := noisePNG(t, 40, 30, 1)

	rec, err := f.svc.Upload(ctx, UploadInput{Name: "../../etc/cat.png", Body: bytes.NewReader(body)})
	require.NoError(t, err)

	assert.Equal(t, "cat.png", rec.OriginalName)
	assert.Equal(t, "png", rec.Format)
	assert.Equal(t, 40, rec.Width)
	assert.Equal(t, 30, rec.Height)
	assert.Equal(t, Checksum(body), rec.Checksum)
	assert.Len(t, rec.Checksum, 64)
	assert.Equal(t, models.StateCreated, rec.State)
	assert.Equal(t, models.PaymentUnpaid, rec.PaymentState)
	assert.True(t, strings.HasPrefix(rec.SourceKey, "uploads/2026/10/18/"+rec.ID+"/source.png"))

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.SourceKey, got.SourceKey)

	stored, err := os.ReadFile(filepath.Join(f.storeRoot, filepath.FromSlash(rec.SourceKey)))
	require.NoError(t, err)
	assert.Equal(t, body, stored)
}

func TestUpload_Rejects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, UploadInput{Name: "x.png", Body: strings.NewReader("not an image")})
	assert.ErrorIs(t, err, common.ErrImageRead)

	_, err = f.svc.Upload(ctx, UploadInput{Name: "big.png", Body: bytes.NewReader(make([]byte, 2<<20))})
	assert.ErrorIs(t, err, common.ErrInvalidPayload)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcess_WatermarkThenVerify(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	out, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "owner:alice")
	require.NoError(t, err)
	assert.Equal(t, models.StateProcessed, out.State)
	assert.Equal(t, "owner:alice", out.CustomPayload)
	assert.Equal(t, models.WatermarkEvidence{EmbeddedText: "owner:alice", Algorithm: "lsb-blue-v1"}, out.Result)
	assert.NotEmpty(t, out.ProcessedKey)
	assert.NotEqual(t, out.ProcessedKey, out.PreviewKey)

	ev, err := f.svc.VerifyFree(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ev.Found)
	assert.Equal(t, "owner:alice", ev.ExtractedText)
	assert.InDelta(t, 0.99, ev.Confidence, 1e-9)

	// verification of a paid-tier record does not move it
	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateProcessed, got.State)

	rc, _, err := f.svc.Preview(ctx, rec.ID)
	require.NoError(t, err)
	defer rc.Close()
	_, format, err := image.DecodeConfig(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestProcess_ReprocessAndForensics(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	_, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "first")
	require.NoError(t, err)

	out, err := f.svc.Process(ctx, rec.ID, models.ModeForensics, "")
	require.NoError(t, err)
	assert.Equal(t, models.StateProcessed, out.State)
	assert.Empty(t, out.CustomPayload)
	fe, ok := out.Result.(models.ForensicEvidence)
	require.True(t, ok)
	assert.Contains(t, []string{"Low", "Medium", "High"}, fe.RiskLevel)
	assert.NotEmpty(t, fe.Disclaimer)
}

func TestProcess_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	_, err := f.svc.Process(ctx, rec.ID, "blur", "")
	assert.ErrorIs(t, err, common.ErrUnknownAlgorithm)

	_, err = f.svc.Process(ctx, rec.ID, models.ModeWatermark, "")
	assert.ErrorIs(t, err, common.ErrInvalidPayload)

	_, err = f.svc.Process(ctx, rec.ID, models.ModeWatermark, strings.Repeat("a", 252))
	assert.ErrorIs(t, err, common.ErrInvalidPayload)

	tiny, err := f.svc.Upload(ctx, UploadInput{Name: "tiny.png", Body: bytes.NewReader(noisePNG(t, 16, 16, 7))})
	require.NoError(t, err)
	_, err = f.svc.Process(ctx, tiny.ID, models.ModeWatermark, strings.Repeat("a", 40))
	assert.ErrorIs(t, err, common.ErrCapacityExceeded, "16x16 carries at most 27 characters")

	_, err = f.svc.Process(ctx, "missing", models.ModeWatermark, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCreated, got.State)
	assert.Empty(t, got.ProcessedKey)
}

// failingPutStore refuses writes to keys containing substr.
type failingPutStore struct {
	storage.Store
	substr string
}

func (s failingPutStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if strings.Contains(key, s.substr) {
		return 0, errors.New("disk full")
	}
	return s.Store.Put(ctx, key, r)
}

func TestProcess_FailedStoreLeavesNoOrphans(t *testing.T) {
	f := newFixtureWithStore(t, nil, func(s storage.Store) storage.Store {
		return failingPutStore{Store: s, substr: "preview"}
	})
	ctx := context.Background()
	rec := f.upload(t, false)

	_, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store preview")

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCreated, got.State)
	assert.Empty(t, got.ProcessedKey)
	assert.Equal(t, []string{rec.SourceKey}, f.storedFiles(t), "the processed artifact is rolled back")

	f.clock.Advance(48 * time.Hour)
	n, err := f.svc.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.storedFiles(t))
}

func TestProcess_ReplacesPreviousArtifacts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	first, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "first")
	require.NoError(t, err)
	second, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "second")
	require.NoError(t, err)

	assert.NotEqual(t, first.ProcessedKey, second.ProcessedKey)
	assert.NotEqual(t, first.PreviewKey, second.PreviewKey)
	assert.ElementsMatch(t, []string{rec.SourceKey, second.ProcessedKey, second.PreviewKey}, f.storedFiles(t))

	ev, err := f.svc.VerifyFree(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", ev.ExtractedText)
}

func TestSweep_RereadsRecordUnderLock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	_, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "before")
	require.NoError(t, err)
	expired, err := f.svc.repos.Files(f.svc.db).ListExpired(ctx, f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)

	// a run that lands between the listing and the purge replaces the keys
	_, err = f.svc.Process(ctx, rec.ID, models.ModeForensics, "")
	require.NoError(t, err)

	ok, err := f.svc.purge(ctx, expired[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.storedFiles(t))

	ok, err = f.svc.purge(ctx, expired[0].ID)
	require.NoError(t, err)
	assert.False(t, ok, "an already purged record is skipped")
}

type unavailableProcessor struct{}

func (unavailableProcessor) Process(context.Context, processor.Request) (*processor.Response, error) {
	return nil, fmt.Errorf("%w: dial tcp: connection refused", common.ErrUpstreamUnavailable)
}

func (unavailableProcessor) Verify(context.Context, processor.VerifyRequest) (*processor.VerifyResponse, error) {
	return nil, fmt.Errorf("%w: dial tcp: connection refused", common.ErrUpstreamUnavailable)
}

func TestProcess_UpstreamUnavailable(t *testing.T) {
	f := newFixture(t, unavailableProcessor{})
	ctx := context.Background()
	rec := f.upload(t, false)

	_, err := f.svc.Process(ctx, rec.ID, models.ModeForensics, "")
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)

	_, err = f.svc.VerifyFree(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCreated, got.State)
}

func TestProcess_ConcurrentSameRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Process(ctx, rec.ID, models.ModeWatermark, fmt.Sprintf("writer-%d", i))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)

	// the stored artifact matches whichever writer committed last
	ev, err := f.svc.VerifyFree(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, got.CustomPayload, ev.ExtractedText)
}

func TestDownload_RequiresPayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	_, _, err := f.svc.Download(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrPaymentRequired)

	out, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "gated")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.storeRoot, filepath.FromSlash(out.ProcessedKey)))
	require.NoError(t, err, "artifact exists on disk")

	_, _, err = f.svc.Download(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrPaymentRequired)

	link, err := f.svc.DownloadLink(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, link, "filesystem store does not presign")
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	_, _, err := f.svc.InitiatePayment(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "nothing to pay for yet")

	_, err = f.svc.Process(ctx, rec.ID, models.ModeWatermark, "paid")
	require.NoError(t, err)

	form, order, err := f.svc.InitiatePayment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, form.Fields["order_id"])
	assert.Equal(t, int64(499), order.Amount)

	applied, err := f.svc.ConfirmPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.svc.ConfirmPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePaid, got.State)
	assert.Equal(t, models.PaymentPaid, got.PaymentState)

	rc, _, err := f.svc.Download(ctx, rec.ID)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	got, err = f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DownloadCount)

	_, err = f.svc.Process(ctx, rec.ID, models.ModeWatermark, "again")
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "paid artifacts are frozen")

	_, err = f.svc.ConfirmPayment(ctx, "no-such-order")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConfirmPayment_SecondOrderForPaidRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)
	_, err := f.svc.Process(ctx, rec.ID, models.ModeForensics, "")
	require.NoError(t, err)

	_, first, err := f.svc.InitiatePayment(ctx, rec.ID)
	require.NoError(t, err)
	_, second, err := f.svc.InitiatePayment(ctx, rec.ID)
	require.NoError(t, err)

	applied, err := f.svc.ConfirmPayment(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = f.svc.ConfirmPayment(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	orders := f.svc.repos.Orders(f.svc.db)
	got, err := orders.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderSuperseded, got.Status, "the extra charge stays on record")
	require.NotNil(t, got.ConfirmedAt)

	got, err = orders.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, got.Status)

	rec, err = f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, rec.PaymentState)
}

func TestHandlePaymentCallback_Superseded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)
	_, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "twice")
	require.NoError(t, err)

	_, first, err := f.svc.InitiatePayment(ctx, rec.ID)
	require.NoError(t, err)
	_, second, err := f.svc.InitiatePayment(ctx, rec.ID)
	require.NoError(t, err)

	ok1, err := f.gateway.SignCallback(first.ID, true)
	require.NoError(t, err)
	ok2, err := f.gateway.SignCallback(second.ID, true)
	require.NoError(t, err)

	assert.Equal(t, CallbackConfirmed, f.svc.HandlePaymentCallback(ctx, ok1))
	assert.Equal(t, CallbackSuperseded, f.svc.HandlePaymentCallback(ctx, ok2))
	assert.Equal(t, CallbackDuplicate, f.svc.HandlePaymentCallback(ctx, ok2))
}

func TestHandlePaymentCallback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)
	_, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "cb")
	require.NoError(t, err)
	_, order, err := f.svc.InitiatePayment(ctx, rec.ID)
	require.NoError(t, err)

	declined, err := f.gateway.SignCallback(order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, CallbackDeclined, f.svc.HandlePaymentCallback(ctx, declined))

	forged, err := payment.NewSandboxGateway("wrong", "").SignCallback(order.ID, true)
	require.NoError(t, err)
	assert.Equal(t, CallbackRejected, f.svc.HandlePaymentCallback(ctx, forged))
	assert.Equal(t, CallbackRejected, f.svc.HandlePaymentCallback(ctx, []byte("{")))

	unknown, err := f.gateway.SignCallback("nope", true)
	require.NoError(t, err)
	assert.Equal(t, CallbackFailed, f.svc.HandlePaymentCallback(ctx, unknown))

	ok, err := f.gateway.SignCallback(order.ID, true)
	require.NoError(t, err)
	assert.Equal(t, CallbackConfirmed, f.svc.HandlePaymentCallback(ctx, ok))
	assert.Equal(t, CallbackDuplicate, f.svc.HandlePaymentCallback(ctx, ok))

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentState)
}

func TestFreeTier(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, true)
	assert.Equal(t, models.PaymentFreeTier, rec.PaymentState)

	_, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "x")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	ev, err := f.svc.VerifyFree(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ev.Found)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFreeVerified, got.State)
	assert.Equal(t, *ev, got.Result)

	_, err = f.svc.VerifyFree(ctx, rec.ID)
	require.NoError(t, err, "verification can be repeated")

	// free tier is never gated
	rc, _, err := f.svc.Download(ctx, rec.ID)
	require.NoError(t, err)
	rc.Close()
}

func TestArtifactMissing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.upload(t, false)

	_, _, err := f.svc.Preview(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrArtifactMissing)

	out, err := f.svc.Process(ctx, rec.ID, models.ModeWatermark, "gone")
	require.NoError(t, err)
	f.pay(t, rec.ID)

	f.removeArtifact(t, out.ProcessedKey)
	f.removeArtifact(t, out.PreviewKey)

	_, _, err = f.svc.Download(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrArtifactMissing)
	_, _, err = f.svc.Preview(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrArtifactMissing)
	_, err = f.svc.VerifyFree(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrArtifactMissing)
}

func TestSweep(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	old := f.upload(t, false)
	_, err := f.svc.Process(ctx, old.ID, models.ModeWatermark, "old")
	require.NoError(t, err)
	f.pay(t, old.ID)

	vanished := f.upload(t, true)
	f.removeArtifact(t, vanished.SourceKey)

	f.clock.Advance(20 * time.Hour)
	fresh := f.upload(t, false)
	f.clock.Advance(5 * time.Hour)

	before, err := f.svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), before)

	n, err := f.svc.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err, "missing artifacts are not an error")
	assert.Equal(t, 2, n)

	after, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before-2, after)

	_, err = f.svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.storeRoot, filepath.FromSlash(old.SourceKey)))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	n, err = f.svc.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
