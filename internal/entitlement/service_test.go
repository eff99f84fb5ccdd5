// AngelaMos | 2026
// service_test.go

package entitlement

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/digitalstore/internal/catalog"
	"github.com/angelamos/digitalstore/internal/core"
	"github.com/angelamos/digitalstore/internal/order"
)

// fakeRepository mirrors the conditional updates the SQL layer performs:
// ConsumeDownload and ActivateLicense only succeed while the grant has a
// free slot, under a lock so concurrent callers contend the way database
// rows do.
type fakeRepository struct {
	mu        sync.Mutex
	downloads map[string]*Download
	licenses  map[string]*LicenseKey

	consumeCalls  int
	activateCalls int

	// forceLoseConsume/forceLoseActivate simulate losing the conditional
	// update to a racing request regardless of local state.
	forceLoseConsume  bool
	forceLoseActivate bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		downloads: make(map[string]*Download),
		licenses:  make(map[string]*LicenseKey),
	}
}

func (f *fakeRepository) CreateDownload(
	_ context.Context,
	download *Download,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.downloads {
		if d.OrderID == download.OrderID && d.ProductID == download.ProductID {
			return false, nil
		}
	}
	f.downloads[download.ID] = download
	return true, nil
}

func (f *fakeRepository) CreateLicenseKey(
	_ context.Context,
	key *LicenseKey,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.licenses {
		if k.OrderID == key.OrderID && k.ProductID == key.ProductID {
			return false, nil
		}
	}
	f.licenses[key.ID] = key
	return true, nil
}

func (f *fakeRepository) GetDownloadByToken(
	_ context.Context,
	token string,
) (*Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.downloads {
		if d.Token == token {
			copied := *d
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepository) GetDownloadByID(
	_ context.Context,
	id string,
) (*Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.downloads[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fakeRepository) GetLicenseByKey(
	_ context.Context,
	key string,
) (*LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.licenses {
		if k.Key == key {
			copied := *k
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepository) GetLicenseByID(
	_ context.Context,
	id string,
) (*LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.licenses[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *k
	return &copied, nil
}

func (f *fakeRepository) ConsumeDownload(
	_ context.Context,
	id string,
	now time.Time,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumeCalls++
	if f.forceLoseConsume {
		return false, nil
	}
	d, ok := f.downloads[id]
	if !ok || !d.ValidAt(now) {
		return false, nil
	}
	d.DownloadCount++
	t := now
	d.LastDownloadedAt = &t
	return true, nil
}

func (f *fakeRepository) ActivateLicense(
	_ context.Context,
	id string,
	now time.Time,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activateCalls++
	if f.forceLoseActivate {
		return false, nil
	}
	k, ok := f.licenses[id]
	if !ok || !k.ValidAt(now) {
		return false, nil
	}
	k.ActivationCount++
	return true, nil
}

func (f *fakeRepository) ListDownloadsForUser(
	_ context.Context,
	userID string,
) ([]Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Download
	for _, d := range f.downloads {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListLicensesForUser(
	_ context.Context,
	userID string,
) ([]LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []LicenseKey
	for _, k := range f.licenses {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListDownloadsForOrder(
	_ context.Context,
	orderID string,
) ([]Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Download
	for _, d := range f.downloads {
		if d.OrderID == orderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListLicensesForOrder(
	_ context.Context,
	orderID string,
) ([]LicenseKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []LicenseKey
	for _, k := range f.licenses {
		if k.OrderID == orderID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListDownloads(
	_ context.Context,
	limit, offset int,
) ([]Download, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]Download, 0, len(f.downloads))
	for _, d := range f.downloads {
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeRepository) ListLicenses(
	_ context.Context,
	limit, offset int,
) ([]LicenseKey, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]LicenseKey, 0, len(f.licenses))
	for _, k := range f.licenses {
		all = append(all, *k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeRepository) ResetDownload(
	_ context.Context,
	id string,
	expiresAt *time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.downloads[id]
	if !ok {
		return core.ErrNotFound
	}
	d.DownloadCount = 0
	d.ExpiresAt = expiresAt
	d.LastDownloadedAt = nil
	return nil
}

func (f *fakeRepository) SetLicenseActive(
	_ context.Context,
	id string,
	active bool,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.licenses[id]
	if !ok {
		return core.ErrNotFound
	}
	k.IsActive = active
	return nil
}

func (f *fakeRepository) RevokeForOrder(
	_ context.Context,
	orderID string,
	now time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.licenses {
		if k.OrderID == orderID {
			k.IsActive = false
		}
	}
	for _, d := range f.downloads {
		if d.OrderID == orderID {
			t := now
			d.ExpiresAt = &t
		}
	}
	return nil
}

type fakeProductSource struct {
	products map[string]*catalog.Product
}

func (f *fakeProductSource) GetProduct(
	_ context.Context,
	id string,
) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

type fakeOrderSource struct {
	orders map[string][]order.Order
}

func (f *fakeOrderSource) ListForUser(
	_ context.Context,
	userID string,
	params order.ListOrdersParams,
) ([]order.Order, int, error) {
	var out []order.Order
	for _, o := range f.orders[userID] {
		if params.Status == "" || o.Status == params.Status {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func setupDownloadTest(t *testing.T) (*Service, *fakeRepository, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "product.zip")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	repo := newFakeRepository()
	products := &fakeProductSource{
		products: map[string]*catalog.Product{
			"prod-1": {
				ID:       "prod-1",
				FilePath: "product.zip",
				FileName: "installer.zip",
				IsActive: true,
			},
		},
	}

	return NewService(repo, products, &fakeOrderSource{}, dir), repo, path
}

func newLicenseService(repo *fakeRepository, t *testing.T) *Service {
	t.Helper()
	return NewService(repo, &fakeProductSource{}, &fakeOrderSource{}, t.TempDir())
}

func TestResolveDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes one unit and returns file info", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		info, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		require.NoError(t, err)

		assert.Equal(t, "installer.zip", info.Name)
		assert.Equal(t, int64(7), info.Size)
		assert.Equal(t, 1, info.Download.DownloadCount)
		assert.Equal(t, 1, repo.consumeCalls)
	})

	t.Run("consuming stamps the last download time", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		require.NoError(t, err)

		require.NotNil(t, repo.downloads["dl-1"].LastDownloadedAt)
		assert.WithinDuration(t,
			time.Now(), *repo.downloads["dl-1"].LastDownloadedAt, time.Minute)
	})

	t.Run("token owned by someone else reads as not found", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-2")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.Zero(t, repo.consumeCalls)
	})

	t.Run("expired grant is forbidden", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		past := time.Now().Add(-time.Hour)
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
			ExpiresAt:    &past,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		assert.ErrorIs(t, err, core.ErrForbidden)
		assert.Contains(t, err.Error(), "expired")
		assert.Zero(t, repo.consumeCalls)
	})

	t.Run("exhausted grant is forbidden", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:            "dl-1",
			UserID:        "user-1",
			ProductID:     "prod-1",
			Token:         "token-1",
			DownloadCount: 3,
			MaxDownloads:  3,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		assert.ErrorIs(t, err, core.ErrForbidden)
		assert.Contains(t, err.Error(), "limit")
	})

	t.Run("missing file does not consume a download", func(t *testing.T) {
		svc, repo, path := setupDownloadTest(t)
		require.NoError(t, os.Remove(path))
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.Zero(t, repo.consumeCalls)
	})

	t.Run("losing the last unit to a concurrent request", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.forceLoseConsume = true
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		assert.ErrorIs(t, err, core.ErrForbidden)
	})

	t.Run("one slot left admits exactly one of many", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:            "dl-1",
			UserID:        "user-1",
			ProductID:     "prod-1",
			Token:         "token-1",
			DownloadCount: 2,
			MaxDownloads:  3,
		}

		const callers = 16
		results := make(chan error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for err := range results {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, core.ErrForbidden)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 3, repo.downloads["dl-1"].DownloadCount)
	})

	t.Run("file path escaping the files dir is rejected", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		svc.products.(*fakeProductSource).products["prod-1"].FilePath = "../secret"
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		_, err := svc.ResolveDownload(ctx, "token-1", "user-1")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _, _ := setupDownloadTest(t)

		_, err := svc.ResolveDownload(ctx, "nope", "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestGetDownloadInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves without consuming", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:            "dl-1",
			UserID:        "user-1",
			ProductID:     "prod-1",
			Token:         "token-1",
			DownloadCount: 1,
			MaxDownloads:  3,
		}

		download, err := svc.GetDownloadInfo(ctx, "token-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, download.DownloadCount)
		assert.Zero(t, repo.consumeCalls)
	})

	t.Run("exhausted grant still resolves", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:            "dl-1",
			UserID:        "user-1",
			ProductID:     "prod-1",
			Token:         "token-1",
			DownloadCount: 3,
			MaxDownloads:  3,
		}

		download, err := svc.GetDownloadInfo(ctx, "token-1", "user-1")
		require.NoError(t, err)
		assert.False(t, download.ValidAt(time.Now()))
		assert.Equal(t,
			ReasonDownloadLimitExceeded,
			download.InvalidReason(time.Now()))
	})

	t.Run("token owned by someone else reads as not found", func(t *testing.T) {
		svc, repo, _ := setupDownloadTest(t)
		repo.downloads["dl-1"] = &Download{
			ID:           "dl-1",
			UserID:       "user-1",
			ProductID:    "prod-1",
			Token:        "token-1",
			MaxDownloads: 3,
		}

		_, err := svc.GetDownloadInfo(ctx, "token-1", "user-2")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _, _ := setupDownloadTest(t)

		_, err := svc.GetDownloadInfo(ctx, "nope", "user-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestListPurchases(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepository()
	repo.downloads["dl-1"] = &Download{
		ID:        "dl-1",
		UserID:    "user-1",
		OrderID:   "ord-1",
		ProductID: "prod-1",
		Token:     "token-1",
	}
	repo.licenses["lic-1"] = &LicenseKey{
		ID:        "lic-1",
		UserID:    "user-1",
		OrderID:   "ord-1",
		ProductID: "prod-1",
		Key:       "AAAA-BBBB-CCCC-DDDD",
	}

	orders := &fakeOrderSource{
		orders: map[string][]order.Order{
			"user-1": {
				{ID: "ord-1", OrderNumber: "ORD-1", Status: order.StatusCompleted},
				{ID: "ord-2", OrderNumber: "ORD-2", Status: order.StatusPending},
			},
		},
	}
	svc := NewService(repo, &fakeProductSource{}, orders, t.TempDir())

	t.Run("completed orders only, with their grants", func(t *testing.T) {
		purchases, err := svc.ListPurchases(ctx, "user-1")
		require.NoError(t, err)

		require.Len(t, purchases, 1)
		assert.Equal(t, "ord-1", purchases[0].Order.ID)
		require.Len(t, purchases[0].Downloads, 1)
		require.Len(t, purchases[0].Licenses, 1)
		assert.Equal(t, "token-1", purchases[0].Downloads[0].Token)
	})

	t.Run("no purchases", func(t *testing.T) {
		purchases, err := svc.ListPurchases(ctx, "user-2")
		require.NoError(t, err)
		assert.Empty(t, purchases)
	})
}

func TestListAllGrants(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepository()
	for _, id := range []string{"dl-1", "dl-2", "dl-3"} {
		repo.downloads[id] = &Download{ID: id, UserID: "user-1"}
	}
	repo.licenses["lic-1"] = &LicenseKey{ID: "lic-1", UserID: "user-1"}
	svc := newLicenseService(repo, t)

	t.Run("downloads are paged", func(t *testing.T) {
		downloads, total, err := svc.ListAllDownloads(ctx, ListParams{
			Page:     2,
			PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, downloads, 1)
	})

	t.Run("zero params normalize to the first page", func(t *testing.T) {
		downloads, total, err := svc.ListAllDownloads(ctx, ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, downloads, 3)
	})

	t.Run("licenses", func(t *testing.T) {
		licenses, total, err := svc.ListAllLicenses(ctx, ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, licenses, 1)
	})
}

func TestValidateLicense(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepository()
	repo.licenses["lic-1"] = &LicenseKey{
		ID:             "lic-1",
		Key:            "AAAA-BBBB-CCCC-DDDD",
		ProductID:      "prod-1",
		IsActive:       true,
		MaxActivations: 5,
	}
	repo.licenses["lic-2"] = &LicenseKey{
		ID:             "lic-2",
		Key:            "EEEE-FFFF-GGGG-HHHH",
		ProductID:      "prod-2",
		IsActive:       false,
		MaxActivations: 5,
	}
	repo.licenses["lic-3"] = &LicenseKey{
		ID:              "lic-3",
		Key:             "IIII-JJJJ-KKKK-LLLL",
		ProductID:       "prod-3",
		IsActive:        true,
		ActivationCount: 5,
		MaxActivations:  5,
	}

	svc := newLicenseService(repo, t)

	t.Run("valid key", func(t *testing.T) {
		resp, err := svc.ValidateLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
		require.NoError(t, err)
		assert.True(t, resp.Valid)
		assert.Equal(t, "prod-1", resp.ProductID)
	})

	t.Run("key is normalized before lookup", func(t *testing.T) {
		resp, err := svc.ValidateLicense(ctx, "  aaaa-bbbb-cccc-dddd ")
		require.NoError(t, err)
		assert.True(t, resp.Valid)
	})

	t.Run("deactivated key", func(t *testing.T) {
		resp, err := svc.ValidateLicense(ctx, "EEEE-FFFF-GGGG-HHHH")
		require.NoError(t, err)
		assert.False(t, resp.Valid)
		assert.Equal(t, ReasonDeactivated, resp.Reason)
	})

	t.Run("exhausted key is invalid", func(t *testing.T) {
		resp, err := svc.ValidateLicense(ctx, "IIII-JJJJ-KKKK-LLLL")
		require.NoError(t, err)
		assert.False(t, resp.Valid)
		assert.Equal(t, ReasonActivationLimitExceeded, resp.Reason)
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		_, err := svc.ValidateLicense(ctx, "ZZZZ-ZZZZ-ZZZZ-ZZZZ")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestActivateLicense(t *testing.T) {
	ctx := context.Background()

	t.Run("activation consumes a slot", func(t *testing.T) {
		repo := newFakeRepository()
		repo.licenses["lic-1"] = &LicenseKey{
			ID:              "lic-1",
			Key:             "AAAA-BBBB-CCCC-DDDD",
			IsActive:        true,
			ActivationCount: 1,
			MaxActivations:  5,
		}
		svc := newLicenseService(repo, t)

		resp, err := svc.ActivateLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
		require.NoError(t, err)
		assert.True(t, resp.Activated)
		assert.Equal(t, 2, resp.ActivationCount)
		assert.Equal(t, 5, resp.MaxActivations)
	})

	t.Run("exhausted key reports the limit", func(t *testing.T) {
		repo := newFakeRepository()
		repo.licenses["lic-1"] = &LicenseKey{
			ID:              "lic-1",
			Key:             "AAAA-BBBB-CCCC-DDDD",
			IsActive:        true,
			ActivationCount: 5,
			MaxActivations:  5,
		}
		svc := newLicenseService(repo, t)

		resp, err := svc.ActivateLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
		require.NoError(t, err)
		assert.False(t, resp.Activated)
		assert.Equal(t, ReasonActivationLimitExceeded, resp.Reason)
	})

	t.Run("deactivated key reports deactivated", func(t *testing.T) {
		repo := newFakeRepository()
		repo.licenses["lic-1"] = &LicenseKey{
			ID:             "lic-1",
			Key:            "AAAA-BBBB-CCCC-DDDD",
			IsActive:       false,
			MaxActivations: 5,
		}
		svc := newLicenseService(repo, t)

		resp, err := svc.ActivateLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
		require.NoError(t, err)
		assert.False(t, resp.Activated)
		assert.Equal(t, ReasonDeactivated, resp.Reason)
	})

	t.Run("one slot left admits exactly one of many", func(t *testing.T) {
		repo := newFakeRepository()
		repo.licenses["lic-1"] = &LicenseKey{
			ID:              "lic-1",
			Key:             "AAAA-BBBB-CCCC-DDDD",
			IsActive:        true,
			ActivationCount: 4,
			MaxActivations:  5,
		}
		svc := newLicenseService(repo, t)

		const callers = 16
		results := make(chan *ActivateLicenseResponse, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := svc.ActivateLicense(ctx, "AAAA-BBBB-CCCC-DDDD")
				assert.NoError(t, err)
				results <- resp
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for resp := range results {
			if resp != nil && resp.Activated {
				wins++
			} else {
				assert.Equal(t, ReasonActivationLimitExceeded, resp.Reason)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 5, repo.licenses["lic-1"].ActivationCount)
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newLicenseService(repo, t)

		_, err := svc.ActivateLicense(ctx, "ZZZZ-ZZZZ-ZZZZ-ZZZZ")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.Zero(t, repo.activateCalls)
	})
}

func TestResetDownload(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepository()
	past := time.Now().Add(-time.Hour)
	repo.downloads["dl-1"] = &Download{
		ID:               "dl-1",
		UserID:           "user-1",
		Token:            "token-1",
		DownloadCount:    5,
		MaxDownloads:     5,
		ExpiresAt:        &past,
		LastDownloadedAt: &past,
	}
	svc := newLicenseService(repo, t)

	download, err := svc.ResetDownload(ctx, "dl-1", 24*time.Hour)
	require.NoError(t, err)

	assert.Zero(t, download.DownloadCount)
	assert.Nil(t, download.LastDownloadedAt)
	require.NotNil(t, download.ExpiresAt)
	assert.True(t, download.ExpiresAt.After(time.Now()))
}
