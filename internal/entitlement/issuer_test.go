// AngelaMos | 2026
// issuer_test.go

package entitlement

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var licenseKeyPattern = regexp.MustCompile(
	`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`,
)

func TestIssueForOrder(t *testing.T) {
	ctx := context.Background()

	grant := IssueGrant{
		UserID:  "user-1",
		OrderID: "order-1",
		Items: []IssueItem{
			{ProductID: "prod-1", DownloadLimit: 5},
			{ProductID: "prod-2", DownloadLimit: 3},
		},
	}

	t.Run("issues a download and a license per item", func(t *testing.T) {
		repo := newFakeRepository()
		issuer := NewIssuer(5, 720*time.Hour)

		require.NoError(t, issuer.IssueForOrder(ctx, repo, grant))

		assert.Len(t, repo.downloads, 2)
		assert.Len(t, repo.licenses, 2)

		for _, d := range repo.downloads {
			assert.Equal(t, "user-1", d.UserID)
			assert.Equal(t, "order-1", d.OrderID)
			assert.NotEmpty(t, d.Token)
			require.NotNil(t, d.ExpiresAt)
			assert.True(t, d.ExpiresAt.After(time.Now()))
		}

		for _, k := range repo.licenses {
			assert.Equal(t, 5, k.MaxActivations)
			assert.Regexp(t, licenseKeyPattern, k.Key)
		}
	})

	t.Run("download limits come from the product", func(t *testing.T) {
		repo := newFakeRepository()
		issuer := NewIssuer(5, 0)

		require.NoError(t, issuer.IssueForOrder(ctx, repo, grant))

		limits := map[string]int{}
		for _, d := range repo.downloads {
			limits[d.ProductID] = d.MaxDownloads
		}
		assert.Equal(t, map[string]int{"prod-1": 5, "prod-2": 3}, limits)
	})

	t.Run("zero expiry issues open-ended grants", func(t *testing.T) {
		repo := newFakeRepository()
		issuer := NewIssuer(5, 0)

		require.NoError(t, issuer.IssueForOrder(ctx, repo, grant))

		for _, d := range repo.downloads {
			assert.Nil(t, d.ExpiresAt)
		}
	})

	t.Run("replayed completion issues nothing new", func(t *testing.T) {
		repo := newFakeRepository()
		issuer := NewIssuer(5, 720*time.Hour)

		require.NoError(t, issuer.IssueForOrder(ctx, repo, grant))

		tokens := map[string]string{}
		for _, d := range repo.downloads {
			tokens[d.ProductID] = d.Token
		}

		require.NoError(t, issuer.IssueForOrder(ctx, repo, grant))

		assert.Len(t, repo.downloads, 2)
		assert.Len(t, repo.licenses, 2)
		for _, d := range repo.downloads {
			assert.Equal(t, tokens[d.ProductID], d.Token)
		}
	})
}
