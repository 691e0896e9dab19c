package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/clients"
)

func newTestStaging(t *testing.T, withRemote bool) (*StagingArea, *clients.LocalStore, *clients.LocalStore) {
	t.Helper()
	local, err := clients.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	var remote *clients.LocalStore
	var remoteStore clients.ObjectStore
	if withRemote {
		remote, err = clients.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		remoteStore = remote
	}
	staging, err := NewStagingArea(local, remoteStore, quietLogger())
	require.NoError(t, err)
	return staging, local, remote
}

func TestStagingArea_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	staging, _, remote := newTestStaging(t, true)

	name, err := staging.Save(ctx, `..\1c/import0_1.xml`, []byte("<a/>"))
	require.NoError(t, err)
	assert.Equal(t, "1c_import0_1.xml", name)

	data, err := staging.Load(ctx, "1c/import0_1.xml")
	require.NoError(t, err)
	assert.Equal(t, "<a/>", string(data))

	mirrored, err := remote.Download(ctx, clients.ExchangePrefix+name)
	require.NoError(t, err)
	assert.Equal(t, "<a/>", string(mirrored))
}

func TestStagingArea_LoadFallsBackToRemote(t *testing.T) {
	ctx := context.Background()
	staging, _, remote := newTestStaging(t, true)
	_, err := remote.Upload(ctx, clients.ExchangePrefix+"offers.xml", []byte("<b/>"), "application/xml")
	require.NoError(t, err)

	data, err := staging.Load(ctx, "offers.xml")
	require.NoError(t, err)
	assert.Equal(t, "<b/>", string(data))

	_, err = staging.Load(ctx, "missing.xml")
	assert.ErrorIs(t, err, ErrStagedFileNotFound)
}

func TestStagingArea_FeedsInImportOrder(t *testing.T) {
	ctx := context.Background()
	staging, _, _ := newTestStaging(t, false)
	for _, name := range []string{"offers0_1.xml", "notes.txt", "import0_1.xml", "rests.xml", "import0_2.xml"} {
		_, err := staging.Save(ctx, name, []byte("x"))
		require.NoError(t, err)
	}

	feeds, err := staging.LocalFeeds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"import0_1.xml", "import0_2.xml", "offers0_1.xml", "rests.xml"}, feeds)

	stored, err := staging.StoredFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.False(t, staging.HasRemote())
}

func TestNewStagingArea_RequiresAStore(t *testing.T) {
	_, err := NewStagingArea(nil, nil, quietLogger())
	assert.Error(t, err)
}
