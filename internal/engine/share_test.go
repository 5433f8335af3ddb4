package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/duoplan/internal/codec"
	"github.com/roach88/duoplan/internal/link"
	"github.com/roach88/duoplan/internal/plan"
)

func TestGenerateShareLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm, "run 5k")
	require.NoError(t, err)
	_, err = f.eng.AddStar(ctx, plan.User2)
	require.NoError(t, err)

	share, err := f.eng.GenerateShareLink(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), share.Version)
	assert.False(t, share.Truncated)
	assert.True(t, strings.HasPrefix(share.URL, baseAddress+"?data="))
	assert.Equal(t, share.URL, f.tr.Address())
	assert.Equal(t, share.URL, f.clip.Last())
	assert.Equal(t, int64(1), f.eng.Version())
	assert.True(t, f.hasNotice(LevelInfo, msgLinkCopied))

	token, ok, err := link.TokenOf(share.URL)
	require.NoError(t, err)
	require.True(t, ok)
	decoded, err := f.codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, f.eng.Snapshot(), decoded, "the token carries the full state at the new version")

	raw, ok := f.kv.Get(KeyShared)
	require.True(t, ok)
	assert.Contains(t, raw, `"version":1`)
}

func TestGenerateShareLink_VersionIncrementsEachTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		share, err := f.eng.GenerateShareLink(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, share.Version)
	}
	assert.Equal(t, 3, f.tr.Writes())
}

func TestGenerateShareLink_OwnTokenIsNotAnUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.GenerateShareLink(ctx)
	require.NoError(t, err)

	assert.False(t, f.eng.CheckForUpdates(ctx))
	assert.Equal(t, int64(1), f.eng.Version())
}

func TestGenerateShareLink_ClipboardFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.clip.Fail = true

	share, err := f.eng.GenerateShareLink(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, share.URL)
	assert.Equal(t, int64(1), f.eng.Version())
	assert.True(t, f.hasNotice(LevelWarn, msgCopyFailed))
	assert.False(t, f.hasNotice(LevelInfo, msgLinkCopied))
}

func TestGenerateShareLink_Truncated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 40 {
		_, err := f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm,
			fmt.Sprintf("short-term plan number %02d with some detail", i))
		require.NoError(t, err)
	}

	share, err := f.eng.GenerateShareLink(ctx)
	require.NoError(t, err)
	assert.True(t, share.Truncated)
	assert.True(t, f.hasNotice(LevelWarn, msgTruncated))

	token, _, err := link.TokenOf(share.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(token), codec.DefaultSizeBudget)

	decoded, err := f.codec.Decode(token)
	require.NoError(t, err)
	require.Len(t, decoded.User1.ShortTermPlans, codec.ShortTermLimit)
	assert.Equal(t, "id-001", decoded.User1.ShortTermPlans[0].ID)
	assert.Equal(t, "id-015", decoded.User1.ShortTermPlans[14].ID, "the earliest items are kept")

	u, _ := f.eng.User(plan.User1)
	assert.Len(t, u.ShortTermPlans, 40, "local state is never truncated")
}

func TestGenerateShareLink_PayloadTooLarge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm, strings.Repeat("x", 1600))
	require.NoError(t, err)
	saves := f.kv.Saves()

	share, err := f.eng.GenerateShareLink(ctx)
	require.Error(t, err)
	assert.True(t, plan.IsPayloadTooLarge(err))

	assert.Equal(t, ShareLink{}, share)
	assert.Equal(t, int64(0), f.eng.Version(), "version only advances when a token was written")
	assert.Equal(t, 0, f.tr.Writes())
	assert.Equal(t, baseAddress, f.tr.Address())
	assert.Equal(t, "", f.clip.Last())
	assert.Equal(t, saves, f.kv.Saves())
	assert.True(t, f.hasNotice(LevelError, msgTooLarge))
}

func TestGenerateShareLink_TransportFailure(t *testing.T) {
	f := newFixture(t)
	f.tr.WriteErr = plan.NewError(plan.ErrCodeTransportUnavailable, "read-only", nil)

	_, err := f.eng.GenerateShareLink(context.Background())
	require.Error(t, err)
	assert.True(t, plan.IsTransportUnavailable(err))
	assert.Equal(t, int64(0), f.eng.Version())
	assert.True(t, f.hasNotice(LevelError, msgShareFailed))
}

func TestGenerateShareLink_Compressed(t *testing.T) {
	f := newFixture(t)
	f.eng.codec = codec.New(f.clock, codec.WithCompression(true))
	ctx := context.Background()

	for i := range 40 {
		_, err := f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm,
			fmt.Sprintf("short-term plan number %02d with some detail", i))
		require.NoError(t, err)
	}

	share, err := f.eng.GenerateShareLink(ctx)
	require.NoError(t, err)
	assert.False(t, share.Truncated, "compression fits the full state")

	// A build without compression enabled still reads it.
	token, _, err := link.TokenOf(share.URL)
	require.NoError(t, err)
	decoded, err := f.codec.Decode(token)
	require.NoError(t, err)
	assert.Len(t, decoded.User1.ShortTermPlans, 40)
}

func TestCreateDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.eng.CreateDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-001", id)
	assert.Equal(t, id, f.eng.DocumentID())

	doc, err := link.DocumentOf(f.tr.Address())
	require.NoError(t, err)
	assert.Equal(t, id, doc)

	_, ok, err := link.TokenOf(f.tr.Address())
	require.NoError(t, err)
	assert.True(t, ok, "a share link is published immediately")
	assert.Equal(t, int64(1), f.eng.Version())
	assert.Equal(t, f.tr.Address(), f.clip.Last())
	assert.True(t, f.hasNotice(LevelInfo, msgDocCreated))
}

func TestCreateDocument_TransportFailure(t *testing.T) {
	f := newFixture(t)
	f.tr.WriteErr = plan.NewError(plan.ErrCodeTransportUnavailable, "read-only", nil)

	id, err := f.eng.CreateDocument(context.Background())
	require.Error(t, err)
	assert.Equal(t, "", id)
	assert.Equal(t, "", f.eng.DocumentID())
	assert.True(t, f.hasNotice(LevelError, msgDocFailed))
}

func TestAutoPublish(t *testing.T) {
	f := newFixture(t, WithAutoPublish(true))
	ctx := context.Background()

	// Without a document handle nothing is published.
	_, err := f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm, "before")
	require.NoError(t, err)
	assert.Equal(t, 0, f.tr.Writes())

	_, err = f.eng.CreateDocument(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.tr.Writes())
	copied := f.clip.Last()

	_, err = f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm, "after")
	require.NoError(t, err)
	assert.Equal(t, 2, f.tr.Writes())
	assert.Equal(t, int64(2), f.eng.Version())
	assert.Equal(t, copied, f.clip.Last(), "auto-publish does not touch the clipboard")

	token, _, err := link.TokenOf(f.tr.Address())
	require.NoError(t, err)
	decoded, err := f.codec.Decode(token)
	require.NoError(t, err)
	assert.Len(t, decoded.User1.ShortTermPlans, 2)

	// A miss publishes nothing.
	_, err = f.eng.DeletePlanItem(ctx, plan.User1, plan.ShortTerm, "nope")
	require.NoError(t, err)
	assert.Equal(t, 2, f.tr.Writes())
}

func TestAutoPublish_Disabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.CreateDocument(ctx)
	require.NoError(t, err)
	_, err = f.eng.AddPlanItem(ctx, plan.User1, plan.ShortTerm, "x")
	require.NoError(t, err)

	assert.Equal(t, 1, f.tr.Writes())
	assert.Equal(t, int64(1), f.eng.Version())
}
