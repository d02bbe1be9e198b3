package gomafia

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"GomafiaSync/internal/model"
	"GomafiaSync/internal/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	cases := map[int64]int{-3: 0, 0: 0, 1: 1, 10: 1, 11: 2, 20: 2, 25: 3}
	for total, want := range cases {
		assert.Equal(t, want, PageCount(total), "total=%d", total)
	}
}

func TestFetchSnapshot_PagesFetched(t *testing.T) {
	for _, tc := range []struct {
		total int
		pages int
	}{
		{total: 10, pages: 1},
		{total: 11, pages: 2},
		{total: 25, pages: 3},
	} {
		site := newFakeSite()
		site.players[42] = fakePlayer{user: sampleUser(42), total: tc.total, entries: sampleEntries(tc.total)}
		a := newTestAdapter(t, site)

		snap, err := a.FetchSnapshot(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, tc.pages, site.requestCount(), "total=%d", tc.total)
		assert.Equal(t, tc.pages, snap.PageCount)
		assert.Len(t, snap.Pages, tc.pages)
		assert.False(t, snap.Empty)
		assert.EqualValues(t, tc.total, snap.TotalItems)
	}
}

func TestFetchSnapshot_RequestShape(t *testing.T) {
	site := newFakeSite()
	site.players[7] = fakePlayer{user: sampleUser(7), total: 12, entries: sampleEntries(12)}
	a := newTestAdapter(t, site)

	_, err := a.FetchSnapshot(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, site.requests, 2)
	assert.Equal(t, "/stats/7?page=1&tab=history", site.requests[0])
	assert.Equal(t, "/stats/7?page=2&tab=history", site.requests[1])
}

func TestFetchSnapshot_EmptyHistory(t *testing.T) {
	for name, total := range map[string]any{
		"absent":  nil,
		"zero":    0,
		"garbage": "Неизвестно",
	} {
		t.Run(name, func(t *testing.T) {
			site := newFakeSite()
			site.players[5] = fakePlayer{user: sampleUser(5), total: total}
			a := newTestAdapter(t, site)

			snap, err := a.FetchSnapshot(context.Background(), 5)
			require.NoError(t, err)
			assert.True(t, snap.Empty)
			assert.Equal(t, 1, site.requestCount())

			records, err := a.ConvertToDBModel(snap)
			require.NoError(t, err)
			assert.Equal(t, int64(5), records.Subject.ID)
			assert.Empty(t, records.Events)
			assert.Empty(t, records.Games)
		})
	}
}

func TestFetchSnapshot_SubjectNotFound(t *testing.T) {
	site := newFakeSite()
	a := newTestAdapter(t, site)

	_, err := a.FetchSnapshot(context.Background(), 404404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrSubjectNotFound))
	assert.Equal(t, syncerr.OutcomeNotFound, syncerr.Classify(err))
	assert.False(t, syncerr.Classify(err).Retryable())
}

func TestFetchSnapshot_SubjectNotFoundByStatus(t *testing.T) {
	site := newFakeSite()
	site.failPage[1] = http.StatusNotFound
	a := newTestAdapter(t, site)

	_, err := a.FetchSnapshot(context.Background(), 1)
	assert.True(t, errors.Is(err, syncerr.ErrSubjectNotFound))
}

func TestFetchSnapshot_FirstPageTransportError(t *testing.T) {
	site := newFakeSite()
	site.players[3] = fakePlayer{user: sampleUser(3), total: 5, entries: sampleEntries(5)}
	site.failPage[1] = http.StatusBadGateway
	a := newTestAdapter(t, site)

	_, err := a.FetchSnapshot(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrTransport))
	assert.False(t, errors.Is(err, syncerr.ErrPaginationFailed))
	assert.True(t, syncerr.Classify(err).Retryable())
}

func TestFetchSnapshot_PageTwoOfThreeFails(t *testing.T) {
	site := newFakeSite()
	site.players[9] = fakePlayer{user: sampleUser(9), total: 25, entries: sampleEntries(25)}
	site.failPage[2] = http.StatusInternalServerError
	a := newTestAdapter(t, site)

	snap, err := a.FetchSnapshot(context.Background(), 9)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, syncerr.ErrPaginationFailed))
	assert.True(t, errors.Is(err, syncerr.ErrTransport))

	var e *syncerr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 2, e.Page)
	assert.Equal(t, 1, e.LastPage)
	assert.Equal(t, syncerr.OutcomeTransportError, syncerr.Classify(err))
	// 第 3 页不再请求
	assert.Equal(t, 2, site.requestCount())
}

func TestFetchSnapshot_LaterPageNotFoundIsPaginationFailure(t *testing.T) {
	site := newFakeSite()
	site.players[9] = fakePlayer{user: sampleUser(9), total: 15, entries: sampleEntries(15)}
	site.failPage[2] = http.StatusNotFound
	a := newTestAdapter(t, site)

	_, err := a.FetchSnapshot(context.Background(), 9)
	assert.True(t, errors.Is(err, syncerr.ErrPaginationFailed))
	assert.NotEqual(t, syncerr.OutcomeNotFound, syncerr.Classify(err))
}

func TestFetchSnapshot_Canceled(t *testing.T) {
	site := newFakeSite()
	site.players[9] = fakePlayer{user: sampleUser(9), total: 5, entries: sampleEntries(5)}
	a := newTestAdapter(t, site)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.FetchSnapshot(ctx, 9)
	require.Error(t, err)
	assert.Equal(t, syncerr.OutcomeCanceled, syncerr.Classify(err))
	assert.Zero(t, site.requestCount())
}

func TestFetchSnapshot_MissingUserBlock(t *testing.T) {
	site := newFakeSite()
	site.players[8] = fakePlayer{user: nil, total: 3, entries: sampleEntries(3)}
	a := newTestAdapter(t, site)

	_, err := a.FetchSnapshot(context.Background(), 8)
	assert.True(t, errors.Is(err, syncerr.ErrSubjectNotFound))
}

func TestScenario_TwentyFiveItems(t *testing.T) {
	site := newFakeSite()
	site.players[77] = fakePlayer{user: sampleUser(77), total: 25, entries: sampleEntries(25)}
	a := newTestAdapter(t, site)

	snap, err := a.FetchSnapshot(context.Background(), 77)
	require.NoError(t, err)
	require.Len(t, snap.Pages, 3)
	assert.Len(t, snap.Pages[0].ServerData.History, 10)
	assert.Len(t, snap.Pages[1].ServerData.History, 10)
	assert.Len(t, snap.Pages[2].ServerData.History, 5)

	records, err := a.ConvertToDBModel(snap)
	require.NoError(t, err)
	require.Len(t, records.Events, 25)
	assert.Len(t, records.Games, 50)
	for i, ev := range records.Events {
		assert.Equal(t, int64(100+i), ev.TournamentID, "first-seen order")
		assert.Equal(t, int64(77), ev.UserID)
	}
	assert.Equal(t, "player77", records.Subject.Login)
	assert.Equal(t, 1234.5, records.Subject.Elo)
	assert.True(t, records.Subject.IsPaid)
	assert.Equal(t, model.NoAvatar, records.Subject.AvatarLink)
}
