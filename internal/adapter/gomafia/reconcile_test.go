package gomafia

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"GomafiaSync/internal/model"
	"GomafiaSync/internal/syncerr"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietAdapter() *Adapter {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAdapterWithFetcher(nil, logger)
}

// snapshotFromJSON 每个元素是一页 serverData 的 JSON
func snapshotFromJSON(t *testing.T, subjectID int64, pages ...string) *model.Snapshot {
	t.Helper()
	snap := &model.Snapshot{SubjectID: subjectID, PageCount: len(pages)}
	for i, raw := range pages {
		var sd model.ServerData
		require.NoError(t, json.Unmarshal([]byte(raw), &sd))
		snap.Pages = append(snap.Pages, &model.PageBlob{Page: i + 1, ServerData: &sd})
	}
	return snap
}

func TestConvertToDBModel_DefaultsForMissingFields(t *testing.T) {
	snap := snapshotFromJSON(t, 11, `{
		"user": {"id": 11, "login": "kot", "avatar_link": null, "is_paid": "0"},
		"historyTotal": 1,
		"history": [{"id": 500, "title": "Кубок", "date_start": "2024-03-01", "place": null, "gg": "n/a",
			"games": [{"role": "sheriff", "elo": null}]}]
	}`)

	records, err := quietAdapter().ConvertToDBModel(snap)
	require.NoError(t, err)

	wantSubject := &model.Subject{
		ID:               11,
		Login:            "kot",
		FirstName:        model.UnknownText,
		LastName:         model.UnknownText,
		DateRegistration: model.UnknownText,
		IconType:         model.UnknownText,
		Icon:             model.UnknownText,
		AvatarLink:       model.NoAvatar,
	}
	if diff := cmp.Diff(wantSubject, records.Subject); diff != "" {
		t.Fatalf("subject mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, records.Events, 1)
	ev := records.Events[0]
	assert.Equal(t, model.UnknownText, ev.CityTranslate)
	assert.Equal(t, model.UnknownText, ev.CountryTranslate)
	assert.Equal(t, model.UnknownText, ev.DateEnd)
	assert.NotEmpty(t, ev.CityTranslate)
	assert.Zero(t, ev.Place)
	assert.Zero(t, ev.GG)
	assert.Zero(t, ev.Elo)

	require.Len(t, records.Games, 1)
	assert.Equal(t, &model.Game{
		UserID:        11,
		TournamentID:  500,
		Seq:           1,
		Role:          "sheriff",
		RoleTranslate: model.UnknownText,
		Win:           model.UnknownText,
		WinTranslate:  model.UnknownText,
	}, records.Games[0])
}

func TestConvertToDBModel_EmptyStringIsNotUnknown(t *testing.T) {
	snap := snapshotFromJSON(t, 2, `{
		"user": {"id": 2, "avatar_link": ""},
		"historyTotal": 1,
		"history": [{"id": 1, "city_translate": ""}]
	}`)

	records, err := quietAdapter().ConvertToDBModel(snap)
	require.NoError(t, err)
	assert.Equal(t, "", records.Subject.AvatarLink)
	assert.Equal(t, "", records.Events[0].CityTranslate)
}

func TestConvertToDBModel_DedupPrefersCompleteGames(t *testing.T) {
	snap := snapshotFromJSON(t, 3,
		`{"user": {"id": 3}, "historyTotal": 13, "history": [
			{"id": 1, "title": "A"},
			{"id": 2, "title": "B", "games": [{"role": "red"}]}
		]}`,
		`{"user": {"id": 3}, "history": [
			{"id": 1, "title": "A full", "games": [{"role": "red"}, {"role": "black"}]},
			{"id": 2, "title": "B again"},
			{"id": 3, "title": "C"}
		]}`,
	)

	records, err := quietAdapter().ConvertToDBModel(snap)
	require.NoError(t, err)
	assert.Equal(t, 2, records.Duplicates)

	var titles []string
	var ids []int64
	for _, ev := range records.Events {
		titles = append(titles, ev.Title)
		ids = append(ids, ev.TournamentID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, []string{"A full", "B", "C"}, titles)

	require.Len(t, records.Games, 3)
	assert.Equal(t, int64(1), records.Games[0].TournamentID)
	assert.Equal(t, 1, records.Games[0].Seq)
	assert.Equal(t, 2, records.Games[1].Seq)
	assert.Equal(t, "black", records.Games[1].Role)
	assert.Equal(t, int64(2), records.Games[2].TournamentID)
}

func TestConvertToDBModel_DropsEntriesWithoutID(t *testing.T) {
	snap := snapshotFromJSON(t, 4, `{"user": {"id": 4}, "historyTotal": 2, "history": [
		{"title": "no id", "games": [{"role": "red"}]},
		{"id": "77", "title": "ok"}
	]}`)

	records, err := quietAdapter().ConvertToDBModel(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, records.Dropped)
	require.Len(t, records.Events, 1)
	assert.Equal(t, int64(77), records.Events[0].TournamentID)
	assert.Empty(t, records.Games)
}

func TestConvertToDBModel_UserIDMismatch(t *testing.T) {
	snap := snapshotFromJSON(t, 5, `{"user": {"id": 6}, "historyTotal": 0}`)

	_, err := quietAdapter().ConvertToDBModel(snap)
	assert.True(t, errors.Is(err, syncerr.ErrMalformedBlob))
}

func TestConvertToDBModel_EmptySnapshotIgnoresHistory(t *testing.T) {
	snap := snapshotFromJSON(t, 6, `{"user": {"id": 6}, "history": [{"id": 1}]}`)
	snap.Empty = true

	records, err := quietAdapter().ConvertToDBModel(snap)
	require.NoError(t, err)
	assert.Empty(t, records.Events)
}
