package gomafia

import (
	"fmt"

	"GomafiaSync/internal/model"
	"GomafiaSync/internal/syncerr"

	"github.com/sirupsen/logrus"
)

// ConvertToDBModel 把多页快照归并为一条玩家记录、去重后的赛事列表和展开后的对局列表。
// 赛事按首次出现的顺序输出；同一赛事跨页重复时保留对局更完整的那份
func (a *Adapter) ConvertToDBModel(snapshot *model.Snapshot) (*model.SnapshotRecords, error) {
	if snapshot == nil || len(snapshot.Pages) == 0 || snapshot.Pages[0].ServerData == nil {
		return nil, fmt.Errorf("快照为空")
	}
	subjectID := snapshot.SubjectID

	rawUser := snapshot.Pages[0].ServerData.User
	if rawUser == nil {
		return nil, syncerr.New(syncerr.KindSubjectNotFound, subjectID, 1, nil)
	}
	if rawUser.ID.Valid && rawUser.ID.Int64() != subjectID {
		return nil, syncerr.New(syncerr.KindMalformedBlob, subjectID, 1,
			fmt.Errorf("页面用户ID %d 与请求的玩家ID不一致", rawUser.ID.Int64()))
	}

	records := &model.SnapshotRecords{Subject: buildSubject(subjectID, rawUser)}
	if snapshot.Empty {
		return records, nil
	}

	// 1. 按赛事ID去重，记录首次出现的位置
	order := make([]int64, 0)
	chosen := make(map[int64]*model.RawHistoryEntry)
	for _, page := range snapshot.Pages {
		if page.ServerData == nil {
			continue
		}
		for i := range page.ServerData.History {
			entry := &page.ServerData.History[i]
			if !entry.ID.Valid {
				records.Dropped++
				a.logger.WithFields(logrus.Fields{
					"subject_id": subjectID,
					"page":       page.Page,
					"title":      entry.Title.Value,
				}).Warn("赛事缺少ID，无法入库，已丢弃")
				continue
			}
			id := entry.ID.Int64()
			existing, ok := chosen[id]
			if !ok {
				order = append(order, id)
				chosen[id] = entry
				continue
			}
			records.Duplicates++
			if len(entry.Games) > len(existing.Games) {
				chosen[id] = entry
			}
		}
	}

	// 2. 生成赛事与对局
	records.Events = make([]*model.Event, 0, len(order))
	for _, id := range order {
		entry := chosen[id]
		records.Events = append(records.Events, buildEvent(subjectID, id, entry))
		for i, g := range entry.Games {
			records.Games = append(records.Games, buildGame(subjectID, id, i+1, g))
		}
	}

	if records.Duplicates > 0 {
		a.logger.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"duplicates": records.Duplicates,
		}).Info("跨页重复赛事已合并")
	}
	return records, nil
}

func buildSubject(subjectID int64, u *model.RawUser) *model.Subject {
	return &model.Subject{
		ID:               subjectID,
		ClubID:           u.ClubID.Int64(),
		Login:            u.Login.OrUnknown(),
		FirstName:        u.FirstName.OrUnknown(),
		LastName:         u.LastName.OrUnknown(),
		DateRegistration: u.DateRegistration.OrUnknown(),
		IconType:         u.IconType.OrUnknown(),
		Icon:             u.Icon.OrUnknown(),
		GCoin:            u.GCoin.Int64(),
		Elo:              u.Elo.Or(0),
		VkID:             u.VkID.Int64(),
		RefereeLicense:   u.RefereeLicense.Int64(),
		IsPaid:           u.IsPaid.Value,
		IsCanComment:     u.IsCanComment.Value,
		Since:            u.Since.Int64(),
		AvatarLink:       u.AvatarLink.Or(model.NoAvatar),
	}
}

func buildEvent(subjectID, tournamentID int64, e *model.RawHistoryEntry) *model.Event {
	return &model.Event{
		UserID:           subjectID,
		TournamentID:     tournamentID,
		Title:            e.Title.OrUnknown(),
		DateStart:        e.DateStart.OrUnknown(),
		DateEnd:          e.DateEnd.OrUnknown(),
		CountryTranslate: e.CountryTranslate.OrUnknown(),
		CityTranslate:    e.CityTranslate.OrUnknown(),
		Place:            e.Place.Int64(),
		GG:               e.GG.Or(0),
		Elo:              e.Elo.Or(0),
	}
}

func buildGame(subjectID, tournamentID int64, seq int, g model.RawGameItem) *model.Game {
	return &model.Game{
		UserID:        subjectID,
		TournamentID:  tournamentID,
		Seq:           seq,
		Role:          g.Role.OrUnknown(),
		RoleTranslate: g.RoleTranslate.OrUnknown(),
		Place:         g.Place.Int64(),
		Win:           g.Win.OrUnknown(),
		WinTranslate:  g.WinTranslate.OrUnknown(),
		Elo:           g.Elo.Or(0),
	}
}
