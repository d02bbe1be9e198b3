package repository

import (
	"context"
	"fmt"

	"GomafiaSync/internal/model"

	"gorm.io/gorm"
)

// RatingRepository elo_history 缓存读写，数据始终由 tournaments 重建
type RatingRepository interface {
	ListRatingHistory(ctx context.Context, subjectID int64) ([]*model.RatingPoint, error)
	ReplaceRatingHistory(ctx context.Context, subjectID int64, points []model.RatingPoint) error
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository 创建积分曲线仓储
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) ListRatingHistory(ctx context.Context, subjectID int64) ([]*model.RatingPoint, error) {
	var list []*model.RatingPoint
	if err := r.db.WithContext(ctx).Where("user_id = ?", subjectID).Order("seq").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ReplaceRatingHistory 删除旧缓存后整体写入
func (r *ratingRepository) ReplaceRatingHistory(ctx context.Context, subjectID int64, points []model.RatingPoint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", subjectID).Delete(&model.RatingPoint{}).Error; err != nil {
			return fmt.Errorf("清理积分曲线失败: %w", err)
		}
		if len(points) == 0 {
			return nil
		}
		rows := make([]model.RatingPoint, len(points))
		for i, p := range points {
			p.ID = 0
			p.UserID = subjectID
			p.Seq = i + 1
			rows[i] = p
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("写入积分曲线失败: %w", err)
		}
		return nil
	})
}
