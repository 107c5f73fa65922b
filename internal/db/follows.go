package db

import (
	"context"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

func (s *GormStore) AddFollow(ctx context.Context, userID, authorID uint64) error {
	row := Follow{UserID: userID, AuthorID: authorID}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return translate("add follow", err, models.ErrNotFound)
	}
	return nil
}

func (s *GormStore) RemoveFollow(ctx context.Context, userID, authorID uint64) error {
	res := s.conn(ctx).Where("user_id = ? AND author_id = ?", userID, authorID).Delete(&Follow{})
	if res.Error != nil {
		return translate("remove follow", res.Error, models.ErrNotFound)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *GormStore) IsFollowing(ctx context.Context, userID, authorID uint64) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	if err != nil {
		return false, translate("check follow", err, models.ErrNotFound)
	}
	return count > 0, nil
}

func (s *GormStore) FollowedAuthors(ctx context.Context, userID uint64, limit, offset int) (models.Page[models.User], error) {
	page := models.Page[models.User]{Items: []models.User{}}

	base := s.conn(ctx).Model(&User{}).
		Joins("JOIN follows fl ON fl.author_id = users.id").
		Where("fl.user_id = ?", userID)
	if err := base.Count(&page.Count).Error; err != nil {
		return page, translate("count follows", err, models.ErrNotFound)
	}
	if page.Count == 0 {
		return page, nil
	}

	rows := make([]User, 0)
	q := s.conn(ctx).
		Joins("JOIN follows fl ON fl.author_id = users.id").
		Where("fl.user_id = ?", userID).
		Order("fl.created_at DESC").Order("fl.id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return page, translate("list follows", err, models.ErrNotFound)
	}

	page.Items = make([]models.User, len(rows))
	for i := range rows {
		page.Items[i] = rows[i].toModel()
	}
	return page, nil
}
