package repository

import (
	"context"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/pkg/pg"
	"gorm.io/gorm"
)

const activeStatus = "active"

// MemberRepository reads the church directory.
type MemberRepository struct {
	*pg.DB
}

func NewMemberRepository(db *pg.DB) *MemberRepository {
	return &MemberRepository{
		db,
	}
}

func (r *MemberRepository) active(ctx context.Context) *gorm.DB {
	return r.Read(ctx).WithContext(ctx).Model(&MemberEntity{}).
		Where("LOWER(members.status) = ?", activeStatus)
}

func (r *MemberRepository) find(q *gorm.DB) ([]*model.Member, error) {
	var entities []*MemberEntity
	if err := q.Order("members.id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toMemberModels(entities), nil
}

func (r *MemberRepository) ActiveAll(ctx context.Context) ([]*model.Member, error) {
	return r.find(r.active(ctx))
}

func (r *MemberRepository) ActiveByGroup(ctx context.Context, name string) ([]*model.Member, error) {
	return r.find(r.active(ctx).Where("members.group_name = ?", name))
}

func (r *MemberRepository) ActiveByMinistry(ctx context.Context, name string) ([]*model.Member, error) {
	return r.find(r.active(ctx).Where("members.ministry = ?", name))
}

func (r *MemberRepository) ActiveByCustomGroup(ctx context.Context, groupID int64) ([]*model.Member, error) {
	q := r.active(ctx).
		Joins("JOIN custom_group_members ON custom_group_members.member_id = members.id").
		Where("custom_group_members.group_id = ?", groupID)
	return r.find(q)
}

// ByIDs loads members regardless of status, in id order.
func (r *MemberRepository) ByIDs(ctx context.Context, ids []int64) ([]*model.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(r.Read(ctx).WithContext(ctx).Model(&MemberEntity{}).Where("members.id IN ?", ids))
}
