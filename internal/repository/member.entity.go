package repository

import "github.com/nimasrn/church-messaging/internal/model"

// Directory tables are owned by the membership module; this service only
// reads them.

type MemberEntity struct {
	ID        int64   `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	FirstName string  `db:"first_name" gorm:"column:first_name;not null"`
	LastName  string  `db:"last_name"  gorm:"column:last_name;not null"`
	Email     *string `db:"email"      gorm:"column:email"`
	Phone     *string `db:"phone"      gorm:"column:phone"`
	Status    string  `db:"status"     gorm:"column:status;not null"`
	GroupName *string `db:"group_name" gorm:"column:group_name;index"`
	Ministry  *string `db:"ministry"   gorm:"column:ministry;index"`
}

func (MemberEntity) TableName() string {
	return "members"
}

type CustomGroupEntity struct {
	ID   int64  `db:"id"   gorm:"primaryKey;autoIncrement;column:id"`
	Name string `db:"name" gorm:"column:name;not null"`
}

func (CustomGroupEntity) TableName() string {
	return "custom_groups"
}

type CustomGroupMemberEntity struct {
	GroupID  int64 `db:"group_id"  gorm:"primaryKey;column:group_id"`
	MemberID int64 `db:"member_id" gorm:"primaryKey;column:member_id"`
}

func (CustomGroupMemberEntity) TableName() string {
	return "custom_group_members"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toMemberModel(e *MemberEntity) *model.Member {
	return &model.Member{
		ID:        e.ID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Email:     deref(e.Email),
		Phone:     deref(e.Phone),
		Status:    e.Status,
		GroupName: deref(e.GroupName),
		Ministry:  deref(e.Ministry),
	}
}

func toMemberModels(entities []*MemberEntity) []*model.Member {
	models := make([]*model.Member, len(entities))
	for i, e := range entities {
		models[i] = toMemberModel(e)
	}
	return models
}
