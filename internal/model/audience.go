package model

import (
	"strconv"
	"strings"

	"github.com/nimasrn/church-messaging/internal/apperr"
)

type AudienceType string

const (
	AudienceAll         AudienceType = "all"
	AudienceGroup       AudienceType = "group"
	AudienceMinistry    AudienceType = "ministry"
	AudienceCustomGroup AudienceType = "custom_group"
	AudienceIndividual  AudienceType = "individual"
)

// AudienceSpec is a closed union over the audience variants below. The
// unexported marker keeps other packages from adding variants.
type AudienceSpec interface {
	Type() AudienceType
	audience()
}

type AllMembers struct{}

type GroupAudience struct{ Name string }

type MinistryAudience struct{ Name string }

type CustomGroupAudience struct{ GroupID int64 }

type IndividualAudience struct{ MemberIDs []int64 }

func (AllMembers) Type() AudienceType          { return AudienceAll }
func (GroupAudience) Type() AudienceType       { return AudienceGroup }
func (MinistryAudience) Type() AudienceType    { return AudienceMinistry }
func (CustomGroupAudience) Type() AudienceType { return AudienceCustomGroup }
func (IndividualAudience) Type() AudienceType  { return AudienceIndividual }

func (AllMembers) audience()          {}
func (GroupAudience) audience()       {}
func (MinistryAudience) audience()    {}
func (CustomGroupAudience) audience() {}
func (IndividualAudience) audience()  {}

const opParseAudience = "parse audience"

// ParseAudience builds an AudienceSpec from its wire form.
func ParseAudience(audienceType, value string, memberIDs []int64) (AudienceSpec, error) {
	value = strings.TrimSpace(value)
	switch AudienceType(strings.ToLower(strings.TrimSpace(audienceType))) {
	case AudienceAll, "":
		return AllMembers{}, nil
	case AudienceGroup:
		if value == "" {
			return nil, apperr.Validation(opParseAudience, "audience_value is required for group")
		}
		return GroupAudience{Name: value}, nil
	case AudienceMinistry:
		if value == "" {
			return nil, apperr.Validation(opParseAudience, "audience_value is required for ministry")
		}
		return MinistryAudience{Name: value}, nil
	case AudienceCustomGroup:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperr.Validation(opParseAudience, "audience_value must be a custom group id")
		}
		return CustomGroupAudience{GroupID: id}, nil
	case AudienceIndividual:
		if len(memberIDs) == 0 {
			return nil, apperr.Validation(opParseAudience, "member_ids is required for individual")
		}
		return IndividualAudience{MemberIDs: memberIDs}, nil
	}
	return nil, apperr.Validation(opParseAudience, "unsupported audience_type %q", audienceType)
}
